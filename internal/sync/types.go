package sync

import (
	"context"
	"time"
)

// Status is the internal application lifecycle stage.
type Status string

const (
	StatusApplied            Status = "APPLIED"
	StatusOnlineAssessment   Status = "OA"
	StatusOAComplete         Status = "OA_COMPLETE"
	StatusInterviewScheduled Status = "INTERVIEW_SCHEDULED"
	StatusInterviewCompleted Status = "INTERVIEW_COMPLETED"
	StatusOffer              Status = "OFFER"
	StatusRejected           Status = "REJECTED"
)

// statusLabels maps internal statuses to the record store's select labels.
// Schema drift in the store is a one-place edit here.
var statusLabels = map[Status]string{
	StatusApplied:            "Applied",
	StatusOnlineAssessment:   "Online Assessment",
	StatusOAComplete:         "OA Complete",
	StatusInterviewScheduled: "Interview Scheduled",
	StatusInterviewCompleted: "Interview Completed",
	StatusOffer:              "Offer Received",
	StatusRejected:           "Rejected",
}

// Label returns the record-store label for s. Unknown statuses fall back to
// the Applied label so a bad caller never writes an invalid select option.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return statusLabels[StatusApplied]
}

// ParseStatus accepts either an internal status name or a store label.
// Empty input maps to Applied.
func ParseStatus(s string) (Status, bool) {
	if s == "" {
		return StatusApplied, true
	}
	if _, ok := statusLabels[Status(s)]; ok {
		return Status(s), true
	}
	return StatusFromLabel(s)
}

// StatusFromLabel resolves a record-store label back to the internal status.
func StatusFromLabel(label string) (Status, bool) {
	for s, l := range statusLabels {
		if l == label {
			return s, true
		}
	}
	return "", false
}

// StatusLabels returns all known store labels in lifecycle order, used by the
// weekly report to keep bucket ordering stable.
func StatusLabels() []string {
	order := []Status{
		StatusApplied,
		StatusOnlineAssessment,
		StatusOAComplete,
		StatusInterviewScheduled,
		StatusInterviewCompleted,
		StatusOffer,
		StatusRejected,
	}
	labels := make([]string, 0, len(order))
	for _, s := range order {
		labels = append(labels, statusLabels[s])
	}
	return labels
}

// Application is one tracked job application as submitted by a caller.
type Application struct {
	Company     string    `json:"company"`
	Role        string    `json:"role"`
	URL         string    `json:"url"`
	SubmittedAt time.Time `json:"submittedAt"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
}

// Message is one inbound mailbox item. Ephemeral; lives for one poll cycle.
type Message struct {
	ID      string
	Subject string
	Sender  string
	Body    string
}

// RecordPage is the engine's view of one record-store page.
type RecordPage struct {
	ID          string
	Company     string
	Role        string
	URL         string
	StatusLabel string
	DateApplied time.Time
}

// Mailbox lists and mutates messages in the watched inbox category.
type Mailbox interface {
	ListUnread(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, id string) (*Message, error)
	MarkRead(ctx context.Context, id string) error
	Trash(ctx context.Context, id string) error
}

// RecordStore is the durable application-record collaborator. ForEachPage
// iterates every page in store order; returning false from fn stops the scan.
type RecordStore interface {
	ForEachPage(ctx context.Context, fn func(RecordPage) (bool, error)) error
	QueryCompanyRole(ctx context.Context, company, role string) ([]RecordPage, error)
	QueryAppliedSince(ctx context.Context, since time.Time) ([]RecordPage, error)
	CreatePage(ctx context.Context, app Application) (string, error)
	UpdatePage(ctx context.Context, id string, app Application) error
	SetStatus(ctx context.Context, id, statusLabel string) error
	AppendNote(ctx context.Context, id, text string) error
}

// Notifier dispatches a human-readable event summary. Fire and forget.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Journal records processed messages and application events for the audit
// trail. SeenMessage reports whether the mailbox message id was already
// journaled by an earlier cycle.
type Journal interface {
	SeenMessage(ctx context.Context, messageID string) (bool, error)
	MessageProcessed(ctx context.Context, m *Message, result Classification, action string) error
	ApplicationEvent(ctx context.Context, eventType string, payload any) error
}
