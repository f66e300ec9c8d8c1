package sync

import (
	"context"
	"fmt"
	"log"
)

// MailboxFactory builds a mailbox session for one poll cycle. Token exchange
// happens here, so an auth failure aborts the cycle before any listing.
type MailboxFactory func(ctx context.Context) (Mailbox, error)

// Poller runs one mailbox poll cycle: list unread, classify, act. Messages
// are processed sequentially in listing order, so two rejections from the
// same company in one cycle serialize their fan-out writes.
type Poller struct {
	NewMailbox MailboxFactory
	Engine     *Engine
	Notifier   Notifier
	Journal    Journal
}

// PollOnce processes every unread message in the watched category. Mailbox
// transport errors on a single message are logged and the loop continues;
// only listing and auth failures abort the cycle.
func (p *Poller) PollOnce(ctx context.Context) error {
	mailbox, err := p.NewMailbox(ctx)
	if err != nil {
		return fmt.Errorf("open mailbox: %w", err)
	}

	ids, err := mailbox.ListUnread(ctx)
	if err != nil {
		return fmt.Errorf("list unread: %w", err)
	}
	log.Printf("[poll] %d unread message(s)", len(ids))

	for _, id := range ids {
		msg, err := mailbox.Fetch(ctx, id)
		if err != nil {
			log.Printf("[poll] fetch %s: %v", id, err)
			continue
		}
		p.processMessage(ctx, mailbox, msg)
	}
	return nil
}

func (p *Poller) processMessage(ctx context.Context, mailbox Mailbox, msg *Message) {
	result := Classify(msg.Subject, msg.Body)
	log.Printf("[poll] message %s: %q from %q -> %s", msg.ID, truncate(msg.Subject, 50), truncate(msg.Sender, 30), result)

	if result == ClassUnclassified {
		// Left unread for human review. Not journaled either, so a later
		// cycle (or a smarter classifier) can pick it up again.
		return
	}

	if p.Journal != nil {
		seen, err := p.Journal.SeenMessage(ctx, msg.ID)
		if err != nil {
			log.Printf("[poll] journal lookup %s: %v", msg.ID, err)
		} else if seen {
			log.Printf("[poll] message %s already processed, skipping", msg.ID)
			return
		}
	}

	action := "notified"
	switch result {
	case ClassRejected:
		p.markRead(ctx, mailbox, msg.ID)
		action = p.handleRejection(ctx, msg)

	case ClassThankYou:
		p.markRead(ctx, mailbox, msg.ID)
		p.Notifier.Notify(ctx, fmt.Sprintf("📧 Thank you email: **%s** — %s", msg.Subject, msg.Sender))

	case ClassOnlineAssessment:
		// Notify only; the message stays unread so the candidate sees it.
		p.Notifier.Notify(ctx, fmt.Sprintf("📬 %s email: **%s** — %s", StatusOnlineAssessment.Label(), msg.Subject, msg.Sender))

	case ClassInterview:
		p.Notifier.Notify(ctx, fmt.Sprintf("📬 %s email: **%s** — %s", StatusInterviewScheduled.Label(), msg.Subject, msg.Sender))
	}

	if p.Journal != nil {
		if err := p.Journal.MessageProcessed(ctx, msg, result, action); err != nil {
			log.Printf("[poll] journal %s: %v", msg.ID, err)
		}
	}
}

// handleRejection fans the rejection out to every application at the sender's
// company. One rejection email rarely means one role.
func (p *Poller) handleRejection(ctx context.Context, msg *Message) string {
	company := ResolveCompany(msg.Sender)
	log.Printf("[poll] rejection: resolved company %q from sender %q", company, msg.Sender)

	res, err := p.Engine.SetStatusByCompany(ctx, StatusUpdate{
		Company: company,
		Status:  StatusRejected,
		Note:    "Auto from mailbox rejection: " + msg.Subject,
		FanOut:  true,
	})
	if err != nil || !res.OK {
		if err != nil {
			log.Printf("[poll] rejection fan-out for %q: %v", company, err)
		}
		p.Notifier.Notify(ctx, fmt.Sprintf("❌ Rejection detected: **%s** — %s", msg.Subject, msg.Sender))
		return "rejection_unresolved"
	}

	p.Notifier.Notify(ctx, fmt.Sprintf("❌ Rejection detected from **%s**: **%s** — Updated %d application(s) to %s",
		company, msg.Subject, res.UpdatedCount, StatusRejected.Label()))
	return "rejection_fanout"
}

func (p *Poller) markRead(ctx context.Context, mailbox Mailbox, id string) {
	if err := mailbox.MarkRead(ctx, id); err != nil {
		log.Printf("[poll] mark read %s: %v", id, err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
