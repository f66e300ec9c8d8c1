// Package gmail adapts the Gmail API to the sync engine's Mailbox contract.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jobsync-dev/jobsync/internal/sync"
)

// unreadQuery restricts listing to unread mail in the primary category tab.
const unreadQuery = "is:unread category:primary"

// Adapter implements sync.Mailbox for Gmail. One adapter is built per poll
// cycle from a fresh access token.
type Adapter struct {
	svc *gmail.Service
}

// New creates a Gmail adapter from a short-lived access token.
func New(ctx context.Context, accessToken string) (*Adapter, error) {
	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Adapter{svc: svc}, nil
}

// ListUnread returns the ids of unread primary-inbox messages. The listing is
// a snapshot valid only for this call.
func (a *Adapter) ListUnread(ctx context.Context) ([]string, error) {
	resp, err := a.svc.Users.Messages.List("me").Q(unreadQuery).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list unread messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// Fetch retrieves one message with subject, sender and plain-text body.
func (a *Adapter) Fetch(ctx context.Context, id string) (*sync.Message, error) {
	m, err := a.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}

	payload := m.Payload
	if payload == nil {
		payload = &gmail.MessagePart{}
	}

	return &sync.Message{
		ID:      m.Id,
		Subject: header(payload, "Subject"),
		Sender:  header(payload, "From"),
		Body:    PlainTextBody(payload),
	}, nil
}

// MarkRead removes the UNREAD label.
func (a *Adapter) MarkRead(ctx context.Context, id string) error {
	_, err := a.svc.Users.Messages.Modify("me", id, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	return nil
}

// Trash moves the message to the trash.
func (a *Adapter) Trash(ctx context.Context, id string) error {
	_, err := a.svc.Users.Messages.Trash("me", id).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("trash %s: %w", id, err)
	}
	return nil
}

func header(p *gmail.MessagePart, name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// PlainTextBody returns the first text/plain part found by a depth-first walk
// of the message's (possibly nested) multipart structure. Empty when no
// plain-text part exists.
func PlainTextBody(p *gmail.MessagePart) string {
	if p == nil {
		return ""
	}
	if p.MimeType == "text/plain" && p.Body != nil && p.Body.Data != "" {
		return decodeBody(p.Body.Data)
	}
	for _, part := range p.Parts {
		if body := PlainTextBody(part); body != "" {
			return body
		}
	}
	return ""
}

func decodeBody(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	// Gmail omits padding on some parts.
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}
