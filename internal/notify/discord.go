// Package notify dispatches human-readable event summaries to Discord.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Discord posts messages through a webhook. Delivery is fire-and-forget: a
// failure is logged and the event is never re-sent.
type Discord struct {
	session *discordgo.Session
	id      string
	token   string
}

// NewDiscord parses a Discord webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscord(webhookURL string) (*Discord, error) {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("parse webhook url: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 || parts[len(parts)-3] != "webhooks" || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return nil, fmt.Errorf("webhook url missing id/token segments")
	}

	// Webhook execution needs no bot token.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	return &Discord{
		session: session,
		id:      parts[len(parts)-2],
		token:   parts[len(parts)-1],
	}, nil
}

// Notify sends one message. Never raises to the caller.
func (d *Discord) Notify(_ context.Context, text string) {
	_, err := d.session.WebhookExecute(d.id, d.token, false, &discordgo.WebhookParams{Content: text})
	if err != nil {
		log.Printf("[notify] discord webhook: %v", err)
	}
}

// Nop is the notifier used when no webhook is configured.
type Nop struct{}

func (Nop) Notify(context.Context, string) {}
