// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	NotionToken      string
	NotionDatabaseID string

	DiscordWebhookURL string

	GmailClientID     string
	GmailClientSecret string
	GmailRefreshToken string

	ListenAddr       string
	CronMailboxPoll  string
	CronWeeklyReport string
	DataDir          string
	NATSURL          string
}

// Load reads configuration from environment variables, with an optional .env
// file for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		NotionToken:       os.Getenv("NOTION_TOKEN"),
		NotionDatabaseID:  os.Getenv("NOTION_DB_ID"),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		GmailClientID:     os.Getenv("GMAIL_CLIENT_ID"),
		GmailClientSecret: os.Getenv("GMAIL_CLIENT_SECRET"),
		GmailRefreshToken: os.Getenv("GMAIL_REFRESH_TOKEN"),
		ListenAddr:        getenv("LISTEN_ADDR", ":8719"),
		CronMailboxPoll:   getenv("CRON_MAILBOX_POLL", "*/5 * * * *"),
		CronWeeklyReport:  getenv("CRON_WEEKLY_REPORT", "0 18 * * SUN"),
		DataDir:           getenv("DATA_DIR", "data"),
		NATSURL:           os.Getenv("NATS_URL"),
	}

	if cfg.NotionToken == "" {
		return nil, fmt.Errorf("NOTION_TOKEN is required")
	}
	if cfg.NotionDatabaseID == "" {
		return nil, fmt.Errorf("NOTION_DB_ID is required")
	}

	if !cfg.MailboxEnabled() {
		log.Println("[config] gmail credentials not set, mailbox polling disabled")
	}
	if cfg.DiscordWebhookURL == "" {
		log.Println("[config] DISCORD_WEBHOOK_URL not set, notifications disabled")
	}

	return cfg, nil
}

// MailboxEnabled reports whether all Gmail credentials are present.
func (c *Config) MailboxEnabled() bool {
	return c.GmailClientID != "" && c.GmailClientSecret != "" && c.GmailRefreshToken != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
