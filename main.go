package main

import (
	"context"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobsync-dev/jobsync/internal/auth"
	"github.com/jobsync-dev/jobsync/internal/config"
	"github.com/jobsync-dev/jobsync/internal/eventstore/sqlite"
	natsjs "github.com/jobsync-dev/jobsync/internal/nats"
	"github.com/jobsync-dev/jobsync/internal/notify"
	"github.com/jobsync-dev/jobsync/internal/notion"
	"github.com/jobsync-dev/jobsync/internal/providers/gmail"
	"github.com/jobsync-dev/jobsync/internal/rpc"
	"github.com/jobsync-dev/jobsync/internal/scheduler"
	"github.com/jobsync-dev/jobsync/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	journal, err := sqlite.Open(filepath.Join(cfg.DataDir, "journal.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer journal.Close()

	records := notion.New(cfg.NotionToken, cfg.NotionDatabaseID)
	engine := sync.NewEngine(records, journal)

	var notifier sync.Notifier = notify.Nop{}
	if cfg.DiscordWebhookURL != "" {
		discord, err := notify.NewDiscord(cfg.DiscordWebhookURL)
		if err != nil {
			log.Fatal(err)
		}
		notifier = discord
	}

	tokens := auth.NewTokenProvider(cfg.GmailClientID, cfg.GmailClientSecret, cfg.GmailRefreshToken)
	poller := &sync.Poller{
		NewMailbox: func(ctx context.Context) (sync.Mailbox, error) {
			accessToken, err := tokens.AccessToken(ctx)
			if err != nil {
				return nil, err
			}
			return gmail.New(ctx, accessToken)
		},
		Engine:   engine,
		Notifier: notifier,
		Journal:  journal,
	}
	reporter := &sync.Reporter{Store: records, Notifier: notifier}

	pollGate := scheduler.NewGate("mailbox poll", func(ctx context.Context) error {
		if !cfg.MailboxEnabled() {
			return nil
		}
		return poller.PollOnce(ctx)
	})
	weeklyGate := scheduler.NewGate("weekly report", reporter.SendWeekly)

	sched := scheduler.New()
	if err := sched.Add(cfg.CronMailboxPoll, "mailbox poll", pollGate.Run); err != nil {
		log.Fatal(err)
	}
	if err := sched.Add(cfg.CronWeeklyReport, "weekly report", weeklyGate.Run); err != nil {
		log.Fatal(err)
	}
	sched.Start()
	defer sched.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var publisher *natsjs.Publisher
	if cfg.NATSURL != "" {
		publisher, err = natsjs.NewPublisher(cfg.NATSURL)
		if err != nil {
			log.Printf("[main] nats unavailable, lifecycle publishing disabled: %v", err)
		} else {
			defer publisher.Close()
		}
	}
	dispatcher := &natsjs.Dispatcher{Store: journal, Publisher: publisher}
	go dispatcher.Run(ctx)

	commands := rpc.NewServer(engine, pollGate.Run, weeklyGate.Run)

	r := gin.Default()
	r.GET("/ws", commands.Handle)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/status", func(c *gin.Context) {
		counts, err := journal.Counts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		status := gin.H{
			"scheduledJobs":  sched.Jobs(),
			"mailboxEnabled": cfg.MailboxEnabled(),
			"journal":        counts,
		}
		if last := pollGate.LastRun(); !last.IsZero() {
			status["lastPoll"] = last.UTC().Format(time.RFC3339)
		}
		c.JSON(http.StatusOK, status)
	})

	log.Printf("command surface listening on %s", cfg.ListenAddr)
	log.Fatal(r.Run(cfg.ListenAddr))
}
