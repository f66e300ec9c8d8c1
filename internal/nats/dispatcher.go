package natsjs

import (
	"context"
	"log"
	"time"

	"github.com/jobsync-dev/jobsync/internal/eventstore/sqlite"
)

// Dispatcher drains the journal outbox to JetStream. With a nil Publisher the
// outbox rows are marked published immediately so the journal never grows an
// unbounded backlog on installs without NATS.
type Dispatcher struct {
	Store     *sqlite.Store
	Publisher *Publisher
}

// Run loops until ctx is done, publishing pending outbox rows with retry
// backoff on delivery failure.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.Publisher != nil {
		if err := d.Publisher.EnsureStream(ctx); err != nil {
			log.Printf("[outbox] ensure stream: %v", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messages, err := d.Store.DequeueOutbox(ctx, 100)
		if err != nil {
			log.Printf("[outbox] dequeue: %v", err)
			time.Sleep(time.Second)
			continue
		}

		if len(messages) == 0 {
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, msg := range messages {
			if d.Publisher != nil {
				if err := d.Publisher.Publish(msg.Subject, msg.Payload, msg.MsgID); err != nil {
					log.Printf("[outbox] publish %d: %v", msg.ID, err)
					_ = d.Store.MarkOutboxRetry(ctx, msg.ID, 10*time.Second)
					continue
				}
			}
			if err := d.Store.MarkPublished(ctx, msg.ID); err != nil {
				log.Printf("[outbox] mark published %d: %v", msg.ID, err)
			}
		}
	}
}
