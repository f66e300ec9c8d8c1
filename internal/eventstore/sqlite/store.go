// Package sqlite is the local event journal: every classified mailbox
// message and record-store action is appended here, together with a
// transactional outbox row for the lifecycle publisher.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jobsync-dev/jobsync/internal/sync"
)

//go:embed schema.sql
var schemaSQL string

// Store is the journal database.
type Store struct {
	DB *sql.DB
}

// OutboxMessage is one undelivered lifecycle event.
type OutboxMessage struct {
	ID      int64
	Subject string
	Payload []byte
	MsgID   string
}

// Open opens or creates the journal database.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{DB: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

// SeenMessage reports whether a mailbox message id was already journaled.
func (s *Store) SeenMessage(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, `
		SELECT 1 FROM message_events WHERE message_id = ?
	`, messageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query message event: %w", err)
	}
	return true, nil
}

// MessageProcessed journals a classified mailbox message and enqueues the
// matching outbox entry in one transaction. The UNIQUE constraint on the
// message id makes reprocessing a no-op.
func (s *Store) MessageProcessed(ctx context.Context, m *sync.Message, result sync.Classification, action string) error {
	payload, _ := json.Marshal(map[string]any{
		"messageId":      m.ID,
		"subject":        m.Subject,
		"sender":         m.Sender,
		"classification": string(result),
		"action":         action,
	})

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO message_events
		(event_id, ts, message_id, subject, sender, classification, action)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), now, m.ID, m.Subject, m.Sender, string(result), action)
	if err != nil {
		return fmt.Errorf("failed to insert message event: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		// Already journaled by an earlier cycle; no outbox entry either.
		return nil
	}

	if err := insertOutbox(ctx, tx, "jobsync.mail.processed", "mail.processed", payload, "mail.processed|"+m.ID); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplicationEvent journals one record-store action with an outbox entry.
func (s *Store) ApplicationEvent(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	eventID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO application_events (event_id, ts, event_type, payload)
		VALUES (?, ?, ?, ?)
	`, eventID, time.Now().Unix(), eventType, string(data))
	if err != nil {
		return fmt.Errorf("failed to insert application event: %w", err)
	}

	if err := insertOutbox(ctx, tx, "jobsync.app."+eventType, eventType, data, eventType+"|"+eventID); err != nil {
		return err
	}
	return tx.Commit()
}

func insertOutbox(ctx context.Context, tx *sql.Tx, subject, eventType string, payload []byte, msgID string) error {
	now := time.Now().Unix()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox (ts, subject, event_type, payload, msg_id, next_attempt_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, now, subject, eventType, payload, msgID, now)
	if err != nil {
		return fmt.Errorf("failed to insert outbox entry: %w", err)
	}
	return nil
}

// DequeueOutbox fetches undelivered messages whose retry window has passed.
func (s *Store) DequeueOutbox(ctx context.Context, limit int) ([]OutboxMessage, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, subject, payload, msg_id
		FROM outbox
		WHERE published_at IS NULL
		  AND next_attempt_at <= ?
		ORDER BY id
		LIMIT ?
	`, time.Now().Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var messages []OutboxMessage
	for rows.Next() {
		var msg OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.Subject, &msg.Payload, &msg.MsgID); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MarkPublished marks an outbox message as delivered.
func (s *Store) MarkPublished(ctx context.Context, id int64) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE outbox SET published_at = ? WHERE id = ?
	`, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark published: %w", err)
	}
	return nil
}

// MarkOutboxRetry bumps the retry count and pushes the next attempt out.
func (s *Store) MarkOutboxRetry(ctx context.Context, id int64, backoff time.Duration) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE outbox
		SET retries = retries + 1,
		    next_attempt_at = ?
		WHERE id = ?
	`, time.Now().Add(backoff).Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark retry: %w", err)
	}
	return nil
}

// Counts summarizes journal contents for the status surface.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	queries := map[string]string{
		"messages":       `SELECT COUNT(*) FROM message_events`,
		"events":         `SELECT COUNT(*) FROM application_events`,
		"outbox_pending": `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`,
	}
	for name, q := range queries {
		var n int64
		if err := s.DB.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}
