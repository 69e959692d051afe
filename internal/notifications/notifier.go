package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrAlreadySent means the dedup key was used for this recipient before.
var ErrAlreadySent = errors.New("notification already sent")

type Kind string

const (
	KindReminder  Kind = "workshop_reminder"
	KindCancelled Kind = "workshop_cancelled"
)

type Notification struct {
	RecipientID uuid.UUID
	Kind        Kind
	EntityRef   string // e.g. "workshop:<id>"
	Preview     string
	DedupKey    string // optional
}

// Notifier is the fan-out sink. Notify is idempotent per (DedupKey, recipient).
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// PostgresSink records every notification in an outbox table. The primary
// key on (dedup_key, recipient_id) makes overlapping job runs safe.
type PostgresSink struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPostgresSink(db *sql.DB, logger zerolog.Logger) *PostgresSink {
	return &PostgresSink{db: db, logger: logger.With().Str("component", "notifications").Logger()}
}

func (s *PostgresSink) Notify(ctx context.Context, n Notification) error {
	key := n.DedupKey
	if key == "" {
		key = uuid.NewString()
	}
	const query = `
	INSERT INTO notification_deliveries (dedup_key, recipient_id, kind, entity_ref, preview, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (dedup_key, recipient_id) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query, key, n.RecipientID, n.Kind, n.EntityRef, n.Preview)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	if inserted == 0 {
		return ErrAlreadySent
	}
	s.logger.Info().
		Str("recipient_id", n.RecipientID.String()).
		Str("kind", string(n.Kind)).
		Str("entity", n.EntityRef).
		Msg("notification queued")
	return nil
}

// MemorySink keeps delivered notifications in memory. Used for dry runs and tests.
type MemorySink struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	sent   []Notification
	logger zerolog.Logger
}

func NewMemorySink(logger zerolog.Logger) *MemorySink {
	return &MemorySink{
		seen:   make(map[string]struct{}),
		logger: logger.With().Str("component", "notifications").Logger(),
	}
}

func (s *MemorySink) Notify(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.DedupKey != "" {
		k := n.DedupKey + "|" + n.RecipientID.String()
		if _, ok := s.seen[k]; ok {
			return ErrAlreadySent
		}
		s.seen[k] = struct{}{}
	}
	s.sent = append(s.sent, n)
	s.logger.Info().
		Str("recipient_id", n.RecipientID.String()).
		Str("kind", string(n.Kind)).
		Str("entity", n.EntityRef).
		Msg(n.Preview)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (s *MemorySink) Sent() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.sent))
	copy(out, s.sent)
	return out
}
