package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/npdadmin/syncengine/core"
	"github.com/uptrace/bun"
)

const (
	auditOutboxStatusPending    = "pending"
	auditOutboxStatusProcessing = "processing"
	auditOutboxStatusDelivered  = "delivered"
	auditOutboxStatusFailed     = "failed"
)

type AuditOutboxStore struct {
	db   *bun.DB
	repo repository.Repository[*auditOutboxRecord]
}

func NewAuditOutboxStore(db *bun.DB) (*AuditOutboxStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*auditOutboxRecord](db, auditOutboxHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid audit outbox repository wiring: %w", err)
		}
	}
	return &AuditOutboxStore{db: db, repo: repo}, nil
}

func (s *AuditOutboxStore) Enqueue(ctx context.Context, event core.AuditEvent) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: audit outbox store is not configured")
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("sqlstore: audit event id is required")
	}
	if strings.TrimSpace(event.Name) == "" {
		return fmt.Errorf("sqlstore: audit event name is required")
	}

	occurredAt := event.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	now := time.Now().UTC()
	record := &auditOutboxRecord{
		ID:         uuid.NewString(),
		EventID:    strings.TrimSpace(event.ID),
		EventName:  strings.TrimSpace(event.Name),
		EntityType: strings.TrimSpace(event.EntityType),
		EntityID:   strings.TrimSpace(event.EntityID),
		Source:     strings.TrimSpace(event.Source),
		Payload:    copyAnyMap(event.Payload),
		Metadata:   copyAnyMap(event.Metadata),
		Status:     auditOutboxStatusPending,
		Attempts:   0,
		LastError:  "",
		OccurredAt: occurredAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *AuditOutboxStore) ClaimBatch(ctx context.Context, limit int) ([]core.AuditEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: audit outbox store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC()
	var records []auditOutboxRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM sync_audit_outbox
	WHERE status = ?
	  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
	ORDER BY occurred_at ASC
	LIMIT ?
)
UPDATE sync_audit_outbox
SET status = ?, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status = ?
RETURNING
	id,
	event_id,
	event_name,
	entity_type,
	entity_id,
	source,
	payload,
	metadata,
	status,
	attempts,
	next_attempt_at,
	last_error,
	occurred_at,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			auditOutboxStatusPending,
			now,
			limit,
			auditOutboxStatusProcessing,
			now,
			auditOutboxStatusPending,
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}

	events := make([]core.AuditEvent, 0, len(records))
	for _, record := range records {
		events = append(events, auditOutboxRecordToEvent(record))
	}
	return events, nil
}

func (s *AuditOutboxStore) Ack(ctx context.Context, eventID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: audit outbox store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*auditOutboxRecord)(nil)).
		Set("status = ?", auditOutboxStatusDelivered).
		Set("last_error = ?", "").
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

// Retry reschedules the event, or parks it as failed when nextAttemptAt is
// the zero time.
func (s *AuditOutboxStore) Retry(ctx context.Context, eventID string, cause error, nextAttemptAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: audit outbox store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	status := auditOutboxStatusPending
	var next *time.Time
	if !nextAttemptAt.IsZero() {
		nextValue := nextAttemptAt.UTC()
		next = &nextValue
	} else {
		status = auditOutboxStatusFailed
	}

	lastError := ""
	if cause != nil {
		lastError = strings.TrimSpace(cause.Error())
	}
	_, err := s.db.NewUpdate().
		Model((*auditOutboxRecord)(nil)).
		Set("status = ?", status).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = ?", next).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", time.Now().UTC()).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}
