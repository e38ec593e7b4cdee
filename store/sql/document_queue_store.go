package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/npdadmin/syncengine/core"
	"github.com/uptrace/bun"
)

type DocumentQueueStore struct {
	db   *bun.DB
	repo repository.Repository[*documentQueueRecord]
}

func NewDocumentQueueStore(db *bun.DB) (*DocumentQueueStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*documentQueueRecord](db, documentQueueHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid document queue repository wiring: %w", err)
		}
	}
	return &DocumentQueueStore{db: db, repo: repo}, nil
}

// Enqueue is idempotent per active document id, enforced by the partial
// unique index; a violation returns the already-active row.
func (s *DocumentQueueStore) Enqueue(ctx context.Context, item core.DocumentQueueItem) (core.DocumentQueueItem, bool, error) {
	if s == nil || s.db == nil {
		return core.DocumentQueueItem{}, false, fmt.Errorf("sqlstore: document queue store is not configured")
	}
	if strings.TrimSpace(item.ID) == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record := newDocumentQueueRecord(item, now)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.findActive(ctx, item.DocumentID)
			if lookupErr != nil {
				return core.DocumentQueueItem{}, false, lookupErr
			}
			return existing, false, nil
		}
		return core.DocumentQueueItem{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *DocumentQueueStore) Get(ctx context.Context, id string) (core.DocumentQueueItem, error) {
	if s == nil || s.db == nil {
		return core.DocumentQueueItem{}, fmt.Errorf("sqlstore: document queue store is not configured")
	}
	record := &documentQueueRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.DocumentQueueItem{}, fmt.Errorf("%w: id %q", core.ErrQueueItemNotFound, id)
		}
		return core.DocumentQueueItem{}, err
	}
	return record.toDomain(), nil
}

func (s *DocumentQueueStore) ClaimNext(ctx context.Context, now time.Time) (core.DocumentQueueItem, bool, error) {
	if s == nil || s.db == nil {
		return core.DocumentQueueItem{}, false, fmt.Errorf("sqlstore: document queue store is not configured")
	}
	now = now.UTC()
	var records []documentQueueRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM document_queue_items
	WHERE status = ?
	  AND (next_retry_at IS NULL OR next_retry_at <= ?)
	ORDER BY next_retry_at ASC NULLS FIRST, created_at ASC
	LIMIT 1
)
UPDATE document_queue_items
SET status = ?, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status = ?
RETURNING
	id,
	document_id,
	operation,
	status,
	attempts,
	max_attempts,
	next_retry_at,
	error_message,
	metadata,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			string(core.QueueStatusPending),
			now,
			string(core.QueueStatusInProgress),
			now,
			string(core.QueueStatusPending),
		).Scan(ctx, &records)
	})
	if err != nil {
		return core.DocumentQueueItem{}, false, err
	}
	if len(records) == 0 {
		return core.DocumentQueueItem{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *DocumentQueueStore) Complete(ctx context.Context, id string) (core.DocumentQueueItem, error) {
	if s == nil || s.db == nil {
		return core.DocumentQueueItem{}, fmt.Errorf("sqlstore: document queue store is not configured")
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return core.DocumentQueueItem{}, err
	}
	now := time.Now().UTC()
	if err := item.TransitionTo(core.QueueStatusCompleted, now); err != nil {
		return core.DocumentQueueItem{}, err
	}
	item.NextRetryAt = nil
	_, err = s.db.NewUpdate().
		Model((*documentQueueRecord)(nil)).
		Set("status = ?", string(core.QueueStatusCompleted)).
		Set("next_retry_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", item.ID).
		Exec(ctx)
	if err != nil {
		return core.DocumentQueueItem{}, err
	}
	return item, nil
}

func (s *DocumentQueueStore) Fail(ctx context.Context, id string, update core.FailQueueUpdate) (core.DocumentQueueItem, error) {
	if s == nil || s.db == nil {
		return core.DocumentQueueItem{}, fmt.Errorf("sqlstore: document queue store is not configured")
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return core.DocumentQueueItem{}, err
	}
	now := time.Now().UTC()
	item.Attempts++
	item.ErrorMessage = update.ErrorMessage
	if update.NextRetryAt != nil {
		retryAt := update.NextRetryAt.UTC()
		item.Status = core.QueueStatusPending
		item.NextRetryAt = &retryAt
	} else {
		item.Status = core.QueueStatusFailed
		item.NextRetryAt = nil
	}
	item.UpdatedAt = now

	_, err = s.db.NewUpdate().
		Model((*documentQueueRecord)(nil)).
		Set("status = ?", string(item.Status)).
		Set("attempts = ?", item.Attempts).
		Set("next_retry_at = ?", item.NextRetryAt).
		Set("error_message = ?", item.ErrorMessage).
		Set("updated_at = ?", now).
		Where("id = ?", item.ID).
		Exec(ctx)
	if err != nil {
		return core.DocumentQueueItem{}, err
	}
	return item, nil
}

// Retry mirrors the sync queue rules: max_attempts stays the configured
// constant and a non-reset retry keeps its attempts and backoff gate.
func (s *DocumentQueueStore) Retry(ctx context.Context, id string, update core.RetryQueueUpdate) (core.DocumentQueueItem, error) {
	if s == nil || s.db == nil {
		return core.DocumentQueueItem{}, fmt.Errorf("sqlstore: document queue store is not configured")
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return core.DocumentQueueItem{}, err
	}
	if item.Status != core.QueueStatusFailed {
		return core.DocumentQueueItem{}, fmt.Errorf("%w: %s is %s", core.ErrQueueItemNotRetryable, id, item.Status)
	}
	now := time.Now().UTC()
	if update.ResetAttempts {
		item.Attempts = 0
		item.NextRetryAt = nil
	} else if update.NextRetryAt != nil {
		retryAt := update.NextRetryAt.UTC()
		item.NextRetryAt = &retryAt
	} else {
		item.NextRetryAt = nil
	}
	item.Status = core.QueueStatusPending
	item.UpdatedAt = now

	result, err := s.db.NewUpdate().
		Model((*documentQueueRecord)(nil)).
		Set("status = ?", string(core.QueueStatusPending)).
		Set("attempts = ?", item.Attempts).
		Set("next_retry_at = ?", item.NextRetryAt).
		Set("updated_at = ?", now).
		Where("id = ?", item.ID).
		Where("status = ?", string(core.QueueStatusFailed)).
		Exec(ctx)
	if err != nil {
		return core.DocumentQueueItem{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.DocumentQueueItem{}, err
	}
	if affected == 0 {
		return core.DocumentQueueItem{}, fmt.Errorf("%w: %s", core.ErrQueueItemNotRetryable, id)
	}
	return item, nil
}

// Cancel applies only while the item is still pending.
func (s *DocumentQueueStore) Cancel(ctx context.Context, id string) (core.DocumentQueueItem, error) {
	if s == nil || s.db == nil {
		return core.DocumentQueueItem{}, fmt.Errorf("sqlstore: document queue store is not configured")
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return core.DocumentQueueItem{}, err
	}
	if item.Status != core.QueueStatusPending {
		return core.DocumentQueueItem{}, fmt.Errorf("%w: %s is %s", core.ErrQueueItemNotCancellable, id, item.Status)
	}
	now := time.Now().UTC()
	item.Status = core.QueueStatusCancelled
	item.NextRetryAt = nil
	item.UpdatedAt = now

	result, err := s.db.NewUpdate().
		Model((*documentQueueRecord)(nil)).
		Set("status = ?", string(core.QueueStatusCancelled)).
		Set("next_retry_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", item.ID).
		Where("status = ?", string(core.QueueStatusPending)).
		Exec(ctx)
	if err != nil {
		return core.DocumentQueueItem{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.DocumentQueueItem{}, err
	}
	if affected == 0 {
		return core.DocumentQueueItem{}, fmt.Errorf("%w: %s", core.ErrQueueItemNotCancellable, id)
	}
	return item, nil
}

func (s *DocumentQueueStore) List(ctx context.Context, filter core.DocumentQueueFilter) (core.DocumentQueuePage, error) {
	if s == nil || s.db == nil {
		return core.DocumentQueuePage{}, fmt.Errorf("sqlstore: document queue store is not configured")
	}
	page, perPage := normalizePage(filter.Page, filter.PerPage)

	query := s.db.NewSelect().Model((*documentQueueRecord)(nil))
	if filter.Operation != "" {
		query = query.Where("?TableAlias.operation = ?", string(filter.Operation))
	}
	if filter.Status != "" {
		query = query.Where("?TableAlias.status = ?", string(filter.Status))
	}

	var records []documentQueueRecord
	total, err := query.
		Order("created_at ASC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		ScanAndCount(ctx, &records)
	if err != nil {
		return core.DocumentQueuePage{}, err
	}

	items := make([]core.DocumentQueueItem, 0, len(records))
	for i := range records {
		items = append(items, records[i].toDomain())
	}
	return core.DocumentQueuePage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasMore: page*perPage < total,
	}, nil
}

func (s *DocumentQueueStore) Stats(ctx context.Context) (core.QueueStats, error) {
	if s == nil || s.db == nil {
		return core.QueueStats{}, fmt.Errorf("sqlstore: document queue store is not configured")
	}
	return queueStatsByStatus(ctx, s.db, (*documentQueueRecord)(nil))
}

func (s *DocumentQueueStore) ReapStale(ctx context.Context, olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: document queue store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*documentQueueRecord)(nil)).
		Set("status = ?", string(core.QueueStatusPending)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("status = ?", string(core.QueueStatusInProgress)).
		Where("updated_at < ?", olderThan.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *DocumentQueueStore) findActive(ctx context.Context, documentID string) (core.DocumentQueueItem, error) {
	record := &documentQueueRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.document_id = ?", strings.TrimSpace(documentID)).
		Where("?TableAlias.status IN (?, ?)", string(core.QueueStatusPending), string(core.QueueStatusInProgress)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.DocumentQueueItem{}, fmt.Errorf(
				"%w: no active item for document %s",
				core.ErrQueueItemNotFound, documentID,
			)
		}
		return core.DocumentQueueItem{}, err
	}
	return record.toDomain(), nil
}
