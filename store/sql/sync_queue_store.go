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

type SyncQueueStore struct {
	db   *bun.DB
	repo repository.Repository[*syncQueueRecord]
}

func NewSyncQueueStore(db *bun.DB) (*SyncQueueStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncQueueRecord](db, syncQueueHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync queue repository wiring: %w", err)
		}
	}
	return &SyncQueueStore{db: db, repo: repo}, nil
}

// Enqueue inserts the item and relies on the partial unique index over active
// (entity_type, entity_id, direction) rows for idempotency. On a unique
// violation the already-active row is returned with created=false.
func (s *SyncQueueStore) Enqueue(ctx context.Context, item core.SyncQueueItem) (core.SyncQueueItem, bool, error) {
	if s == nil || s.db == nil {
		return core.SyncQueueItem{}, false, fmt.Errorf("sqlstore: sync queue store is not configured")
	}
	if strings.TrimSpace(item.ID) == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record := newSyncQueueRecord(item, now)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.findActive(ctx, item.EntityType, item.EntityID, item.Direction)
			if lookupErr != nil {
				return core.SyncQueueItem{}, false, lookupErr
			}
			return existing, false, nil
		}
		return core.SyncQueueItem{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *SyncQueueStore) Get(ctx context.Context, id string) (core.SyncQueueItem, error) {
	if s == nil || s.db == nil {
		return core.SyncQueueItem{}, fmt.Errorf("sqlstore: sync queue store is not configured")
	}
	record := &syncQueueRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.SyncQueueItem{}, fmt.Errorf("%w: id %q", core.ErrQueueItemNotFound, id)
		}
		return core.SyncQueueItem{}, err
	}
	return record.toDomain(), nil
}

// ClaimNext atomically moves the earliest-due pending item to in_progress.
// Items are ordered by their retry gate first, so a fresh item that became
// due earlier outranks an older item still walking a long backoff.
func (s *SyncQueueStore) ClaimNext(ctx context.Context, now time.Time) (core.SyncQueueItem, bool, error) {
	if s == nil || s.db == nil {
		return core.SyncQueueItem{}, false, fmt.Errorf("sqlstore: sync queue store is not configured")
	}
	now = now.UTC()
	var records []syncQueueRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM sync_queue_items
	WHERE status = ?
	  AND (next_retry_at IS NULL OR next_retry_at <= ?)
	ORDER BY next_retry_at ASC NULLS FIRST, created_at ASC
	LIMIT 1
)
UPDATE sync_queue_items
SET status = ?, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status = ?
RETURNING
	id,
	entity_type,
	entity_id,
	direction,
	operation,
	status,
	attempts,
	max_attempts,
	next_retry_at,
	error_message,
	conflict_id,
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
		return core.SyncQueueItem{}, false, err
	}
	if len(records) == 0 {
		return core.SyncQueueItem{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *SyncQueueStore) Complete(ctx context.Context, id string) (core.SyncQueueItem, error) {
	if s == nil || s.db == nil {
		return core.SyncQueueItem{}, fmt.Errorf("sqlstore: sync queue store is not configured")
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return core.SyncQueueItem{}, err
	}
	now := time.Now().UTC()
	if err := item.TransitionTo(core.QueueStatusCompleted, now); err != nil {
		return core.SyncQueueItem{}, err
	}
	item.NextRetryAt = nil
	_, err = s.db.NewUpdate().
		Model((*syncQueueRecord)(nil)).
		Set("status = ?", string(core.QueueStatusCompleted)).
		Set("next_retry_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", item.ID).
		Exec(ctx)
	if err != nil {
		return core.SyncQueueItem{}, err
	}
	return item, nil
}

// Fail records one failed attempt. A scheduled retry returns the row to
// pending with its claimability gate; a nil NextRetryAt dead-letters it,
// which also vacates the active uniqueness slot.
func (s *SyncQueueStore) Fail(ctx context.Context, id string, update core.FailQueueUpdate) (core.SyncQueueItem, error) {
	if s == nil || s.db == nil {
		return core.SyncQueueItem{}, fmt.Errorf("sqlstore: sync queue store is not configured")
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return core.SyncQueueItem{}, err
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
		Model((*syncQueueRecord)(nil)).
		Set("status = ?", string(item.Status)).
		Set("attempts = ?", item.Attempts).
		Set("next_retry_at = ?", item.NextRetryAt).
		Set("error_message = ?", item.ErrorMessage).
		Set("updated_at = ?", now).
		Where("id = ?", item.ID).
		Exec(ctx)
	if err != nil {
		return core.SyncQueueItem{}, err
	}
	return item, nil
}

// Retry returns a dead-lettered item to pending. The attempt budget is a
// configured constant, so max_attempts is left alone; without ResetAttempts
// the caller supplies the backoff gate for the preserved attempt count.
func (s *SyncQueueStore) Retry(ctx context.Context, id string, update core.RetryQueueUpdate) (core.SyncQueueItem, error) {
	if s == nil || s.db == nil {
		return core.SyncQueueItem{}, fmt.Errorf("sqlstore: sync queue store is not configured")
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return core.SyncQueueItem{}, err
	}
	if item.Status != core.QueueStatusFailed {
		return core.SyncQueueItem{}, fmt.Errorf("%w: %s is %s", core.ErrQueueItemNotRetryable, id, item.Status)
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
		Model((*syncQueueRecord)(nil)).
		Set("status = ?", string(core.QueueStatusPending)).
		Set("attempts = ?", item.Attempts).
		Set("next_retry_at = ?", item.NextRetryAt).
		Set("updated_at = ?", now).
		Where("id = ?", item.ID).
		Where("status = ?", string(core.QueueStatusFailed)).
		Exec(ctx)
	if err != nil {
		return core.SyncQueueItem{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.SyncQueueItem{}, err
	}
	if affected == 0 {
		return core.SyncQueueItem{}, fmt.Errorf("%w: %s", core.ErrQueueItemNotRetryable, id)
	}
	return item, nil
}

func (s *SyncQueueStore) List(ctx context.Context, filter core.SyncQueueFilter) (core.SyncQueuePage, error) {
	if s == nil || s.db == nil {
		return core.SyncQueuePage{}, fmt.Errorf("sqlstore: sync queue store is not configured")
	}
	page, perPage := normalizePage(filter.Page, filter.PerPage)

	query := s.db.NewSelect().Model((*syncQueueRecord)(nil))
	if filter.EntityType != "" {
		query = query.Where("?TableAlias.entity_type = ?", string(filter.EntityType))
	}
	if filter.Direction != "" {
		query = query.Where("?TableAlias.direction = ?", string(filter.Direction))
	}
	if filter.Status != "" {
		query = query.Where("?TableAlias.status = ?", string(filter.Status))
	}

	var records []syncQueueRecord
	total, err := query.
		Order("created_at ASC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		ScanAndCount(ctx, &records)
	if err != nil {
		return core.SyncQueuePage{}, err
	}

	items := make([]core.SyncQueueItem, 0, len(records))
	for i := range records {
		items = append(items, records[i].toDomain())
	}
	return core.SyncQueuePage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasMore: page*perPage < total,
	}, nil
}

func (s *SyncQueueStore) Stats(ctx context.Context) (core.QueueStats, error) {
	if s == nil || s.db == nil {
		return core.QueueStats{}, fmt.Errorf("sqlstore: sync queue store is not configured")
	}
	return queueStatsByStatus(ctx, s.db, (*syncQueueRecord)(nil))
}

// ReapStale returns abandoned in_progress items to pending so a crashed
// worker cannot strand them.
func (s *SyncQueueStore) ReapStale(ctx context.Context, olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: sync queue store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*syncQueueRecord)(nil)).
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

func (s *SyncQueueStore) findActive(
	ctx context.Context,
	entityType core.EntityType,
	entityID string,
	direction core.SyncDirection,
) (core.SyncQueueItem, error) {
	record := &syncQueueRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.entity_type = ?", string(entityType)).
		Where("?TableAlias.entity_id = ?", strings.TrimSpace(entityID)).
		Where("?TableAlias.direction = ?", string(direction)).
		Where("?TableAlias.status IN (?, ?)", string(core.QueueStatusPending), string(core.QueueStatusInProgress)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.SyncQueueItem{}, fmt.Errorf(
				"%w: no active item for %s %s %s",
				core.ErrQueueItemNotFound, entityType, entityID, direction,
			)
		}
		return core.SyncQueueItem{}, err
	}
	return record.toDomain(), nil
}

func queueStatsByStatus(ctx context.Context, db *bun.DB, model any) (core.QueueStats, error) {
	var rows []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}
	err := db.NewSelect().
		Model(model).
		Column("status").
		ColumnExpr("count(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return core.QueueStats{}, err
	}
	stats := core.QueueStats{}
	for _, row := range rows {
		switch core.QueueStatus(row.Status) {
		case core.QueueStatusPending:
			stats.Pending = row.Count
		case core.QueueStatusInProgress:
			stats.InProgress = row.Count
		case core.QueueStatusCompleted:
			stats.Completed = row.Count
		case core.QueueStatusFailed:
			stats.Failed = row.Count
		}
	}
	return stats, nil
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
