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

type ConflictStore struct {
	db   *bun.DB
	repo repository.Repository[*syncConflictRecord]
}

func NewConflictStore(db *bun.DB) (*ConflictStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncConflictRecord](db, syncConflictHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid conflict repository wiring: %w", err)
		}
	}
	return &ConflictStore{db: db, repo: repo}, nil
}

func (s *ConflictStore) Create(ctx context.Context, conflict core.SyncConflict) (core.SyncConflict, error) {
	if s == nil || s.db == nil {
		return core.SyncConflict{}, fmt.Errorf("sqlstore: conflict store is not configured")
	}
	if strings.TrimSpace(conflict.ID) == "" {
		conflict.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if conflict.DetectedAt.IsZero() {
		conflict.DetectedAt = now
	}
	record := newSyncConflictRecord(conflict, now)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.SyncConflict{}, err
	}
	return record.toDomain(), nil
}

func (s *ConflictStore) Get(ctx context.Context, id string) (core.SyncConflict, error) {
	if s == nil || s.db == nil {
		return core.SyncConflict{}, fmt.Errorf("sqlstore: conflict store is not configured")
	}
	record := &syncConflictRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.SyncConflict{}, fmt.Errorf("%w: id %q", core.ErrConflictNotFound, id)
		}
		return core.SyncConflict{}, err
	}
	return record.toDomain(), nil
}

func (s *ConflictStore) List(ctx context.Context, filter core.ConflictFilter) (core.ConflictPage, error) {
	if s == nil || s.db == nil {
		return core.ConflictPage{}, fmt.Errorf("sqlstore: conflict store is not configured")
	}
	page, perPage := normalizePage(filter.Page, filter.PerPage)

	query := s.db.NewSelect().Model((*syncConflictRecord)(nil))
	if filter.EntityType != "" {
		query = query.Where("?TableAlias.entity_type = ?", string(filter.EntityType))
	}
	if filter.Resolved != nil {
		if *filter.Resolved {
			query = query.Where("?TableAlias.resolved_at IS NOT NULL")
		} else {
			query = query.Where("?TableAlias.resolved_at IS NULL")
		}
	}

	var records []syncConflictRecord
	total, err := query.
		Order("created_at ASC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		ScanAndCount(ctx, &records)
	if err != nil {
		return core.ConflictPage{}, err
	}

	items := make([]core.SyncConflict, 0, len(records))
	for i := range records {
		items = append(items, records[i].toDomain())
	}
	return core.ConflictPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasMore: page*perPage < total,
	}, nil
}

// Resolve flips the row exactly once. The write is conditional on
// resolved_at still being null so two racing resolutions cannot both win.
func (s *ConflictStore) Resolve(ctx context.Context, id string, update core.ResolveConflictUpdate) (core.SyncConflict, error) {
	if s == nil || s.db == nil {
		return core.SyncConflict{}, fmt.Errorf("sqlstore: conflict store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.SyncConflict{}, fmt.Errorf("sqlstore: conflict id is required")
	}
	resolvedAt := update.ResolvedAt.UTC()
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}

	result, err := s.db.NewUpdate().
		Model((*syncConflictRecord)(nil)).
		Set("resolved_at = ?", resolvedAt).
		Set("resolution_type = ?", string(update.ResolutionType)).
		Set("resolved_by = ?", update.ResolvedBy).
		Set("resolved_data = ?", copyAnyMap(update.ResolvedData)).
		Set("updated_at = ?", resolvedAt).
		Where("id = ?", id).
		Where("resolved_at IS NULL").
		Exec(ctx)
	if err != nil {
		return core.SyncConflict{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.SyncConflict{}, err
	}
	if affected == 0 {
		existing, getErr := s.Get(ctx, id)
		if getErr != nil {
			return core.SyncConflict{}, getErr
		}
		if existing.Resolved() {
			return core.SyncConflict{}, fmt.Errorf("%w: id %q", core.ErrConflictAlreadyResolved, id)
		}
		return core.SyncConflict{}, fmt.Errorf("sqlstore: conflict %q resolution was not applied", id)
	}
	return s.Get(ctx, id)
}

func (s *ConflictStore) Stats(ctx context.Context) (core.ConflictStats, error) {
	if s == nil || s.db == nil {
		return core.ConflictStats{}, fmt.Errorf("sqlstore: conflict store is not configured")
	}
	var rows []struct {
		Resolved bool `bun:"resolved"`
		Count    int  `bun:"count"`
	}
	err := s.db.NewSelect().
		Model((*syncConflictRecord)(nil)).
		ColumnExpr("resolved_at IS NOT NULL AS resolved").
		ColumnExpr("count(*) AS count").
		GroupExpr("resolved_at IS NOT NULL").
		Scan(ctx, &rows)
	if err != nil {
		return core.ConflictStats{}, err
	}
	stats := core.ConflictStats{}
	for _, row := range rows {
		if row.Resolved {
			stats.Resolved += row.Count
		} else {
			stats.Unresolved += row.Count
		}
	}
	return stats, nil
}

func normalizePage(page int, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 25
	}
	return page, perPage
}
