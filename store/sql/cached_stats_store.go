package sqlstore

import (
	"context"
	"fmt"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/npdadmin/syncengine/core"
)

const (
	conflictStatsCacheKey      = "syncengine::conflict_stats::v1"
	syncQueueStatsCacheKey     = "syncengine::sync_queue_stats::v1"
	documentQueueStatsCacheKey = "syncengine::document_queue_stats::v1"
)

// CachedStatsStore serves the dashboard counters from cache. Counts are
// aggregates over append-mostly tables, so a short TTL staleness window is
// acceptable; writers call Invalidate after mutating operations.
type CachedStatsStore struct {
	conflicts core.ConflictStore
	syncQueue core.SyncQueueStore
	documents core.DocumentQueueStore
	cache     repositorycache.CacheService
}

func NewCachedStatsStore(
	conflicts core.ConflictStore,
	syncQueue core.SyncQueueStore,
	documents core.DocumentQueueStore,
	cacheService repositorycache.CacheService,
) (*CachedStatsStore, error) {
	if conflicts == nil || syncQueue == nil || documents == nil {
		return nil, fmt.Errorf("sqlstore: all base stores are required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: stats cache service is required")
	}
	return &CachedStatsStore{
		conflicts: conflicts,
		syncQueue: syncQueue,
		documents: documents,
		cache:     cacheService,
	}, nil
}

func (s *CachedStatsStore) ConflictStats(ctx context.Context) (core.ConflictStats, error) {
	if s == nil || s.cache == nil {
		return core.ConflictStats{}, fmt.Errorf("sqlstore: cached stats store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, conflictStatsCacheKey, func(ctx context.Context) (core.ConflictStats, error) {
		return s.conflicts.Stats(ctx)
	})
}

func (s *CachedStatsStore) SyncQueueStats(ctx context.Context) (core.QueueStats, error) {
	if s == nil || s.cache == nil {
		return core.QueueStats{}, fmt.Errorf("sqlstore: cached stats store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, syncQueueStatsCacheKey, func(ctx context.Context) (core.QueueStats, error) {
		return s.syncQueue.Stats(ctx)
	})
}

func (s *CachedStatsStore) DocumentQueueStats(ctx context.Context) (core.QueueStats, error) {
	if s == nil || s.cache == nil {
		return core.QueueStats{}, fmt.Errorf("sqlstore: cached stats store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, documentQueueStatsCacheKey, func(ctx context.Context) (core.QueueStats, error) {
		return s.documents.Stats(ctx)
	})
}

func (s *CachedStatsStore) Invalidate(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached stats store is not configured")
	}
	for _, key := range []string{conflictStatsCacheKey, syncQueueStatsCacheKey, documentQueueStatsCacheKey} {
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
