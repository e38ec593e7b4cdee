package query

import (
	"context"

	"github.com/npdadmin/syncengine/core"
)

type ConflictReader interface {
	GetConflict(ctx context.Context, id string) (core.SyncConflict, error)
	ListConflicts(ctx context.Context, filter core.ConflictFilter) (core.ConflictPage, error)
	ConflictStatistics(ctx context.Context) (core.ConflictStats, error)
}

type SyncQueueReader interface {
	GetSyncItem(ctx context.Context, id string) (core.SyncQueueItem, error)
	ListSyncQueue(ctx context.Context, filter core.SyncQueueFilter) (core.SyncQueuePage, error)
	SyncQueueStatistics(ctx context.Context) (core.QueueStats, error)
}

type DocumentQueueReader interface {
	GetDocumentItem(ctx context.Context, id string) (core.DocumentQueueItem, error)
	ListDocumentQueue(ctx context.Context, filter core.DocumentQueueFilter) (core.DocumentQueuePage, error)
	DocumentQueueStatistics(ctx context.Context) (core.QueueStats, error)
}

type GetConflictQuery struct {
	reader ConflictReader
}

func NewGetConflictQuery(reader ConflictReader) *GetConflictQuery {
	return &GetConflictQuery{reader: reader}
}

func (q *GetConflictQuery) Query(ctx context.Context, msg GetConflictMessage) (core.SyncConflict, error) {
	if q == nil || q.reader == nil {
		return core.SyncConflict{}, queryDependencyError("query: conflict reader is required")
	}
	return q.reader.GetConflict(ctx, msg.ConflictID)
}

type ListConflictsQuery struct {
	reader ConflictReader
}

func NewListConflictsQuery(reader ConflictReader) *ListConflictsQuery {
	return &ListConflictsQuery{reader: reader}
}

func (q *ListConflictsQuery) Query(ctx context.Context, msg ListConflictsMessage) (core.ConflictPage, error) {
	if q == nil || q.reader == nil {
		return core.ConflictPage{}, queryDependencyError("query: conflict reader is required")
	}
	return q.reader.ListConflicts(ctx, msg.Filter)
}

type ConflictStatsQuery struct {
	reader ConflictReader
}

func NewConflictStatsQuery(reader ConflictReader) *ConflictStatsQuery {
	return &ConflictStatsQuery{reader: reader}
}

func (q *ConflictStatsQuery) Query(ctx context.Context, _ ConflictStatsMessage) (core.ConflictStats, error) {
	if q == nil || q.reader == nil {
		return core.ConflictStats{}, queryDependencyError("query: conflict reader is required")
	}
	return q.reader.ConflictStatistics(ctx)
}

type GetSyncItemQuery struct {
	reader SyncQueueReader
}

func NewGetSyncItemQuery(reader SyncQueueReader) *GetSyncItemQuery {
	return &GetSyncItemQuery{reader: reader}
}

func (q *GetSyncItemQuery) Query(ctx context.Context, msg GetSyncItemMessage) (core.SyncQueueItem, error) {
	if q == nil || q.reader == nil {
		return core.SyncQueueItem{}, queryDependencyError("query: sync queue reader is required")
	}
	return q.reader.GetSyncItem(ctx, msg.ItemID)
}

type ListSyncQueueQuery struct {
	reader SyncQueueReader
}

func NewListSyncQueueQuery(reader SyncQueueReader) *ListSyncQueueQuery {
	return &ListSyncQueueQuery{reader: reader}
}

func (q *ListSyncQueueQuery) Query(ctx context.Context, msg ListSyncQueueMessage) (core.SyncQueuePage, error) {
	if q == nil || q.reader == nil {
		return core.SyncQueuePage{}, queryDependencyError("query: sync queue reader is required")
	}
	return q.reader.ListSyncQueue(ctx, msg.Filter)
}

type SyncQueueStatsQuery struct {
	reader SyncQueueReader
}

func NewSyncQueueStatsQuery(reader SyncQueueReader) *SyncQueueStatsQuery {
	return &SyncQueueStatsQuery{reader: reader}
}

func (q *SyncQueueStatsQuery) Query(ctx context.Context, _ SyncQueueStatsMessage) (core.QueueStats, error) {
	if q == nil || q.reader == nil {
		return core.QueueStats{}, queryDependencyError("query: sync queue reader is required")
	}
	return q.reader.SyncQueueStatistics(ctx)
}

type GetDocumentItemQuery struct {
	reader DocumentQueueReader
}

func NewGetDocumentItemQuery(reader DocumentQueueReader) *GetDocumentItemQuery {
	return &GetDocumentItemQuery{reader: reader}
}

func (q *GetDocumentItemQuery) Query(ctx context.Context, msg GetDocumentItemMessage) (core.DocumentQueueItem, error) {
	if q == nil || q.reader == nil {
		return core.DocumentQueueItem{}, queryDependencyError("query: document queue reader is required")
	}
	return q.reader.GetDocumentItem(ctx, msg.ItemID)
}

type ListDocumentQueueQuery struct {
	reader DocumentQueueReader
}

func NewListDocumentQueueQuery(reader DocumentQueueReader) *ListDocumentQueueQuery {
	return &ListDocumentQueueQuery{reader: reader}
}

func (q *ListDocumentQueueQuery) Query(ctx context.Context, msg ListDocumentQueueMessage) (core.DocumentQueuePage, error) {
	if q == nil || q.reader == nil {
		return core.DocumentQueuePage{}, queryDependencyError("query: document queue reader is required")
	}
	return q.reader.ListDocumentQueue(ctx, msg.Filter)
}

type DocumentQueueStatsQuery struct {
	reader DocumentQueueReader
}

func NewDocumentQueueStatsQuery(reader DocumentQueueReader) *DocumentQueueStatsQuery {
	return &DocumentQueueStatsQuery{reader: reader}
}

func (q *DocumentQueueStatsQuery) Query(ctx context.Context, _ DocumentQueueStatsMessage) (core.QueueStats, error) {
	if q == nil || q.reader == nil {
		return core.QueueStats{}, queryDependencyError("query: document queue reader is required")
	}
	return q.reader.DocumentQueueStatistics(ctx)
}
