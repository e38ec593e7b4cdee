package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// RecordConflictInput captures a detected divergence before it becomes a
// ledger row. ConflictFields may be empty; the service diffs the snapshots
// itself when it is.
type RecordConflictInput struct {
	EntityType     EntityType
	EntityID       string
	InternalData   map[string]any
	ExternalData   map[string]any
	ConflictFields []string
	Metadata       map[string]any
}

// ResolutionRequest is an operator's decision for one conflict.
// MergeSelections is required when Type is merge and must cover every
// conflicting field exactly once.
type ResolutionRequest struct {
	Type            ResolutionType
	MergeSelections map[string]FieldSide
	ResolvedBy      string
}

type BulkResolveOutcome struct {
	ConflictID string
	Err        error
}

// BulkResolveResult reports per-conflict outcomes in request order.
type BulkResolveResult struct {
	Succeeded int
	Failed    int
	Results   []BulkResolveOutcome
}

type ConflictFilter struct {
	EntityType EntityType
	Resolved   *bool
	Page       int
	PerPage    int
}

type ConflictPage struct {
	Items   []SyncConflict
	Page    int
	PerPage int
	Total   int
	HasMore bool
}

type ConflictStats struct {
	Unresolved int
	Resolved   int
}

// ResolveConflictUpdate is the store-level write for a resolution. The store
// applies it only while resolved_at is still null and reports
// ErrConflictAlreadyResolved otherwise.
type ResolveConflictUpdate struct {
	ResolutionType ResolutionType
	ResolvedBy     string
	ResolvedData   map[string]any
	ResolvedAt     time.Time
}

type ConflictStore interface {
	Create(ctx context.Context, conflict SyncConflict) (SyncConflict, error)
	Get(ctx context.Context, id string) (SyncConflict, error)
	List(ctx context.Context, filter ConflictFilter) (ConflictPage, error)
	Resolve(ctx context.Context, id string, update ResolveConflictUpdate) (SyncConflict, error)
	Stats(ctx context.Context) (ConflictStats, error)
}

// EnqueueSyncInput describes one propagation request. Enqueue is idempotent
// per active (entity_type, entity_id, direction) tuple.
type EnqueueSyncInput struct {
	EntityType EntityType
	EntityID   string
	Direction  SyncDirection
	Operation  SyncOperation
	ConflictID string
	Metadata   map[string]any
}

type SyncQueueFilter struct {
	EntityType EntityType
	Direction  SyncDirection
	Status     QueueStatus
	Page       int
	PerPage    int
}

type SyncQueuePage struct {
	Items   []SyncQueueItem
	Page    int
	PerPage int
	Total   int
	HasMore bool
}

type QueueStats struct {
	Pending    int
	InProgress int
	Completed  int
	Failed     int
}

// FailQueueUpdate records one failed attempt. A nil NextRetryAt dead-letters
// the item; otherwise it returns to pending and becomes claimable at that
// time.
type FailQueueUpdate struct {
	ErrorMessage string
	NextRetryAt  *time.Time
}

// RetryQueueUpdate re-arms a dead-lettered item. ResetAttempts restores the
// full attempt budget and immediate claimability; otherwise the attempt count
// survives and NextRetryAt gates the next claim. MaxAttempts is never touched.
type RetryQueueUpdate struct {
	ResetAttempts bool
	NextRetryAt   *time.Time
}

type SyncQueueStore interface {
	Enqueue(ctx context.Context, item SyncQueueItem) (SyncQueueItem, bool, error)
	Get(ctx context.Context, id string) (SyncQueueItem, error)
	ClaimNext(ctx context.Context, now time.Time) (SyncQueueItem, bool, error)
	Complete(ctx context.Context, id string) (SyncQueueItem, error)
	Fail(ctx context.Context, id string, update FailQueueUpdate) (SyncQueueItem, error)
	Retry(ctx context.Context, id string, update RetryQueueUpdate) (SyncQueueItem, error)
	List(ctx context.Context, filter SyncQueueFilter) (SyncQueuePage, error)
	Stats(ctx context.Context) (QueueStats, error)
	ReapStale(ctx context.Context, olderThan time.Time) (int, error)
}

type EnqueueDocumentInput struct {
	DocumentID string
	Operation  DocumentOperation
	Metadata   map[string]any
}

type DocumentQueueFilter struct {
	Operation DocumentOperation
	Status    QueueStatus
	Page      int
	PerPage   int
}

type DocumentQueuePage struct {
	Items   []DocumentQueueItem
	Page    int
	PerPage int
	Total   int
	HasMore bool
}

type DocumentQueueStore interface {
	Enqueue(ctx context.Context, item DocumentQueueItem) (DocumentQueueItem, bool, error)
	Get(ctx context.Context, id string) (DocumentQueueItem, error)
	ClaimNext(ctx context.Context, now time.Time) (DocumentQueueItem, bool, error)
	Complete(ctx context.Context, id string) (DocumentQueueItem, error)
	Fail(ctx context.Context, id string, update FailQueueUpdate) (DocumentQueueItem, error)
	Retry(ctx context.Context, id string, update RetryQueueUpdate) (DocumentQueueItem, error)
	Cancel(ctx context.Context, id string) (DocumentQueueItem, error)
	List(ctx context.Context, filter DocumentQueueFilter) (DocumentQueuePage, error)
	Stats(ctx context.Context) (QueueStats, error)
	ReapStale(ctx context.Context, olderThan time.Time) (int, error)
}

type AuditEventHandler interface {
	Handle(ctx context.Context, event AuditEvent) error
}

// AuditEventBus delivers audit events to registered sinks. The durable
// implementation enqueues into the outbox; tests use a recording bus.
type AuditEventBus interface {
	Publish(ctx context.Context, event AuditEvent) error
	Subscribe(handler AuditEventHandler)
}

type AuditDispatchStats struct {
	Claimed   int
	Delivered int
	Retried   int
	Failed    int
}

type AuditOutboxStore interface {
	Enqueue(ctx context.Context, event AuditEvent) error
	ClaimBatch(ctx context.Context, limit int) ([]AuditEvent, error)
	Ack(ctx context.Context, eventID string) error
	Retry(ctx context.Context, eventID string, cause error, nextAttemptAt time.Time) error
}

// RateLimitClassifier decides whether a propagation failure was the external
// system throttling us, which selects the longer backoff curve.
type RateLimitClassifier interface {
	IsRateLimited(err error) bool
}

// StoreProvider bundles the persistence-backed stores the services need.
type StoreProvider interface {
	ConflictStore() ConflictStore
	SyncQueueStore() SyncQueueStore
	DocumentQueueStore() DocumentQueueStore
	AuditOutboxStore() AuditOutboxStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}
