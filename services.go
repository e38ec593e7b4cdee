package syncengine

import "github.com/npdadmin/syncengine/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type ConflictStore = core.ConflictStore
type SyncQueueStore = core.SyncQueueStore
type DocumentQueueStore = core.DocumentQueueStore
type AuditOutboxStore = core.AuditOutboxStore
type AuditEventBus = core.AuditEventBus
type RateLimitClassifier = core.RateLimitClassifier
type RetryScheduler = core.RetryScheduler

type SyncConflict = core.SyncConflict
type SyncQueueItem = core.SyncQueueItem
type DocumentQueueItem = core.DocumentQueueItem
type AuditEvent = core.AuditEvent

type RecordConflictInput = core.RecordConflictInput
type ResolutionRequest = core.ResolutionRequest
type BulkResolveRequest = core.BulkResolveRequest
type EnqueueSyncInput = core.EnqueueSyncInput
type EnqueueDocumentInput = core.EnqueueDocumentInput

var (
	WithLogger              = core.WithLogger
	WithLoggerProvider      = core.WithLoggerProvider
	WithMetricsRecorder     = core.WithMetricsRecorder
	WithErrorFactory        = core.WithErrorFactory
	WithErrorMapper         = core.WithErrorMapper
	WithConfigProvider      = core.WithConfigProvider
	WithOptionsResolver     = core.WithOptionsResolver
	WithPersistenceClient   = core.WithPersistenceClient
	WithRepositoryFactory   = core.WithRepositoryFactory
	WithConflictStore       = core.WithConflictStore
	WithSyncQueueStore      = core.WithSyncQueueStore
	WithDocumentQueueStore  = core.WithDocumentQueueStore
	WithAuditEventBus       = core.WithAuditEventBus
	WithRateLimitClassifier = core.WithRateLimitClassifier
	WithRetryScheduler      = core.WithRetryScheduler
	WithIDGenerator         = core.WithIDGenerator
	WithClock               = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
