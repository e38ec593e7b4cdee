package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/npdadmin/syncengine/core"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type ConflictService interface {
	ListConflicts(ctx context.Context, filter core.ConflictFilter) (core.ConflictPage, error)
	ConflictStatistics(ctx context.Context) (core.ConflictStats, error)
	ResolveConflict(ctx context.Context, conflictID string, req core.ResolutionRequest) (core.SyncConflict, error)
	BulkResolve(ctx context.Context, req core.BulkResolveRequest) (core.BulkResolveResult, error)
}

type SyncQueueService interface {
	ListSyncQueue(ctx context.Context, filter core.SyncQueueFilter) (core.SyncQueuePage, error)
	SyncQueueStatistics(ctx context.Context) (core.QueueStats, error)
	RetrySync(ctx context.Context, id string, resetAttempts bool) (core.SyncQueueItem, error)
}

type DocumentQueueService interface {
	ListDocumentQueue(ctx context.Context, filter core.DocumentQueueFilter) (core.DocumentQueuePage, error)
	DocumentQueueStatistics(ctx context.Context) (core.QueueStats, error)
	RetryDocument(ctx context.Context, id string, resetAttempts bool) (core.DocumentQueueItem, error)
	CancelDocument(ctx context.Context, id string) (core.DocumentQueueItem, error)
}

// EngineService is the slice of the engine the admin API needs. *core.Service
// satisfies it.
type EngineService interface {
	ConflictService
	SyncQueueService
	DocumentQueueService
}

type Deps struct {
	Service    EngineService
	Logger     core.Logger
	Authorizer Authorizer
}

// NewRouter builds the admin API surface. Every route passes through the
// Authorizer hook before reaching its handler.
func NewRouter(deps Deps) (http.Handler, error) {
	if deps.Service == nil {
		return nil, fmt.Errorf("rest: engine service is required")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(deps.Logger))
	r.Use(authorize(deps.Authorizer))

	r.GET("/healthz", func(c *gin.Context) {
		c.PureJSON(http.StatusOK, gin.H{"status": "ok"})
	})

	conflicts := NewConflictHandler(deps.Service)
	syncQueue := NewSyncQueueHandler(deps.Service)
	documents := NewDocumentQueueHandler(deps.Service)

	sync := r.Group("/sync")
	{
		sync.GET("/conflicts", conflicts.List)
		sync.GET("/conflicts/stats", conflicts.Stats)
		sync.POST("/conflicts/:id/resolve", conflicts.Resolve)
		sync.POST("/conflicts/bulk-resolve", conflicts.BulkResolve)

		sync.GET("/queue", syncQueue.List)
		sync.GET("/queue/stats", syncQueue.Stats)
		sync.POST("/queue/:id/retry", syncQueue.Retry)
	}

	docs := r.Group("/documents")
	{
		docs.GET("/queue", documents.List)
		docs.GET("/queue/stats", documents.Stats)
		docs.POST("/queue/:id/retry", documents.Retry)
		docs.POST("/queue/:id/cancel", documents.Cancel)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, errorResponse{
			Error:   core.SyncErrorNotFound,
			Message: "route not found",
		})
	})

	return r.Handler(), nil
}
