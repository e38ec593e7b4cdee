package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/npdadmin/syncengine/core"
)

type MutatingService interface {
	RecordConflict(ctx context.Context, input core.RecordConflictInput) (core.RecordConflictResult, error)
	ResolveConflict(ctx context.Context, conflictID string, req core.ResolutionRequest) (core.SyncConflict, error)
	BulkResolve(ctx context.Context, req core.BulkResolveRequest) (core.BulkResolveResult, error)
	EnqueueSync(ctx context.Context, input core.EnqueueSyncInput) (core.EnqueueSyncResult, error)
	RetrySync(ctx context.Context, id string, resetAttempts bool) (core.SyncQueueItem, error)
	EnqueueDocument(ctx context.Context, input core.EnqueueDocumentInput) (core.EnqueueDocumentResult, error)
	RetryDocument(ctx context.Context, id string, resetAttempts bool) (core.DocumentQueueItem, error)
	CancelDocument(ctx context.Context, id string) (core.DocumentQueueItem, error)
	ReapStaleSync(ctx context.Context) (int, error)
	ReapStaleDocuments(ctx context.Context) (int, error)
}

type RecordConflictCommand struct {
	service MutatingService
}

func NewRecordConflictCommand(service MutatingService) *RecordConflictCommand {
	return &RecordConflictCommand{service: service}
}

func (c *RecordConflictCommand) Execute(ctx context.Context, msg RecordConflictMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: conflict service is required")
	}
	out, err := c.service.RecordConflict(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ResolveConflictCommand struct {
	service MutatingService
}

func NewResolveConflictCommand(service MutatingService) *ResolveConflictCommand {
	return &ResolveConflictCommand{service: service}
}

func (c *ResolveConflictCommand) Execute(ctx context.Context, msg ResolveConflictMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: conflict service is required")
	}
	out, err := c.service.ResolveConflict(ctx, msg.ConflictID, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type BulkResolveCommand struct {
	service MutatingService
}

func NewBulkResolveCommand(service MutatingService) *BulkResolveCommand {
	return &BulkResolveCommand{service: service}
}

func (c *BulkResolveCommand) Execute(ctx context.Context, msg BulkResolveMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: conflict service is required")
	}
	out, err := c.service.BulkResolve(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EnqueueSyncCommand struct {
	service MutatingService
}

func NewEnqueueSyncCommand(service MutatingService) *EnqueueSyncCommand {
	return &EnqueueSyncCommand{service: service}
}

func (c *EnqueueSyncCommand) Execute(ctx context.Context, msg EnqueueSyncMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sync queue service is required")
	}
	out, err := c.service.EnqueueSync(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RetrySyncCommand struct {
	service MutatingService
}

func NewRetrySyncCommand(service MutatingService) *RetrySyncCommand {
	return &RetrySyncCommand{service: service}
}

func (c *RetrySyncCommand) Execute(ctx context.Context, msg RetrySyncMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sync queue service is required")
	}
	out, err := c.service.RetrySync(ctx, msg.ItemID, msg.ResetAttempts)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EnqueueDocumentCommand struct {
	service MutatingService
}

func NewEnqueueDocumentCommand(service MutatingService) *EnqueueDocumentCommand {
	return &EnqueueDocumentCommand{service: service}
}

func (c *EnqueueDocumentCommand) Execute(ctx context.Context, msg EnqueueDocumentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: document queue service is required")
	}
	out, err := c.service.EnqueueDocument(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RetryDocumentCommand struct {
	service MutatingService
}

func NewRetryDocumentCommand(service MutatingService) *RetryDocumentCommand {
	return &RetryDocumentCommand{service: service}
}

func (c *RetryDocumentCommand) Execute(ctx context.Context, msg RetryDocumentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: document queue service is required")
	}
	out, err := c.service.RetryDocument(ctx, msg.ItemID, msg.ResetAttempts)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CancelDocumentCommand struct {
	service MutatingService
}

func NewCancelDocumentCommand(service MutatingService) *CancelDocumentCommand {
	return &CancelDocumentCommand{service: service}
}

func (c *CancelDocumentCommand) Execute(ctx context.Context, msg CancelDocumentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: document queue service is required")
	}
	out, err := c.service.CancelDocument(ctx, msg.ItemID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// ReapStaleResult reports reclaimed items per queue.
type ReapStaleResult struct {
	SyncItems     int
	DocumentItems int
}

type ReapStaleCommand struct {
	service MutatingService
}

func NewReapStaleCommand(service MutatingService) *ReapStaleCommand {
	return &ReapStaleCommand{service: service}
}

func (c *ReapStaleCommand) Execute(ctx context.Context, _ ReapStaleMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: queue service is required")
	}
	syncReaped, err := c.service.ReapStaleSync(ctx)
	if err != nil {
		return err
	}
	documentReaped, err := c.service.ReapStaleDocuments(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, ReapStaleResult{
		SyncItems:     syncReaped,
		DocumentItems: documentReaped,
	})
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
