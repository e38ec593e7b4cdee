package syncengine

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"
	synccommand "github.com/npdadmin/syncengine/command"
	"github.com/npdadmin/syncengine/core"
	syncquery "github.com/npdadmin/syncengine/query"
)

func TestNewFacade_RequiresService(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected error for missing service")
	}
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.RecordConflict == nil || commands.ResolveConflict == nil ||
		commands.BulkResolve == nil || commands.EnqueueSync == nil ||
		commands.RetrySync == nil || commands.EnqueueDocument == nil ||
		commands.RetryDocument == nil || commands.CancelDocument == nil ||
		commands.ReapStale == nil {
		t.Fatalf("expected command handlers to be wired")
	}

	queries := facade.Queries()
	if queries.GetConflict == nil || queries.ListConflicts == nil ||
		queries.ConflictStats == nil || queries.GetSyncItem == nil ||
		queries.ListSyncQueue == nil || queries.SyncQueueStats == nil ||
		queries.GetDocumentItem == nil || queries.ListDocumentQueue == nil ||
		queries.DocumentQueueStats == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[core.SyncQueueItem]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().RetrySync.Execute(ctx, synccommand.RetrySyncMessage{
		ItemID:        "item_1",
		ResetAttempts: true,
	}); err != nil {
		t.Fatalf("execute retry sync: %v", err)
	}
	if svc.lastRetryID != "item_1" || !svc.lastRetryReset {
		t.Fatalf("unexpected retry delegation: id=%q reset=%v", svc.lastRetryID, svc.lastRetryReset)
	}
	item, ok := collector.Load()
	if !ok || item.ID != "item_1" {
		t.Fatalf("unexpected retry result: %#v ok=%v", item, ok)
	}

	stats, err := facade.Queries().SyncQueueStats.Query(context.Background(), syncquery.SyncQueueStatsMessage{})
	if err != nil {
		t.Fatalf("query sync queue stats: %v", err)
	}
	if stats.Pending != 4 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

type stubFacadeService struct {
	lastRetryID    string
	lastRetryReset bool
}

func (s *stubFacadeService) RecordConflict(_ context.Context, input core.RecordConflictInput) (core.RecordConflictResult, error) {
	return core.RecordConflictResult{Conflict: core.SyncConflict{
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
	}}, nil
}

func (s *stubFacadeService) ResolveConflict(_ context.Context, conflictID string, req core.ResolutionRequest) (core.SyncConflict, error) {
	return core.SyncConflict{ID: conflictID, ResolutionType: req.Type}, nil
}

func (s *stubFacadeService) BulkResolve(_ context.Context, req core.BulkResolveRequest) (core.BulkResolveResult, error) {
	return core.BulkResolveResult{Succeeded: len(req.ConflictIDs)}, nil
}

func (s *stubFacadeService) EnqueueSync(_ context.Context, input core.EnqueueSyncInput) (core.EnqueueSyncResult, error) {
	return core.EnqueueSyncResult{Item: core.SyncQueueItem{
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Direction:  input.Direction,
	}}, nil
}

func (s *stubFacadeService) RetrySync(_ context.Context, id string, resetAttempts bool) (core.SyncQueueItem, error) {
	s.lastRetryID = id
	s.lastRetryReset = resetAttempts
	return core.SyncQueueItem{ID: id, Status: core.QueueStatusPending}, nil
}

func (s *stubFacadeService) EnqueueDocument(_ context.Context, input core.EnqueueDocumentInput) (core.EnqueueDocumentResult, error) {
	return core.EnqueueDocumentResult{Item: core.DocumentQueueItem{DocumentID: input.DocumentID}}, nil
}

func (s *stubFacadeService) RetryDocument(_ context.Context, id string, _ bool) (core.DocumentQueueItem, error) {
	return core.DocumentQueueItem{ID: id, Status: core.QueueStatusPending}, nil
}

func (s *stubFacadeService) CancelDocument(_ context.Context, id string) (core.DocumentQueueItem, error) {
	return core.DocumentQueueItem{ID: id, Status: core.QueueStatusCancelled}, nil
}

func (s *stubFacadeService) ReapStaleSync(context.Context) (int, error) {
	return 0, nil
}

func (s *stubFacadeService) ReapStaleDocuments(context.Context) (int, error) {
	return 0, nil
}

func (s *stubFacadeService) GetConflict(_ context.Context, id string) (core.SyncConflict, error) {
	return core.SyncConflict{ID: id}, nil
}

func (s *stubFacadeService) ListConflicts(context.Context, core.ConflictFilter) (core.ConflictPage, error) {
	return core.ConflictPage{}, nil
}

func (s *stubFacadeService) ConflictStatistics(context.Context) (core.ConflictStats, error) {
	return core.ConflictStats{}, nil
}

func (s *stubFacadeService) GetSyncItem(_ context.Context, id string) (core.SyncQueueItem, error) {
	return core.SyncQueueItem{ID: id}, nil
}

func (s *stubFacadeService) ListSyncQueue(context.Context, core.SyncQueueFilter) (core.SyncQueuePage, error) {
	return core.SyncQueuePage{}, nil
}

func (s *stubFacadeService) SyncQueueStatistics(context.Context) (core.QueueStats, error) {
	return core.QueueStats{Pending: 4}, nil
}

func (s *stubFacadeService) GetDocumentItem(_ context.Context, id string) (core.DocumentQueueItem, error) {
	return core.DocumentQueueItem{ID: id}, nil
}

func (s *stubFacadeService) ListDocumentQueue(context.Context, core.DocumentQueueFilter) (core.DocumentQueuePage, error) {
	return core.DocumentQueuePage{}, nil
}

func (s *stubFacadeService) DocumentQueueStatistics(context.Context) (core.QueueStats, error) {
	return core.QueueStats{}, nil
}

var _ CommandQueryService = (*stubFacadeService)(nil)
