package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/npdadmin/syncengine/core"
)

func TestSyncWorker_ProcessOne_CompletesOnSuccess(t *testing.T) {
	item := core.SyncQueueItem{
		ID:         "item_1",
		EntityType: core.EntityTypeContact,
		EntityID:   "contact_1",
		Direction:  core.DirectionToExternal,
		Status:     core.QueueStatusInProgress,
	}
	completed := ""
	svc := &stubSyncService{
		claimFn: func(context.Context) (core.SyncQueueItem, bool, error) {
			return item, true, nil
		},
		completeFn: func(_ context.Context, id string) (core.SyncQueueItem, error) {
			completed = id
			return item, nil
		},
	}
	propagated := false
	w := newSyncWorker(t, svc, propagatorFunc(func(_ context.Context, got core.SyncQueueItem) error {
		propagated = true
		if got.ID != "item_1" {
			t.Fatalf("unexpected item %q", got.ID)
		}
		return nil
	}))

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("process one: %v", err)
	}
	if !processed || !propagated || completed != "item_1" {
		t.Fatalf("unexpected outcome: processed=%v propagated=%v completed=%q", processed, propagated, completed)
	}
}

func TestSyncWorker_ProcessOne_NoClaimableWork(t *testing.T) {
	svc := &stubSyncService{
		claimFn: func(context.Context) (core.SyncQueueItem, bool, error) {
			return core.SyncQueueItem{}, false, nil
		},
	}
	w := newSyncWorker(t, svc, propagatorFunc(func(context.Context, core.SyncQueueItem) error {
		t.Fatalf("propagator must not run without a claim")
		return nil
	}))

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("process one: %v", err)
	}
	if processed {
		t.Fatalf("expected no work")
	}
}

func TestSyncWorker_ProcessOne_RoutesFailureThroughFail(t *testing.T) {
	cause := fmt.Errorf("crm: 502 bad gateway")
	var failedID string
	var failedCause error
	svc := &stubSyncService{
		claimFn: func(context.Context) (core.SyncQueueItem, bool, error) {
			return core.SyncQueueItem{ID: "item_1"}, true, nil
		},
		failFn: func(_ context.Context, id string, failErr error) (core.SyncQueueItem, error) {
			failedID = id
			failedCause = failErr
			return core.SyncQueueItem{ID: id, Status: core.QueueStatusPending}, nil
		},
	}
	w := newSyncWorker(t, svc, propagatorFunc(func(context.Context, core.SyncQueueItem) error {
		return cause
	}))

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("process one: %v", err)
	}
	if !processed {
		t.Fatalf("expected a processed claim")
	}
	if failedID != "item_1" || failedCause != cause {
		t.Fatalf("unexpected fail routing: id=%q cause=%v", failedID, failedCause)
	}
}

func TestSyncWorker_ProcessOne_RecordsConflictThenFails(t *testing.T) {
	var recorded core.RecordConflictInput
	var failedCause error
	svc := &stubSyncService{
		claimFn: func(context.Context) (core.SyncQueueItem, bool, error) {
			return core.SyncQueueItem{
				ID:         "item_1",
				EntityType: core.EntityTypeContact,
				EntityID:   "contact_1",
			}, true, nil
		},
		recordConflictFn: func(_ context.Context, input core.RecordConflictInput) (core.RecordConflictResult, error) {
			recorded = input
			return core.RecordConflictResult{
				Conflict: core.SyncConflict{ID: "cfl_9"},
			}, nil
		},
		failFn: func(_ context.Context, id string, failErr error) (core.SyncQueueItem, error) {
			failedCause = failErr
			return core.SyncQueueItem{ID: id, Status: core.QueueStatusFailed}, nil
		},
	}
	w := newSyncWorker(t, svc, propagatorFunc(func(context.Context, core.SyncQueueItem) error {
		return &ConflictError{Input: core.RecordConflictInput{
			InternalData:   map[string]any{"email": "a@npd.test"},
			ExternalData:   map[string]any{"email": "b@crm.test"},
			ConflictFields: []string{"email"},
		}}
	}))

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("process one: %v", err)
	}
	if !processed {
		t.Fatalf("expected a processed claim")
	}
	if recorded.EntityType != core.EntityTypeContact || recorded.EntityID != "contact_1" {
		t.Fatalf("conflict input missing item identity: %#v", recorded)
	}
	if failedCause == nil || !strings.Contains(failedCause.Error(), "cfl_9") {
		t.Fatalf("expected fail cause to reference the conflict, got %v", failedCause)
	}
}

func TestSyncWorker_Run_StopsOnContextCancel(t *testing.T) {
	var mu sync.Mutex
	claims := 0
	svc := &stubSyncService{
		claimFn: func(context.Context) (core.SyncQueueItem, bool, error) {
			mu.Lock()
			claims++
			mu.Unlock()
			return core.SyncQueueItem{}, false, nil
		},
	}
	w := newSyncWorkerWithConfig(t, svc, propagatorFunc(func(context.Context, core.SyncQueueItem) error {
		return nil
	}), Config{PollInterval: time.Millisecond, Concurrency: 3})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	if claims == 0 {
		t.Fatalf("expected at least one poll")
	}
}

func TestDocumentWorker_ProcessOne(t *testing.T) {
	var completedID string
	var failedCause error
	svc := &stubDocumentService{
		claimFn: func(context.Context) (core.DocumentQueueItem, bool, error) {
			return core.DocumentQueueItem{ID: "ditem_1", DocumentID: "doc_1"}, true, nil
		},
		completeFn: func(_ context.Context, id string) (core.DocumentQueueItem, error) {
			completedID = id
			return core.DocumentQueueItem{ID: id, Status: core.QueueStatusCompleted}, nil
		},
		failFn: func(_ context.Context, id string, cause error) (core.DocumentQueueItem, error) {
			failedCause = cause
			return core.DocumentQueueItem{ID: id, Status: core.QueueStatusFailed}, nil
		},
	}

	w, err := NewDocumentWorker(svc, processorFunc(func(_ context.Context, item core.DocumentQueueItem) error {
		if item.DocumentID != "doc_1" {
			t.Fatalf("unexpected document %q", item.DocumentID)
		}
		return nil
	}), Config{}, nil)
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("process one: %v", err)
	}
	if !processed || completedID != "ditem_1" {
		t.Fatalf("unexpected outcome: processed=%v completed=%q", processed, completedID)
	}

	processErr := fmt.Errorf("ocr: timeout")
	w, err = NewDocumentWorker(svc, processorFunc(func(context.Context, core.DocumentQueueItem) error {
		return processErr
	}), Config{}, nil)
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}
	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("process one: %v", err)
	}
	if failedCause != processErr {
		t.Fatalf("unexpected fail cause: %v", failedCause)
	}
}

func TestNewWorkers_RequireDependencies(t *testing.T) {
	if _, err := NewSyncWorker(nil, propagatorFunc(func(context.Context, core.SyncQueueItem) error { return nil }), Config{}, nil); err == nil {
		t.Fatalf("expected error for missing service")
	}
	if _, err := NewSyncWorker(&stubSyncService{}, nil, Config{}, nil); err == nil {
		t.Fatalf("expected error for missing propagator")
	}
	if _, err := NewDocumentWorker(nil, processorFunc(func(context.Context, core.DocumentQueueItem) error { return nil }), Config{}, nil); err == nil {
		t.Fatalf("expected error for missing service")
	}
	if _, err := NewDocumentWorker(&stubDocumentService{}, nil, Config{}, nil); err == nil {
		t.Fatalf("expected error for missing processor")
	}
}

func newSyncWorker(t *testing.T, svc SyncService, propagator Propagator) *SyncWorker {
	t.Helper()
	return newSyncWorkerWithConfig(t, svc, propagator, Config{})
}

func newSyncWorkerWithConfig(t *testing.T, svc SyncService, propagator Propagator, config Config) *SyncWorker {
	t.Helper()
	w, err := NewSyncWorker(svc, propagator, config, nil)
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}
	return w
}

type propagatorFunc func(ctx context.Context, item core.SyncQueueItem) error

func (f propagatorFunc) Propagate(ctx context.Context, item core.SyncQueueItem) error {
	return f(ctx, item)
}

type processorFunc func(ctx context.Context, item core.DocumentQueueItem) error

func (f processorFunc) Process(ctx context.Context, item core.DocumentQueueItem) error {
	return f(ctx, item)
}

type stubSyncService struct {
	claimFn          func(ctx context.Context) (core.SyncQueueItem, bool, error)
	completeFn       func(ctx context.Context, id string) (core.SyncQueueItem, error)
	failFn           func(ctx context.Context, id string, cause error) (core.SyncQueueItem, error)
	recordConflictFn func(ctx context.Context, input core.RecordConflictInput) (core.RecordConflictResult, error)
}

func (s *stubSyncService) ClaimNextSync(ctx context.Context) (core.SyncQueueItem, bool, error) {
	if s.claimFn == nil {
		return core.SyncQueueItem{}, false, fmt.Errorf("claim not configured")
	}
	return s.claimFn(ctx)
}

func (s *stubSyncService) CompleteSync(ctx context.Context, id string) (core.SyncQueueItem, error) {
	if s.completeFn == nil {
		return core.SyncQueueItem{}, fmt.Errorf("complete not configured")
	}
	return s.completeFn(ctx, id)
}

func (s *stubSyncService) FailSync(ctx context.Context, id string, cause error) (core.SyncQueueItem, error) {
	if s.failFn == nil {
		return core.SyncQueueItem{}, fmt.Errorf("fail not configured")
	}
	return s.failFn(ctx, id, cause)
}

func (s *stubSyncService) RecordConflict(ctx context.Context, input core.RecordConflictInput) (core.RecordConflictResult, error) {
	if s.recordConflictFn == nil {
		return core.RecordConflictResult{}, fmt.Errorf("record conflict not configured")
	}
	return s.recordConflictFn(ctx, input)
}

type stubDocumentService struct {
	claimFn    func(ctx context.Context) (core.DocumentQueueItem, bool, error)
	completeFn func(ctx context.Context, id string) (core.DocumentQueueItem, error)
	failFn     func(ctx context.Context, id string, cause error) (core.DocumentQueueItem, error)
}

func (s *stubDocumentService) ClaimNextDocument(ctx context.Context) (core.DocumentQueueItem, bool, error) {
	if s.claimFn == nil {
		return core.DocumentQueueItem{}, false, fmt.Errorf("claim not configured")
	}
	return s.claimFn(ctx)
}

func (s *stubDocumentService) CompleteDocument(ctx context.Context, id string) (core.DocumentQueueItem, error) {
	if s.completeFn == nil {
		return core.DocumentQueueItem{}, fmt.Errorf("complete not configured")
	}
	return s.completeFn(ctx, id)
}

func (s *stubDocumentService) FailDocument(ctx context.Context, id string, cause error) (core.DocumentQueueItem, error) {
	if s.failFn == nil {
		return core.DocumentQueueItem{}, fmt.Errorf("fail not configured")
	}
	return s.failFn(ctx, id, cause)
}

var (
	_ SyncService     = (*stubSyncService)(nil)
	_ DocumentService = (*stubDocumentService)(nil)
)
