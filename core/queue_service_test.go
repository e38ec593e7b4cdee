package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEnqueueSyncIsIdempotentPerActiveKey(t *testing.T) {
	service, _, syncQueue, _, bus, _ := newTestService(t)

	input := EnqueueSyncInput{
		EntityType: EntityTypeContact,
		EntityID:   "contact_1",
		Direction:  DirectionToExternal,
		Operation:  SyncOperationUpdate,
	}
	first, err := service.EnqueueSync(context.Background(), input)
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if first.Replayed {
		t.Fatalf("expected first enqueue to create")
	}

	second, err := service.EnqueueSync(context.Background(), input)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("expected second enqueue to replay the active item")
	}
	if second.Item.ID != first.Item.ID {
		t.Fatalf("expected replay to return the existing item")
	}
	if len(syncQueue.order) != 1 {
		t.Fatalf("expected a single stored item, got %d", len(syncQueue.order))
	}

	// opposite direction is a different key
	input.Direction = DirectionToInternal
	third, err := service.EnqueueSync(context.Background(), input)
	if err != nil {
		t.Fatalf("third enqueue: %v", err)
	}
	if third.Replayed {
		t.Fatalf("expected a different direction to create a new item")
	}

	// only the two creations published audit events
	names := bus.eventNames()
	created := 0
	for _, name := range names {
		if name == "sync.queue.enqueued" {
			created++
		}
	}
	if created != 2 {
		t.Fatalf("expected 2 enqueued audit events, got %d (%v)", created, names)
	}
}

func TestFailSyncSchedulesBackoffRetry(t *testing.T) {
	service, _, syncQueue, _, _, clock := newTestService(t)

	enqueued, err := service.EnqueueSync(context.Background(), EnqueueSyncInput{
		EntityType: EntityTypeContact,
		EntityID:   "contact_1",
		Direction:  DirectionToExternal,
		Operation:  SyncOperationUpdate,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	claimed, ok, err := service.ClaimNextSync(context.Background())
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if claimed.ID != enqueued.Item.ID {
		t.Fatalf("claimed unexpected item %s", claimed.ID)
	}

	failed, err := service.FailSync(context.Background(), claimed.ID, errors.New("connection reset"))
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != QueueStatusPending {
		t.Fatalf("expected pending after first failure, got %s", failed.Status)
	}
	if failed.Attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", failed.Attempts)
	}
	if failed.NextRetryAt == nil {
		t.Fatalf("expected a retry time")
	}
	wantRetry := clock.Now().Add(30 * time.Second)
	if !failed.NextRetryAt.Equal(wantRetry) {
		t.Fatalf("expected retry at %s, got %s", wantRetry, failed.NextRetryAt)
	}
	if failed.ErrorMessage != "connection reset" {
		t.Fatalf("expected error message to be recorded, got %q", failed.ErrorMessage)
	}

	// not claimable until the retry time passes
	if _, ok, err := service.ClaimNextSync(context.Background()); err != nil || ok {
		t.Fatalf("expected nothing claimable before retry time, ok=%v err=%v", ok, err)
	}
	clock.Advance(31 * time.Second)
	if _, ok, err := service.ClaimNextSync(context.Background()); err != nil || !ok {
		t.Fatalf("expected item claimable after retry time, ok=%v err=%v", ok, err)
	}
	_ = syncQueue
}

func TestFailSyncRateLimitedUsesLongerBackoff(t *testing.T) {
	service, _, _, _, _, clock := newTestService(t)

	enqueued, err := service.EnqueueSync(context.Background(), EnqueueSyncInput{
		EntityType: EntityTypeOrganization,
		EntityID:   "org_1",
		Direction:  DirectionToExternal,
		Operation:  SyncOperationUpdate,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, _, err := service.ClaimNextSync(context.Background()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	failed, err := service.FailSync(context.Background(), enqueued.Item.ID, errors.New("429 too many requests: rate limit exceeded"))
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	wantRetry := clock.Now().Add(4 * 30 * time.Second)
	if failed.NextRetryAt == nil || !failed.NextRetryAt.Equal(wantRetry) {
		t.Fatalf("expected rate limited retry at %s, got %v", wantRetry, failed.NextRetryAt)
	}
}

func TestFailSyncDeadLettersAfterMaxAttempts(t *testing.T) {
	service, _, syncQueue, _, bus, clock := newTestService(t)

	enqueued, err := service.EnqueueSync(context.Background(), EnqueueSyncInput{
		EntityType: EntityTypeContact,
		EntityID:   "contact_1",
		Direction:  DirectionToExternal,
		Operation:  SyncOperationCreate,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	id := enqueued.Item.ID

	maxAttempts := service.Config().Queue.MaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		clock.Advance(2 * time.Hour)
		if _, ok, err := service.ClaimNextSync(context.Background()); err != nil || !ok {
			t.Fatalf("claim attempt %d: ok=%v err=%v", attempt, ok, err)
		}
		if _, err := service.FailSync(context.Background(), id, errors.New("boom")); err != nil {
			t.Fatalf("fail attempt %d: %v", attempt, err)
		}
	}

	item := syncQueue.records[id]
	if !item.DeadLettered() {
		t.Fatalf("expected dead letter after %d attempts, got status=%s retry=%v", maxAttempts, item.Status, item.NextRetryAt)
	}
	if item.Attempts != maxAttempts {
		t.Fatalf("expected attempts=%d, got %d", maxAttempts, item.Attempts)
	}
	if !containsString(bus.eventNames(), "sync.queue.dead_lettered") {
		t.Fatalf("expected dead letter audit event, got %v", bus.eventNames())
	}

	// a dead letter releases the uniqueness slot for its key
	again, err := service.EnqueueSync(context.Background(), EnqueueSyncInput{
		EntityType: EntityTypeContact,
		EntityID:   "contact_1",
		Direction:  DirectionToExternal,
		Operation:  SyncOperationCreate,
	})
	if err != nil {
		t.Fatalf("re-enqueue after dead letter: %v", err)
	}
	if again.Replayed {
		t.Fatalf("expected a fresh item after dead letter, got replay")
	}
}

func TestRetrySyncResetAttemptsRestoresFullBudget(t *testing.T) {
	service, _, syncQueue, _, _, clock := newTestService(t)

	enqueued, err := service.EnqueueSync(context.Background(), EnqueueSyncInput{
		EntityType: EntityTypeContact,
		EntityID:   "contact_1",
		Direction:  DirectionToInternal,
		Operation:  SyncOperationUpdate,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	id := enqueued.Item.ID
	for attempt := 1; attempt <= service.Config().Queue.MaxAttempts; attempt++ {
		clock.Advance(2 * time.Hour)
		if _, _, err := service.ClaimNextSync(context.Background()); err != nil {
			t.Fatalf("claim: %v", err)
		}
		if _, err := service.FailSync(context.Background(), id, errors.New("boom")); err != nil {
			t.Fatalf("fail: %v", err)
		}
	}
	if !syncQueue.records[id].DeadLettered() {
		t.Fatalf("expected dead letter before manual retry")
	}

	retried, err := service.RetrySync(context.Background(), id, true)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != QueueStatusPending {
		t.Fatalf("expected pending after retry, got %s", retried.Status)
	}
	if retried.Attempts != 0 {
		t.Fatalf("expected attempts reset to 0, got %d", retried.Attempts)
	}
	if retried.NextRetryAt != nil {
		t.Fatalf("expected immediate claimability, got retry at %v", retried.NextRetryAt)
	}
}

func TestRetrySyncWithoutResetPreservesAttemptsAndSchedules(t *testing.T) {
	service, _, syncQueue, _, _, clock := newTestService(t)

	enqueued, err := service.EnqueueSync(context.Background(), EnqueueSyncInput{
		EntityType: EntityTypeContact,
		EntityID:   "contact_2",
		Direction:  DirectionToExternal,
		Operation:  SyncOperationDelete,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	id := enqueued.Item.ID
	maxAttempts := service.Config().Queue.MaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		clock.Advance(2 * time.Hour)
		if _, _, err := service.ClaimNextSync(context.Background()); err != nil {
			t.Fatalf("claim: %v", err)
		}
		if _, err := service.FailSync(context.Background(), id, errors.New("boom")); err != nil {
			t.Fatalf("fail: %v", err)
		}
	}

	retried, err := service.RetrySync(context.Background(), id, false)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Attempts != maxAttempts {
		t.Fatalf("expected attempts preserved at %d, got %d", maxAttempts, retried.Attempts)
	}
	if retried.MaxAttempts != maxAttempts {
		t.Fatalf("expected attempt budget to stay the configured %d, got %d", maxAttempts, retried.MaxAttempts)
	}
	wantDelay := RetryScheduler{
		Initial:             30 * time.Second,
		Max:                 30 * time.Minute,
		RateLimitMultiplier: 4,
	}.NextDelay(maxAttempts, false)
	wantRetry := clock.Now().Add(wantDelay)
	if retried.NextRetryAt == nil || !retried.NextRetryAt.Equal(wantRetry) {
		t.Fatalf("expected retry gated at %s, got %v", wantRetry, retried.NextRetryAt)
	}
	if syncQueue.records[id].MaxAttempts != maxAttempts {
		t.Fatalf("expected stored budget unchanged, got %d", syncQueue.records[id].MaxAttempts)
	}

	// gated until the scheduled backoff passes
	if _, ok, err := service.ClaimNextSync(context.Background()); err != nil || ok {
		t.Fatalf("expected backoff gate to block claim, ok=%v err=%v", ok, err)
	}
	clock.Advance(wantDelay + time.Minute)
	if _, ok, err := service.ClaimNextSync(context.Background()); err != nil || !ok {
		t.Fatalf("expected claim once gate passes, ok=%v err=%v", ok, err)
	}

	// the budget is already spent, so the next failure dead-letters again
	failed, err := service.FailSync(context.Background(), id, errors.New("boom"))
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if !failed.DeadLettered() {
		t.Fatalf("expected dead letter on the next failure, got %s", failed.Status)
	}
}

func TestRetrySyncRejectsNonFailedItem(t *testing.T) {
	service, _, _, _, _, _ := newTestService(t)

	enqueued, err := service.EnqueueSync(context.Background(), EnqueueSyncInput{
		EntityType: EntityTypeContact,
		EntityID:   "contact_1",
		Direction:  DirectionToExternal,
		Operation:  SyncOperationUpdate,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := service.RetrySync(context.Background(), enqueued.Item.ID, true); err == nil {
		t.Fatalf("expected retry of pending item to fail")
	}
}

func TestCompleteSyncMarksItemCompleted(t *testing.T) {
	service, _, syncQueue, _, bus, _ := newTestService(t)

	enqueued, err := service.EnqueueSync(context.Background(), EnqueueSyncInput{
		EntityType: EntityTypeOrganization,
		EntityID:   "org_1",
		Direction:  DirectionToExternal,
		Operation:  SyncOperationUpdate,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, _, err := service.ClaimNextSync(context.Background()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	completed, err := service.CompleteSync(context.Background(), enqueued.Item.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != QueueStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	// completed rows are retained
	if _, ok := syncQueue.records[enqueued.Item.ID]; !ok {
		t.Fatalf("expected completed item to be retained")
	}
	if !containsString(bus.eventNames(), "sync.queue.completed") {
		t.Fatalf("expected completed audit event, got %v", bus.eventNames())
	}
}

func TestClaimNextSyncOrdersByCreation(t *testing.T) {
	service, _, _, _, _, clock := newTestService(t)

	first, err := service.EnqueueSync(context.Background(), EnqueueSyncInput{
		EntityType: EntityTypeContact,
		EntityID:   "contact_1",
		Direction:  DirectionToExternal,
		Operation:  SyncOperationUpdate,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	clock.Advance(time.Minute)
	if _, err := service.EnqueueSync(context.Background(), EnqueueSyncInput{
		EntityType: EntityTypeContact,
		EntityID:   "contact_2",
		Direction:  DirectionToExternal,
		Operation:  SyncOperationUpdate,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, ok, err := service.ClaimNextSync(context.Background())
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if claimed.ID != first.Item.ID {
		t.Fatalf("expected oldest item first, got %s", claimed.ID)
	}
}

func TestReapStaleSyncReturnsAbandonedClaims(t *testing.T) {
	service, _, syncQueue, _, _, clock := newTestService(t)

	enqueued, err := service.EnqueueSync(context.Background(), EnqueueSyncInput{
		EntityType: EntityTypeContact,
		EntityID:   "contact_1",
		Direction:  DirectionToExternal,
		Operation:  SyncOperationUpdate,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, _, err := service.ClaimNextSync(context.Background()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// too fresh to reap
	reaped, err := service.ReapStaleSync(context.Background())
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if reaped != 0 {
		t.Fatalf("expected nothing reaped yet, got %d", reaped)
	}

	clock.Advance(service.Config().Queue.StaleClaimTimeout() + time.Minute)
	reaped, err = service.ReapStaleSync(context.Background())
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("expected one reaped item, got %d", reaped)
	}
	if syncQueue.records[enqueued.Item.ID].Status != QueueStatusPending {
		t.Fatalf("expected reaped item back in pending")
	}
}

func TestSyncQueueStatisticsCountsByStatus(t *testing.T) {
	service, _, _, _, _, _ := newTestService(t)

	for i, entity := range []string{"c1", "c2", "c3"} {
		if _, err := service.EnqueueSync(context.Background(), EnqueueSyncInput{
			EntityType: EntityTypeContact,
			EntityID:   entity,
			Direction:  DirectionToExternal,
			Operation:  SyncOperationUpdate,
		}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	claimed, _, err := service.ClaimNextSync(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := service.CompleteSync(context.Background(), claimed.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	stats, err := service.SyncQueueStatistics(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Pending != 2 || stats.Completed != 1 || stats.InProgress != 0 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
