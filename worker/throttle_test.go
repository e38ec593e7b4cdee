package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/npdadmin/syncengine/core"
	"github.com/npdadmin/syncengine/ratelimit"
)

func TestSyncWorker_ThrottleGateBlocksBeforePropagate(t *testing.T) {
	var failedCause error
	svc := &stubSyncService{
		claimFn: func(context.Context) (core.SyncQueueItem, bool, error) {
			return core.SyncQueueItem{
				ID:         "item_1",
				EntityType: core.EntityTypeContact,
				EntityID:   "contact_1",
			}, true, nil
		},
		failFn: func(_ context.Context, id string, cause error) (core.SyncQueueItem, error) {
			failedCause = cause
			return core.SyncQueueItem{ID: id, Status: core.QueueStatusPending}, nil
		},
	}
	gate := &stubThrottleGate{
		beforeFn: func(_ context.Context, key ratelimit.Key) error {
			if key.ProviderID != "crm" || key.BucketKey != string(core.EntityTypeContact) {
				t.Fatalf("unexpected throttle key: %#v", key)
			}
			return ratelimit.ThrottledError{
				ProviderID: key.ProviderID,
				BucketKey:  key.BucketKey,
				RetryAfter: 30 * time.Second,
			}
		},
	}
	w, err := NewSyncWorker(svc, propagatorFunc(func(context.Context, core.SyncQueueItem) error {
		t.Fatalf("propagator must not run while throttled")
		return nil
	}), Config{}, nil, WithThrottleGate(gate))
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("process one: %v", err)
	}
	if !processed {
		t.Fatalf("expected the claim to be processed")
	}
	var throttled ratelimit.ThrottledError
	if failedCause == nil || !errors.As(failedCause, &throttled) {
		t.Fatalf("expected throttled fail cause, got %v", failedCause)
	}
	if !(ratelimit.Classifier{}).IsRateLimited(failedCause) {
		t.Fatalf("expected throttled cause to classify as rate limited")
	}
}

func TestSyncWorker_ThrottleGateLearnsFromResponses(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	policy := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	policy.Now = func() time.Time { return now }

	items := []core.SyncQueueItem{
		{ID: "item_1", EntityType: core.EntityTypeContact, EntityID: "contact_1"},
		{ID: "item_2", EntityType: core.EntityTypeContact, EntityID: "contact_2"},
	}
	claims := 0
	var failCauses []error
	svc := &stubSyncService{
		claimFn: func(context.Context) (core.SyncQueueItem, bool, error) {
			item := items[claims]
			claims++
			return item, true, nil
		},
		failFn: func(_ context.Context, id string, cause error) (core.SyncQueueItem, error) {
			failCauses = append(failCauses, cause)
			return core.SyncQueueItem{ID: id, Status: core.QueueStatusPending}, nil
		},
	}

	retryAfter := time.Minute
	propagations := 0
	propagator := responsePropagatorFunc(func(_ context.Context, item core.SyncQueueItem) (ratelimit.ResponseMeta, error) {
		propagations++
		return ratelimit.ResponseMeta{
			StatusCode: 429,
			RetryAfter: &retryAfter,
		}, fmt.Errorf("crm: too many requests")
	})

	w, err := NewSyncWorker(svc, propagator, Config{}, nil, WithThrottleGate(policy))
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}

	// first item reaches the propagator; the 429 response records throttle state
	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("process first: %v", err)
	}
	if propagations != 1 {
		t.Fatalf("expected one propagation, got %d", propagations)
	}

	// second item in the same bucket is blocked by the learned state
	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("process second: %v", err)
	}
	if propagations != 1 {
		t.Fatalf("expected throttle gate to skip propagation, got %d calls", propagations)
	}
	if len(failCauses) != 2 {
		t.Fatalf("expected both items failed, got %d", len(failCauses))
	}
	var throttled ratelimit.ThrottledError
	if !errors.As(failCauses[1], &throttled) {
		t.Fatalf("expected second fail cause to be throttled, got %v", failCauses[1])
	}
	if throttled.RetryAfter != retryAfter {
		t.Fatalf("expected retry-after %s carried through, got %s", retryAfter, throttled.RetryAfter)
	}
}

type stubThrottleGate struct {
	beforeFn func(ctx context.Context, key ratelimit.Key) error
	afterFn  func(ctx context.Context, key ratelimit.Key, res ratelimit.ResponseMeta) error
}

func (g *stubThrottleGate) BeforeCall(ctx context.Context, key ratelimit.Key) error {
	if g.beforeFn == nil {
		return nil
	}
	return g.beforeFn(ctx, key)
}

func (g *stubThrottleGate) AfterCall(ctx context.Context, key ratelimit.Key, res ratelimit.ResponseMeta) error {
	if g.afterFn == nil {
		return nil
	}
	return g.afterFn(ctx, key, res)
}

type responsePropagatorFunc func(ctx context.Context, item core.SyncQueueItem) (ratelimit.ResponseMeta, error)

func (f responsePropagatorFunc) Propagate(ctx context.Context, item core.SyncQueueItem) error {
	_, err := f(ctx, item)
	return err
}

func (f responsePropagatorFunc) PropagateWithResponse(ctx context.Context, item core.SyncQueueItem) (ratelimit.ResponseMeta, error) {
	return f(ctx, item)
}

var (
	_ ThrottleGate       = (*stubThrottleGate)(nil)
	_ ResponsePropagator = responsePropagatorFunc(nil)
)
