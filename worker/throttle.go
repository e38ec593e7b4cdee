package worker

import (
	"context"

	"github.com/npdadmin/syncengine/core"
	"github.com/npdadmin/syncengine/ratelimit"
)

const defaultProviderID = "crm"

// ThrottleGate guards outbound propagation with adaptive rate-limit state.
// *ratelimit.AdaptivePolicy satisfies it.
type ThrottleGate interface {
	BeforeCall(ctx context.Context, key ratelimit.Key) error
	AfterCall(ctx context.Context, key ratelimit.Key, res ratelimit.ResponseMeta) error
}

// ResponsePropagator is an optional Propagator upgrade. Propagators that
// surface the external call metadata let the gate track budget headers and
// Retry-After hints between items.
type ResponsePropagator interface {
	PropagateWithResponse(ctx context.Context, item core.SyncQueueItem) (ratelimit.ResponseMeta, error)
}

type Option func(*SyncWorker)

// WithThrottleGate routes every propagation through the gate. A BeforeCall
// rejection fails the item without calling the propagator, so the throttled
// cause walks the rate-limited backoff curve.
func WithThrottleGate(gate ThrottleGate) Option {
	return func(w *SyncWorker) {
		w.gate = gate
	}
}

// WithProviderID overrides the provider half of the throttle bucket key.
func WithProviderID(providerID string) Option {
	return func(w *SyncWorker) {
		w.providerID = providerID
	}
}

func (w *SyncWorker) throttleKey(item core.SyncQueueItem) ratelimit.Key {
	providerID := w.providerID
	if providerID == "" {
		providerID = defaultProviderID
	}
	return ratelimit.Key{ProviderID: providerID, BucketKey: string(item.EntityType)}
}
