package core

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

const MetadataKeyAuditAttempts = "_audit_attempts"

// OutboxAuditBus persists published events into a durable outbox. Delivery
// to subscribed sinks happens out of band through the AuditDispatcher, so a
// slow or failing sink never blocks the publishing operation.
type OutboxAuditBus struct {
	store    AuditOutboxStore
	mu       sync.RWMutex
	handlers []AuditEventHandler
}

func NewOutboxAuditBus(store AuditOutboxStore) *OutboxAuditBus {
	return &OutboxAuditBus{store: store}
}

func (b *OutboxAuditBus) Publish(ctx context.Context, event AuditEvent) error {
	if b == nil || b.store == nil {
		return fmt.Errorf("core: audit outbox store is required")
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("core: audit event id is required")
	}
	event.Payload = RedactSensitiveMap(event.Payload)
	event.Metadata = RedactSensitiveMap(event.Metadata)
	return b.store.Enqueue(ctx, event)
}

func (b *OutboxAuditBus) Subscribe(handler AuditEventHandler) {
	if b == nil || handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

func (b *OutboxAuditBus) Handlers() []AuditEventHandler {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]AuditEventHandler(nil), b.handlers...)
}

var _ AuditEventBus = (*OutboxAuditBus)(nil)

type AuditDispatcherConfig struct {
	BatchSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultAuditDispatcherConfig() AuditDispatcherConfig {
	return AuditDispatcherConfig{
		BatchSize:      50,
		MaxAttempts:    8,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     5 * time.Minute,
	}
}

// AuditDispatcher drains the audit outbox: claim a batch, hand each event to
// every subscribed sink, ack on success, schedule a backoff retry otherwise.
type AuditDispatcher struct {
	store  AuditOutboxStore
	bus    *OutboxAuditBus
	config AuditDispatcherConfig
	now    func() time.Time
}

func NewAuditDispatcher(
	store AuditOutboxStore,
	bus *OutboxAuditBus,
	config AuditDispatcherConfig,
) (*AuditDispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("core: audit outbox store is required")
	}
	defaults := DefaultAuditDispatcherConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	return &AuditDispatcher{
		store:  store,
		bus:    bus,
		config: config,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (d *AuditDispatcher) DispatchPending(ctx context.Context, batchSize int) (AuditDispatchStats, error) {
	if d == nil || d.store == nil {
		return AuditDispatchStats{}, fmt.Errorf("core: audit dispatcher is not configured")
	}
	limit := batchSize
	if limit <= 0 {
		limit = d.config.BatchSize
	}
	events, err := d.store.ClaimBatch(ctx, limit)
	if err != nil {
		return AuditDispatchStats{}, err
	}

	stats := AuditDispatchStats{Claimed: len(events)}
	var dispatchErr error
	for _, event := range events {
		if err := d.dispatchOne(ctx, event); err != nil {
			if retryErr := d.retryEvent(ctx, event, err); retryErr != nil {
				dispatchErr = joinErrors(dispatchErr, retryErr)
			}
			if auditAttemptIndex(event)+1 >= d.config.MaxAttempts {
				stats.Failed++
			} else {
				stats.Retried++
			}
			dispatchErr = joinErrors(dispatchErr, err)
			continue
		}
		if err := d.store.Ack(ctx, strings.TrimSpace(event.ID)); err != nil {
			dispatchErr = joinErrors(dispatchErr, err)
			continue
		}
		stats.Delivered++
	}
	return stats, dispatchErr
}

func (d *AuditDispatcher) dispatchOne(ctx context.Context, event AuditEvent) error {
	if d == nil || d.bus == nil {
		return nil
	}
	for i, handler := range d.bus.Handlers() {
		if handler == nil {
			continue
		}
		if err := handler.Handle(ctx, event); err != nil {
			return fmt.Errorf("core: audit sink %d failed for event %q: %w", i, event.ID, err)
		}
	}
	return nil
}

func (d *AuditDispatcher) retryEvent(ctx context.Context, event AuditEvent, cause error) error {
	attempt := auditAttemptIndex(event)
	if attempt+1 >= d.config.MaxAttempts {
		return d.store.Retry(ctx, strings.TrimSpace(event.ID), cause, time.Time{})
	}
	nextAttemptAt := d.now().Add(d.nextBackoffDelay(attempt + 1))
	return d.store.Retry(ctx, strings.TrimSpace(event.ID), cause, nextAttemptAt)
}

func (d *AuditDispatcher) nextBackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(d.config.InitialBackoff)
	multiplier := math.Pow(2, float64(attempt-1))
	next := time.Duration(base * multiplier)
	if next < 0 || next > d.config.MaxBackoff {
		return d.config.MaxBackoff
	}
	return next
}

func auditAttemptIndex(event AuditEvent) int {
	if len(event.Metadata) == 0 {
		return 0
	}
	raw, ok := event.Metadata[MetadataKeyAuditAttempts]
	if !ok {
		return 0
	}
	switch typed := raw.(type) {
	case int:
		if typed < 0 {
			return 0
		}
		return typed
	case int64:
		if typed < 0 {
			return 0
		}
		return int(typed)
	case float64:
		if typed < 0 {
			return 0
		}
		return int(typed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err == nil && parsed >= 0 {
			return parsed
		}
	}
	return 0
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %v", existing, next)
}
