package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/npdadmin/syncengine/core"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultConcurrency  = 1
)

type Config struct {
	PollInterval time.Duration
	Concurrency  int
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return defaultPollInterval
	}
	return c.PollInterval
}

func (c Config) concurrency() int {
	if c.Concurrency <= 0 {
		return defaultConcurrency
	}
	return c.Concurrency
}

// SyncService is the slice of the engine the propagation worker drives.
// *core.Service satisfies it.
type SyncService interface {
	ClaimNextSync(ctx context.Context) (core.SyncQueueItem, bool, error)
	CompleteSync(ctx context.Context, id string) (core.SyncQueueItem, error)
	FailSync(ctx context.Context, id string, cause error) (core.SyncQueueItem, error)
	RecordConflict(ctx context.Context, input core.RecordConflictInput) (core.RecordConflictResult, error)
}

// SyncWorker polls the sync queue and pushes claimed items through the
// Propagator. Claims are per item, so multiple workers and multiple
// processes can drain the same queue.
type SyncWorker struct {
	service    SyncService
	propagator Propagator
	logger     core.Logger
	config     Config
	gate       ThrottleGate
	providerID string
}

func NewSyncWorker(service SyncService, propagator Propagator, config Config, logger core.Logger, opts ...Option) (*SyncWorker, error) {
	if service == nil {
		return nil, fmt.Errorf("worker: sync service is required")
	}
	if propagator == nil {
		return nil, fmt.Errorf("worker: propagator is required")
	}
	worker := &SyncWorker{
		service:    service,
		propagator: propagator,
		logger:     logger,
		config:     config,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(worker)
		}
	}
	return worker, nil
}

// Run blocks until ctx is cancelled, polling with the configured interval
// across the configured number of workers.
func (w *SyncWorker) Run(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("worker: sync worker is not configured")
	}

	var wg sync.WaitGroup
	for i := 0; i < w.config.concurrency(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (w *SyncWorker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := w.ProcessOne(ctx)
		if err != nil {
			w.logError(ctx, "sync worker iteration failed", err)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.config.pollInterval()):
		}
	}
}

// ProcessOne claims and handles at most one item. It reports false when
// nothing was claimable.
func (w *SyncWorker) ProcessOne(ctx context.Context) (bool, error) {
	if w == nil || w.service == nil {
		return false, fmt.Errorf("worker: sync worker is not configured")
	}

	item, claimed, err := w.service.ClaimNextSync(ctx)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	if err := w.handle(ctx, item); err != nil {
		return true, err
	}
	return true, nil
}

func (w *SyncWorker) handle(ctx context.Context, item core.SyncQueueItem) error {
	if w.gate != nil {
		if gateErr := w.gate.BeforeCall(ctx, w.throttleKey(item)); gateErr != nil {
			if _, err := w.service.FailSync(ctx, item.ID, gateErr); err != nil {
				return err
			}
			return nil
		}
	}

	propagateErr := w.propagate(ctx, item)
	if propagateErr == nil {
		if _, err := w.service.CompleteSync(ctx, item.ID); err != nil {
			return err
		}
		return nil
	}

	var conflictErr *ConflictError
	if errors.As(propagateErr, &conflictErr) {
		return w.handleConflict(ctx, item, conflictErr)
	}

	if _, err := w.service.FailSync(ctx, item.ID, propagateErr); err != nil {
		return err
	}
	return nil
}

// propagate prefers the metadata-aware path so the throttle gate sees the
// external system's rate-limit headers after every call.
func (w *SyncWorker) propagate(ctx context.Context, item core.SyncQueueItem) error {
	responder, ok := w.propagator.(ResponsePropagator)
	if !ok {
		return w.propagator.Propagate(ctx, item)
	}
	meta, err := responder.PropagateWithResponse(ctx, item)
	if w.gate != nil {
		if gateErr := w.gate.AfterCall(ctx, w.throttleKey(item), meta); gateErr != nil {
			w.logError(ctx, "rate limit state update failed", gateErr)
		}
	}
	return err
}

// handleConflict records the divergence before failing the item, so the
// dead letter carries the conflict id for operators.
func (w *SyncWorker) handleConflict(ctx context.Context, item core.SyncQueueItem, conflictErr *ConflictError) error {
	input := conflictErr.Input
	if input.EntityType == "" {
		input.EntityType = item.EntityType
	}
	if input.EntityID == "" {
		input.EntityID = item.EntityID
	}

	result, recordErr := w.service.RecordConflict(ctx, input)
	if recordErr != nil {
		if _, err := w.service.FailSync(ctx, item.ID, recordErr); err != nil {
			return err
		}
		return recordErr
	}

	cause := fmt.Errorf("worker: conflict %s requires manual resolution", result.Conflict.ID)
	if _, err := w.service.FailSync(ctx, item.ID, cause); err != nil {
		return err
	}
	return nil
}

func (w *SyncWorker) logError(ctx context.Context, message string, err error) {
	if w == nil || w.logger == nil {
		return
	}
	w.logger.WithContext(ctx).Error(message, "error", err.Error())
}
