package gojob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/npdadmin/syncengine/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

const (
	JobIDReapStale     = "syncengine.queue.reap_stale"
	JobIDAuditDispatch = "syncengine.audit.dispatch"
)

const defaultAuditBatchSize = 50

// RetryPolicy bounds queue retry behavior for maintenance jobs.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces the retry bounds for one nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ReapStaleMessage builds the periodic stale claim reaper job.
func ReapStaleMessage() *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:          JobIDReapStale,
		IdempotencyKey: JobIDReapStale,
		DedupPolicy:    job.DeduplicationPolicy("drop"),
	}
}

// AuditDispatchMessage builds the periodic outbox drain job.
func AuditDispatchMessage(batchSize int) *job.ExecutionMessage {
	if batchSize <= 0 {
		batchSize = defaultAuditBatchSize
	}
	return &job.ExecutionMessage{
		JobID:          JobIDAuditDispatch,
		IdempotencyKey: JobIDAuditDispatch,
		DedupPolicy:    job.DeduplicationPolicy("drop"),
		Parameters: map[string]any{
			"batch_size": batchSize,
		},
	}
}

// MaintenanceService is the slice of the engine maintenance jobs drive.
// *core.Service satisfies it.
type MaintenanceService interface {
	ReapStaleSync(ctx context.Context) (int, error)
	ReapStaleDocuments(ctx context.Context) (int, error)
}

// OutboxDispatcher drains the durable audit outbox.
type OutboxDispatcher interface {
	DispatchPending(ctx context.Context, batchSize int) (core.AuditDispatchStats, error)
}

// MaintenanceRunner executes the engine's periodic jobs when their queue
// messages arrive.
type MaintenanceRunner struct {
	service    MaintenanceService
	dispatcher OutboxDispatcher
	logger     core.Logger
}

func NewMaintenanceRunner(service MaintenanceService, dispatcher OutboxDispatcher, logger core.Logger) (*MaintenanceRunner, error) {
	if service == nil {
		return nil, fmt.Errorf("gojob: maintenance service is required")
	}
	return &MaintenanceRunner{
		service:    service,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

func (r *MaintenanceRunner) Handle(ctx context.Context, msg *job.ExecutionMessage) error {
	if r == nil || r.service == nil {
		return fmt.Errorf("gojob: maintenance runner is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}

	switch strings.TrimSpace(msg.JobID) {
	case JobIDReapStale:
		return r.reapStale(ctx)
	case JobIDAuditDispatch:
		return r.dispatchAudit(ctx, batchSizeParam(msg.Parameters))
	default:
		return fmt.Errorf("gojob: unknown job id %q", msg.JobID)
	}
}

// HandleDelivery runs the job behind a queue delivery, acking on success and
// nacking within the retry policy on failure.
func (r *MaintenanceRunner) HandleDelivery(ctx context.Context, delivery queue.Delivery, policy RetryPolicy, attempt int) error {
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}

	handleErr := r.Handle(ctx, delivery.Message())
	if handleErr == nil {
		return delivery.Ack(ctx)
	}

	opts := policy.NormalizeAttempt(queue.NackOptions{
		Requeue: true,
		Reason:  handleErr.Error(),
	}, attempt)
	if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
		return nackErr
	}
	return handleErr
}

func (r *MaintenanceRunner) reapStale(ctx context.Context) error {
	syncReaped, err := r.service.ReapStaleSync(ctx)
	if err != nil {
		return err
	}
	documentReaped, err := r.service.ReapStaleDocuments(ctx)
	if err != nil {
		return err
	}
	r.logInfo(ctx, "stale claims reaped",
		"sync_items", syncReaped,
		"document_items", documentReaped,
	)
	return nil
}

func (r *MaintenanceRunner) dispatchAudit(ctx context.Context, batchSize int) error {
	if r.dispatcher == nil {
		return fmt.Errorf("gojob: audit dispatcher is not configured")
	}
	stats, err := r.dispatcher.DispatchPending(ctx, batchSize)
	if err != nil {
		return err
	}
	r.logInfo(ctx, "audit outbox drained",
		"claimed", stats.Claimed,
		"delivered", stats.Delivered,
		"retried", stats.Retried,
		"failed", stats.Failed,
	)
	return nil
}

func (r *MaintenanceRunner) logInfo(ctx context.Context, message string, args ...any) {
	if r == nil || r.logger == nil {
		return
	}
	r.logger.WithContext(ctx).Info(message, args...)
}

func batchSizeParam(params map[string]any) int {
	raw, ok := params["batch_size"]
	if !ok {
		return defaultAuditBatchSize
	}
	switch typed := raw.(type) {
	case int:
		if typed > 0 {
			return typed
		}
	case int64:
		if typed > 0 {
			return int(typed)
		}
	case float64:
		if typed > 0 {
			return int(typed)
		}
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(typed)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultAuditBatchSize
}

// EnqueuerAdapter guards a queue enqueuer behind nil checks.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	return a.enqueuer.Enqueue(ctx, msg)
}
