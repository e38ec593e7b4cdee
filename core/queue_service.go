package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EnqueueSyncResult reports whether a new item was created. Replayed is true
// when an active item for the same (entity_type, entity_id, direction) tuple
// already held the slot and was returned instead.
type EnqueueSyncResult struct {
	Item     SyncQueueItem
	Replayed bool
}

// EnqueueSync schedules a propagation. The operation is idempotent per
// active key tuple; dead-lettered and terminal items do not block new work.
func (s *Service) EnqueueSync(ctx context.Context, input EnqueueSyncInput) (result EnqueueSyncResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"entity_type": string(input.EntityType),
		"entity_id":   input.EntityID,
		"direction":   string(input.Direction),
		"operation":   string(input.Operation),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "enqueue_sync", err, fields)
	}()

	if s == nil || s.syncQueueStore == nil {
		err = s.mapError(fmt.Errorf("core: sync queue store is required"))
		return EnqueueSyncResult{}, err
	}
	if !input.EntityType.IsValid() {
		err = s.mapError(fmt.Errorf("%w: %q", ErrInvalidEntityType, input.EntityType))
		return EnqueueSyncResult{}, err
	}
	input.EntityID = strings.TrimSpace(input.EntityID)
	if input.EntityID == "" {
		err = s.mapError(fmt.Errorf("core: entity id is required"))
		return EnqueueSyncResult{}, err
	}
	if !input.Direction.IsValid() {
		err = s.mapError(fmt.Errorf("%w: %q", ErrInvalidSyncDirection, input.Direction))
		return EnqueueSyncResult{}, err
	}
	if !input.Operation.IsValid() {
		err = s.mapError(fmt.Errorf("%w: %q", ErrInvalidSyncOperation, input.Operation))
		return EnqueueSyncResult{}, err
	}

	now := s.now()
	item := SyncQueueItem{
		ID:          s.idGenerator(),
		EntityType:  input.EntityType,
		EntityID:    input.EntityID,
		Direction:   input.Direction,
		Operation:   input.Operation,
		Status:      QueueStatusPending,
		MaxAttempts: s.config.Queue.MaxAttempts,
		ConflictID:  strings.TrimSpace(input.ConflictID),
		Metadata:    RedactSensitiveMap(input.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	saved, created, enqueueErr := s.syncQueueStore.Enqueue(ctx, item)
	if enqueueErr != nil {
		err = s.mapError(enqueueErr)
		return EnqueueSyncResult{}, err
	}
	fields["queue_item_id"] = saved.ID
	fields["replayed"] = !created

	if created {
		if err = s.publishQueueAudit(ctx, saved, "sync.queue.enqueued", nil); err != nil {
			err = s.mapError(err)
			return EnqueueSyncResult{}, err
		}
	}
	result = EnqueueSyncResult{Item: saved, Replayed: !created}
	return result, nil
}

func (s *Service) GetSyncItem(ctx context.Context, id string) (SyncQueueItem, error) {
	if s == nil || s.syncQueueStore == nil {
		return SyncQueueItem{}, s.mapError(fmt.Errorf("core: sync queue store is required"))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return SyncQueueItem{}, s.mapError(fmt.Errorf("core: queue item id is required"))
	}
	item, err := s.syncQueueStore.Get(ctx, id)
	if err != nil {
		return SyncQueueItem{}, s.mapError(err)
	}
	return item, nil
}

// ClaimNextSync atomically claims the earliest-due pending item, marking it
// in_progress. The boolean is false when nothing is claimable.
func (s *Service) ClaimNextSync(ctx context.Context) (SyncQueueItem, bool, error) {
	if s == nil || s.syncQueueStore == nil {
		return SyncQueueItem{}, false, s.mapError(fmt.Errorf("core: sync queue store is required"))
	}
	item, claimed, err := s.syncQueueStore.ClaimNext(ctx, s.now())
	if err != nil {
		return SyncQueueItem{}, false, s.mapError(err)
	}
	return item, claimed, nil
}

func (s *Service) CompleteSync(ctx context.Context, id string) (item SyncQueueItem, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"queue_item_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "complete_sync", err, fields)
	}()

	if s == nil || s.syncQueueStore == nil {
		err = s.mapError(fmt.Errorf("core: sync queue store is required"))
		return SyncQueueItem{}, err
	}
	item, completeErr := s.syncQueueStore.Complete(ctx, strings.TrimSpace(id))
	if completeErr != nil {
		err = s.mapError(completeErr)
		return SyncQueueItem{}, err
	}
	if err = s.publishQueueAudit(ctx, item, "sync.queue.completed", nil); err != nil {
		err = s.mapError(err)
		return SyncQueueItem{}, err
	}
	return item, nil
}

// FailSync records a failed attempt. Rate-limited failures walk the longer
// backoff curve; an exhausted attempt budget dead-letters the item and
// releases its uniqueness slot.
func (s *Service) FailSync(ctx context.Context, id string, cause error) (item SyncQueueItem, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"queue_item_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "fail_sync", err, fields)
	}()

	if s == nil || s.syncQueueStore == nil {
		err = s.mapError(fmt.Errorf("core: sync queue store is required"))
		return SyncQueueItem{}, err
	}
	id = strings.TrimSpace(id)
	current, getErr := s.syncQueueStore.Get(ctx, id)
	if getErr != nil {
		err = s.mapError(getErr)
		return SyncQueueItem{}, err
	}

	rateLimited := s.isRateLimited(cause)
	update := s.buildFailUpdate(current.Attempts, current.MaxAttempts, cause, rateLimited)
	fields["rate_limited"] = rateLimited
	fields["dead_letter"] = update.NextRetryAt == nil

	item, failErr := s.syncQueueStore.Fail(ctx, id, update)
	if failErr != nil {
		err = s.mapError(failErr)
		return SyncQueueItem{}, err
	}

	eventName := "sync.queue.retry_scheduled"
	if item.DeadLettered() {
		eventName = "sync.queue.dead_lettered"
	}
	if err = s.publishQueueAudit(ctx, item, eventName, map[string]any{
		"attempts":     item.Attempts,
		"rate_limited": rateLimited,
		"error":        update.ErrorMessage,
	}); err != nil {
		err = s.mapError(err)
		return SyncQueueItem{}, err
	}
	return item, nil
}

// RetrySync manually requeues a dead-lettered item. resetAttempts restores
// the full attempt budget and immediate claimability; otherwise attempts are
// preserved and the next claim is gated per the normal backoff curve.
func (s *Service) RetrySync(ctx context.Context, id string, resetAttempts bool) (item SyncQueueItem, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"queue_item_id":  id,
		"reset_attempts": resetAttempts,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "retry_sync", err, fields)
	}()

	if s == nil || s.syncQueueStore == nil {
		err = s.mapError(fmt.Errorf("core: sync queue store is required"))
		return SyncQueueItem{}, err
	}
	id = strings.TrimSpace(id)
	current, getErr := s.syncQueueStore.Get(ctx, id)
	if getErr != nil {
		err = s.mapError(getErr)
		return SyncQueueItem{}, err
	}
	update := RetryQueueUpdate{ResetAttempts: resetAttempts}
	if !resetAttempts {
		retryAt := s.now().Add(s.scheduler.NextDelay(current.Attempts, false))
		update.NextRetryAt = &retryAt
	}
	item, retryErr := s.syncQueueStore.Retry(ctx, id, update)
	if retryErr != nil {
		err = s.mapError(retryErr)
		return SyncQueueItem{}, err
	}
	if err = s.publishQueueAudit(ctx, item, "sync.queue.retried", map[string]any{
		"reset_attempts": resetAttempts,
	}); err != nil {
		err = s.mapError(err)
		return SyncQueueItem{}, err
	}
	return item, nil
}

func (s *Service) ListSyncQueue(ctx context.Context, filter SyncQueueFilter) (SyncQueuePage, error) {
	if s == nil || s.syncQueueStore == nil {
		return SyncQueuePage{}, s.mapError(fmt.Errorf("core: sync queue store is required"))
	}
	filter.Page, filter.PerPage = s.normalizePagination(filter.Page, filter.PerPage)
	if filter.EntityType != "" && !filter.EntityType.IsValid() {
		return SyncQueuePage{}, s.mapError(fmt.Errorf("%w: %q", ErrInvalidEntityType, filter.EntityType))
	}
	if filter.Direction != "" && !filter.Direction.IsValid() {
		return SyncQueuePage{}, s.mapError(fmt.Errorf("%w: %q", ErrInvalidSyncDirection, filter.Direction))
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return SyncQueuePage{}, s.mapError(fmt.Errorf("core: invalid queue status %q", filter.Status))
	}
	page, err := s.syncQueueStore.List(ctx, filter)
	if err != nil {
		return SyncQueuePage{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) SyncQueueStatistics(ctx context.Context) (QueueStats, error) {
	if s == nil || s.syncQueueStore == nil {
		return QueueStats{}, s.mapError(fmt.Errorf("core: sync queue store is required"))
	}
	stats, err := s.syncQueueStore.Stats(ctx)
	if err != nil {
		return QueueStats{}, s.mapError(err)
	}
	return stats, nil
}

// ReapStaleSync returns in_progress items older than the configured claim
// timeout to pending so a crashed worker cannot strand work.
func (s *Service) ReapStaleSync(ctx context.Context) (reaped int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["reaped"] = reaped
		s.observeOperation(ctx, startedAt, "reap_stale_sync", err, fields)
	}()

	if s == nil || s.syncQueueStore == nil {
		err = s.mapError(fmt.Errorf("core: sync queue store is required"))
		return 0, err
	}
	cutoff := s.now().Add(-s.staleClaimTimeout())
	reaped, reapErr := s.syncQueueStore.ReapStale(ctx, cutoff)
	if reapErr != nil {
		err = s.mapError(reapErr)
		return 0, err
	}
	return reaped, nil
}

func (s *Service) staleClaimTimeout() time.Duration {
	timeout := s.config.Queue.StaleClaimTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return timeout
}

func (s *Service) isRateLimited(cause error) bool {
	if cause == nil {
		return false
	}
	if s != nil && s.classifier != nil {
		return s.classifier.IsRateLimited(cause)
	}
	msg := strings.ToLower(cause.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "throttl") ||
		strings.Contains(msg, "too many requests")
}

// buildFailUpdate computes the store-level write for one failed attempt.
// attempts is the count before this failure; the store persists attempts+1.
func (s *Service) buildFailUpdate(attempts, maxAttempts int, cause error, rateLimited bool) FailQueueUpdate {
	if maxAttempts < 1 {
		maxAttempts = s.config.Queue.MaxAttempts
	}
	update := FailQueueUpdate{}
	if cause != nil {
		update.ErrorMessage = cause.Error()
	}
	nextAttempts := attempts + 1
	if nextAttempts >= maxAttempts {
		return update
	}
	nextRetryAt := s.now().Add(s.scheduler.NextDelay(nextAttempts, rateLimited))
	update.NextRetryAt = &nextRetryAt
	return update
}

func (s *Service) publishQueueAudit(
	ctx context.Context,
	item SyncQueueItem,
	eventName string,
	payload map[string]any,
) error {
	if s == nil || s.auditBus == nil {
		return nil
	}
	occurredAt := s.now()
	event := AuditEvent{
		ID:         buildAuditEventID(item.ID, eventName, occurredAt),
		Name:       eventName,
		EntityType: string(item.EntityType),
		EntityID:   item.EntityID,
		Source:     "syncengine.queue",
		OccurredAt: occurredAt,
		Payload: mergeMetadata(payload, map[string]any{
			"queue_item_id": item.ID,
			"entity_type":   string(item.EntityType),
			"entity_id":     item.EntityID,
			"direction":     string(item.Direction),
			"operation":     string(item.Operation),
			"status":        string(item.Status),
			"conflict_id":   item.ConflictID,
		}),
		Metadata: copyAnyMap(item.Metadata),
	}
	return s.auditBus.Publish(ctx, event)
}
