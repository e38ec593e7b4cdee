package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type EnqueueDocumentResult struct {
	Item     DocumentQueueItem
	Replayed bool
}

// EnqueueDocument schedules a document for processing. Idempotent per active
// document id: a pending or in-progress item for the same document replays
// instead of duplicating work.
func (s *Service) EnqueueDocument(ctx context.Context, input EnqueueDocumentInput) (result EnqueueDocumentResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"document_id": input.DocumentID,
		"operation":   string(input.Operation),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "enqueue_document", err, fields)
	}()

	if s == nil || s.documentQueueStore == nil {
		err = s.mapError(fmt.Errorf("core: document queue store is required"))
		return EnqueueDocumentResult{}, err
	}
	input.DocumentID = strings.TrimSpace(input.DocumentID)
	if input.DocumentID == "" {
		err = s.mapError(fmt.Errorf("core: document id is required"))
		return EnqueueDocumentResult{}, err
	}
	if !input.Operation.IsValid() {
		err = s.mapError(fmt.Errorf("%w: %q", ErrInvalidDocumentOperation, input.Operation))
		return EnqueueDocumentResult{}, err
	}

	now := s.now()
	item := DocumentQueueItem{
		ID:          s.idGenerator(),
		DocumentID:  input.DocumentID,
		Operation:   input.Operation,
		Status:      QueueStatusPending,
		MaxAttempts: s.config.Queue.MaxAttempts,
		Metadata:    RedactSensitiveMap(input.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	saved, created, enqueueErr := s.documentQueueStore.Enqueue(ctx, item)
	if enqueueErr != nil {
		err = s.mapError(enqueueErr)
		return EnqueueDocumentResult{}, err
	}
	fields["queue_item_id"] = saved.ID
	fields["replayed"] = !created

	if created {
		if err = s.publishDocumentAudit(ctx, saved, "document.queue.enqueued", nil); err != nil {
			err = s.mapError(err)
			return EnqueueDocumentResult{}, err
		}
	}
	result = EnqueueDocumentResult{Item: saved, Replayed: !created}
	return result, nil
}

func (s *Service) GetDocumentItem(ctx context.Context, id string) (DocumentQueueItem, error) {
	if s == nil || s.documentQueueStore == nil {
		return DocumentQueueItem{}, s.mapError(fmt.Errorf("core: document queue store is required"))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return DocumentQueueItem{}, s.mapError(fmt.Errorf("core: queue item id is required"))
	}
	item, err := s.documentQueueStore.Get(ctx, id)
	if err != nil {
		return DocumentQueueItem{}, s.mapError(err)
	}
	return item, nil
}

func (s *Service) ClaimNextDocument(ctx context.Context) (DocumentQueueItem, bool, error) {
	if s == nil || s.documentQueueStore == nil {
		return DocumentQueueItem{}, false, s.mapError(fmt.Errorf("core: document queue store is required"))
	}
	item, claimed, err := s.documentQueueStore.ClaimNext(ctx, s.now())
	if err != nil {
		return DocumentQueueItem{}, false, s.mapError(err)
	}
	return item, claimed, nil
}

func (s *Service) CompleteDocument(ctx context.Context, id string) (item DocumentQueueItem, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"queue_item_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "complete_document", err, fields)
	}()

	if s == nil || s.documentQueueStore == nil {
		err = s.mapError(fmt.Errorf("core: document queue store is required"))
		return DocumentQueueItem{}, err
	}
	item, completeErr := s.documentQueueStore.Complete(ctx, strings.TrimSpace(id))
	if completeErr != nil {
		err = s.mapError(completeErr)
		return DocumentQueueItem{}, err
	}
	if err = s.publishDocumentAudit(ctx, item, "document.queue.completed", nil); err != nil {
		err = s.mapError(err)
		return DocumentQueueItem{}, err
	}
	return item, nil
}

func (s *Service) FailDocument(ctx context.Context, id string, cause error) (item DocumentQueueItem, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"queue_item_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "fail_document", err, fields)
	}()

	if s == nil || s.documentQueueStore == nil {
		err = s.mapError(fmt.Errorf("core: document queue store is required"))
		return DocumentQueueItem{}, err
	}
	id = strings.TrimSpace(id)
	current, getErr := s.documentQueueStore.Get(ctx, id)
	if getErr != nil {
		err = s.mapError(getErr)
		return DocumentQueueItem{}, err
	}

	rateLimited := s.isRateLimited(cause)
	update := s.buildFailUpdate(current.Attempts, current.MaxAttempts, cause, rateLimited)
	fields["rate_limited"] = rateLimited
	fields["dead_letter"] = update.NextRetryAt == nil

	item, failErr := s.documentQueueStore.Fail(ctx, id, update)
	if failErr != nil {
		err = s.mapError(failErr)
		return DocumentQueueItem{}, err
	}

	eventName := "document.queue.retry_scheduled"
	if item.DeadLettered() {
		eventName = "document.queue.dead_lettered"
	}
	if err = s.publishDocumentAudit(ctx, item, eventName, map[string]any{
		"attempts":     item.Attempts,
		"rate_limited": rateLimited,
		"error":        update.ErrorMessage,
	}); err != nil {
		err = s.mapError(err)
		return DocumentQueueItem{}, err
	}
	return item, nil
}

func (s *Service) RetryDocument(ctx context.Context, id string, resetAttempts bool) (item DocumentQueueItem, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"queue_item_id":  id,
		"reset_attempts": resetAttempts,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "retry_document", err, fields)
	}()

	if s == nil || s.documentQueueStore == nil {
		err = s.mapError(fmt.Errorf("core: document queue store is required"))
		return DocumentQueueItem{}, err
	}
	id = strings.TrimSpace(id)
	current, getErr := s.documentQueueStore.Get(ctx, id)
	if getErr != nil {
		err = s.mapError(getErr)
		return DocumentQueueItem{}, err
	}
	update := RetryQueueUpdate{ResetAttempts: resetAttempts}
	if !resetAttempts {
		retryAt := s.now().Add(s.scheduler.NextDelay(current.Attempts, false))
		update.NextRetryAt = &retryAt
	}
	item, retryErr := s.documentQueueStore.Retry(ctx, id, update)
	if retryErr != nil {
		err = s.mapError(retryErr)
		return DocumentQueueItem{}, err
	}
	if err = s.publishDocumentAudit(ctx, item, "document.queue.retried", map[string]any{
		"reset_attempts": resetAttempts,
	}); err != nil {
		err = s.mapError(err)
		return DocumentQueueItem{}, err
	}
	return item, nil
}

// CancelDocument withdraws a document item. Only pending items can be
// cancelled; once a worker holds the claim the outcome is decided by
// Complete or Fail.
func (s *Service) CancelDocument(ctx context.Context, id string) (item DocumentQueueItem, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"queue_item_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "cancel_document", err, fields)
	}()

	if s == nil || s.documentQueueStore == nil {
		err = s.mapError(fmt.Errorf("core: document queue store is required"))
		return DocumentQueueItem{}, err
	}
	item, cancelErr := s.documentQueueStore.Cancel(ctx, strings.TrimSpace(id))
	if cancelErr != nil {
		err = s.mapError(cancelErr)
		return DocumentQueueItem{}, err
	}
	if err = s.publishDocumentAudit(ctx, item, "document.queue.cancelled", nil); err != nil {
		err = s.mapError(err)
		return DocumentQueueItem{}, err
	}
	return item, nil
}

func (s *Service) ListDocumentQueue(ctx context.Context, filter DocumentQueueFilter) (DocumentQueuePage, error) {
	if s == nil || s.documentQueueStore == nil {
		return DocumentQueuePage{}, s.mapError(fmt.Errorf("core: document queue store is required"))
	}
	filter.Page, filter.PerPage = s.normalizePagination(filter.Page, filter.PerPage)
	if filter.Operation != "" && !filter.Operation.IsValid() {
		return DocumentQueuePage{}, s.mapError(fmt.Errorf("%w: %q", ErrInvalidDocumentOperation, filter.Operation))
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return DocumentQueuePage{}, s.mapError(fmt.Errorf("core: invalid queue status %q", filter.Status))
	}
	page, err := s.documentQueueStore.List(ctx, filter)
	if err != nil {
		return DocumentQueuePage{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) DocumentQueueStatistics(ctx context.Context) (QueueStats, error) {
	if s == nil || s.documentQueueStore == nil {
		return QueueStats{}, s.mapError(fmt.Errorf("core: document queue store is required"))
	}
	stats, err := s.documentQueueStore.Stats(ctx)
	if err != nil {
		return QueueStats{}, s.mapError(err)
	}
	return stats, nil
}

func (s *Service) ReapStaleDocuments(ctx context.Context) (reaped int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["reaped"] = reaped
		s.observeOperation(ctx, startedAt, "reap_stale_documents", err, fields)
	}()

	if s == nil || s.documentQueueStore == nil {
		err = s.mapError(fmt.Errorf("core: document queue store is required"))
		return 0, err
	}
	cutoff := s.now().Add(-s.staleClaimTimeout())
	reaped, reapErr := s.documentQueueStore.ReapStale(ctx, cutoff)
	if reapErr != nil {
		err = s.mapError(reapErr)
		return 0, err
	}
	return reaped, nil
}

func (s *Service) publishDocumentAudit(
	ctx context.Context,
	item DocumentQueueItem,
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
		EntityType: "document",
		EntityID:   item.DocumentID,
		Source:     "syncengine.documents",
		OccurredAt: occurredAt,
		Payload: mergeMetadata(payload, map[string]any{
			"queue_item_id": item.ID,
			"document_id":   item.DocumentID,
			"operation":     string(item.Operation),
			"status":        string(item.Status),
		}),
		Metadata: copyAnyMap(item.Metadata),
	}
	return s.auditBus.Publish(ctx, event)
}
