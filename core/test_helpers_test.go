package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

type fakeConflictStore struct {
	records map[string]SyncConflict
	order   []string
}

func newFakeConflictStore() *fakeConflictStore {
	return &fakeConflictStore{records: make(map[string]SyncConflict)}
}

func (s *fakeConflictStore) Create(ctx context.Context, conflict SyncConflict) (SyncConflict, error) {
	if conflict.ID == "" {
		conflict.ID = fmt.Sprintf("conflict_%d", len(s.order)+1)
	}
	s.records[conflict.ID] = conflict
	s.order = append(s.order, conflict.ID)
	return conflict, nil
}

func (s *fakeConflictStore) Get(ctx context.Context, id string) (SyncConflict, error) {
	conflict, ok := s.records[id]
	if !ok {
		return SyncConflict{}, fmt.Errorf("%w: %s", ErrConflictNotFound, id)
	}
	return conflict, nil
}

func (s *fakeConflictStore) List(ctx context.Context, filter ConflictFilter) (ConflictPage, error) {
	matched := make([]SyncConflict, 0)
	for _, id := range s.order {
		conflict := s.records[id]
		if filter.EntityType != "" && conflict.EntityType != filter.EntityType {
			continue
		}
		if filter.Resolved != nil && conflict.Resolved() != *filter.Resolved {
			continue
		}
		matched = append(matched, conflict)
	}
	start := (filter.Page - 1) * filter.PerPage
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return ConflictPage{
		Items:   matched[start:end],
		Page:    filter.Page,
		PerPage: filter.PerPage,
		Total:   len(matched),
		HasMore: end < len(matched),
	}, nil
}

func (s *fakeConflictStore) Resolve(ctx context.Context, id string, update ResolveConflictUpdate) (SyncConflict, error) {
	conflict, ok := s.records[id]
	if !ok {
		return SyncConflict{}, fmt.Errorf("%w: %s", ErrConflictNotFound, id)
	}
	if conflict.Resolved() {
		return SyncConflict{}, fmt.Errorf("%w: %s", ErrConflictAlreadyResolved, id)
	}
	resolvedAt := update.ResolvedAt
	conflict.ResolvedAt = &resolvedAt
	conflict.ResolutionType = update.ResolutionType
	conflict.ResolvedBy = update.ResolvedBy
	conflict.ResolvedData = update.ResolvedData
	conflict.UpdatedAt = resolvedAt
	s.records[id] = conflict
	return conflict, nil
}

func (s *fakeConflictStore) Stats(ctx context.Context) (ConflictStats, error) {
	stats := ConflictStats{}
	for _, conflict := range s.records {
		if conflict.Resolved() {
			stats.Resolved++
		} else {
			stats.Unresolved++
		}
	}
	return stats, nil
}

type fakeSyncQueueStore struct {
	records map[string]SyncQueueItem
	order   []string
}

func newFakeSyncQueueStore() *fakeSyncQueueStore {
	return &fakeSyncQueueStore{records: make(map[string]SyncQueueItem)}
}

func (s *fakeSyncQueueStore) Enqueue(ctx context.Context, item SyncQueueItem) (SyncQueueItem, bool, error) {
	for _, id := range s.order {
		existing := s.records[id]
		if existing.Status.Active() &&
			existing.EntityType == item.EntityType &&
			existing.EntityID == item.EntityID &&
			existing.Direction == item.Direction {
			return existing, false, nil
		}
	}
	if item.ID == "" {
		item.ID = fmt.Sprintf("sync_%d", len(s.order)+1)
	}
	s.records[item.ID] = item
	s.order = append(s.order, item.ID)
	return item, true, nil
}

func (s *fakeSyncQueueStore) Get(ctx context.Context, id string) (SyncQueueItem, error) {
	item, ok := s.records[id]
	if !ok {
		return SyncQueueItem{}, fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
	}
	return item, nil
}

func (s *fakeSyncQueueStore) ClaimNext(ctx context.Context, now time.Time) (SyncQueueItem, bool, error) {
	candidates := make([]SyncQueueItem, 0)
	for _, id := range s.order {
		item := s.records[id]
		if item.Status != QueueStatusPending {
			continue
		}
		if item.NextRetryAt != nil && item.NextRetryAt.After(now) {
			continue
		}
		candidates = append(candidates, item)
	}
	if len(candidates) == 0 {
		return SyncQueueItem{}, false, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		left, right := candidates[i].NextRetryAt, candidates[j].NextRetryAt
		if (left == nil) != (right == nil) {
			return left == nil
		}
		if left != nil && right != nil && !left.Equal(*right) {
			return left.Before(*right)
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	item := candidates[0]
	item.Status = QueueStatusInProgress
	item.UpdatedAt = now
	s.records[item.ID] = item
	return item, true, nil
}

func (s *fakeSyncQueueStore) Complete(ctx context.Context, id string) (SyncQueueItem, error) {
	item, ok := s.records[id]
	if !ok {
		return SyncQueueItem{}, fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
	}
	item.Status = QueueStatusCompleted
	item.NextRetryAt = nil
	s.records[id] = item
	return item, nil
}

func (s *fakeSyncQueueStore) Fail(ctx context.Context, id string, update FailQueueUpdate) (SyncQueueItem, error) {
	item, ok := s.records[id]
	if !ok {
		return SyncQueueItem{}, fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
	}
	item.Attempts++
	item.ErrorMessage = update.ErrorMessage
	if update.NextRetryAt != nil {
		retryAt := *update.NextRetryAt
		item.Status = QueueStatusPending
		item.NextRetryAt = &retryAt
	} else {
		item.Status = QueueStatusFailed
		item.NextRetryAt = nil
	}
	s.records[id] = item
	return item, nil
}

func (s *fakeSyncQueueStore) Retry(ctx context.Context, id string, update RetryQueueUpdate) (SyncQueueItem, error) {
	item, ok := s.records[id]
	if !ok {
		return SyncQueueItem{}, fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
	}
	if item.Status != QueueStatusFailed {
		return SyncQueueItem{}, fmt.Errorf("%w: %s is %s", ErrQueueItemNotRetryable, id, item.Status)
	}
	if update.ResetAttempts {
		item.Attempts = 0
		item.NextRetryAt = nil
	} else if update.NextRetryAt != nil {
		retryAt := *update.NextRetryAt
		item.NextRetryAt = &retryAt
	} else {
		item.NextRetryAt = nil
	}
	item.Status = QueueStatusPending
	s.records[id] = item
	return item, nil
}

func (s *fakeSyncQueueStore) List(ctx context.Context, filter SyncQueueFilter) (SyncQueuePage, error) {
	matched := make([]SyncQueueItem, 0)
	for _, id := range s.order {
		item := s.records[id]
		if filter.EntityType != "" && item.EntityType != filter.EntityType {
			continue
		}
		if filter.Direction != "" && item.Direction != filter.Direction {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		matched = append(matched, item)
	}
	start := (filter.Page - 1) * filter.PerPage
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return SyncQueuePage{
		Items:   matched[start:end],
		Page:    filter.Page,
		PerPage: filter.PerPage,
		Total:   len(matched),
		HasMore: end < len(matched),
	}, nil
}

func (s *fakeSyncQueueStore) Stats(ctx context.Context) (QueueStats, error) {
	stats := QueueStats{}
	for _, item := range s.records {
		switch item.Status {
		case QueueStatusPending:
			stats.Pending++
		case QueueStatusInProgress:
			stats.InProgress++
		case QueueStatusCompleted:
			stats.Completed++
		case QueueStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (s *fakeSyncQueueStore) ReapStale(ctx context.Context, olderThan time.Time) (int, error) {
	reaped := 0
	for id, item := range s.records {
		if item.Status == QueueStatusInProgress && item.UpdatedAt.Before(olderThan) {
			item.Status = QueueStatusPending
			s.records[id] = item
			reaped++
		}
	}
	return reaped, nil
}

type fakeDocumentQueueStore struct {
	records map[string]DocumentQueueItem
	order   []string
}

func newFakeDocumentQueueStore() *fakeDocumentQueueStore {
	return &fakeDocumentQueueStore{records: make(map[string]DocumentQueueItem)}
}

func (s *fakeDocumentQueueStore) Enqueue(ctx context.Context, item DocumentQueueItem) (DocumentQueueItem, bool, error) {
	for _, id := range s.order {
		existing := s.records[id]
		if existing.Status.Active() && existing.DocumentID == item.DocumentID {
			return existing, false, nil
		}
	}
	if item.ID == "" {
		item.ID = fmt.Sprintf("doc_%d", len(s.order)+1)
	}
	s.records[item.ID] = item
	s.order = append(s.order, item.ID)
	return item, true, nil
}

func (s *fakeDocumentQueueStore) Get(ctx context.Context, id string) (DocumentQueueItem, error) {
	item, ok := s.records[id]
	if !ok {
		return DocumentQueueItem{}, fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
	}
	return item, nil
}

func (s *fakeDocumentQueueStore) ClaimNext(ctx context.Context, now time.Time) (DocumentQueueItem, bool, error) {
	for _, id := range s.order {
		item := s.records[id]
		if item.Status != QueueStatusPending {
			continue
		}
		if item.NextRetryAt != nil && item.NextRetryAt.After(now) {
			continue
		}
		item.Status = QueueStatusInProgress
		item.UpdatedAt = now
		s.records[id] = item
		return item, true, nil
	}
	return DocumentQueueItem{}, false, nil
}

func (s *fakeDocumentQueueStore) Complete(ctx context.Context, id string) (DocumentQueueItem, error) {
	item, ok := s.records[id]
	if !ok {
		return DocumentQueueItem{}, fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
	}
	item.Status = QueueStatusCompleted
	item.NextRetryAt = nil
	s.records[id] = item
	return item, nil
}

func (s *fakeDocumentQueueStore) Fail(ctx context.Context, id string, update FailQueueUpdate) (DocumentQueueItem, error) {
	item, ok := s.records[id]
	if !ok {
		return DocumentQueueItem{}, fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
	}
	item.Attempts++
	item.ErrorMessage = update.ErrorMessage
	if update.NextRetryAt != nil {
		retryAt := *update.NextRetryAt
		item.Status = QueueStatusPending
		item.NextRetryAt = &retryAt
	} else {
		item.Status = QueueStatusFailed
		item.NextRetryAt = nil
	}
	s.records[id] = item
	return item, nil
}

func (s *fakeDocumentQueueStore) Retry(ctx context.Context, id string, update RetryQueueUpdate) (DocumentQueueItem, error) {
	item, ok := s.records[id]
	if !ok {
		return DocumentQueueItem{}, fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
	}
	if item.Status != QueueStatusFailed {
		return DocumentQueueItem{}, fmt.Errorf("%w: %s is %s", ErrQueueItemNotRetryable, id, item.Status)
	}
	if update.ResetAttempts {
		item.Attempts = 0
		item.NextRetryAt = nil
	} else if update.NextRetryAt != nil {
		retryAt := *update.NextRetryAt
		item.NextRetryAt = &retryAt
	} else {
		item.NextRetryAt = nil
	}
	item.Status = QueueStatusPending
	s.records[id] = item
	return item, nil
}

func (s *fakeDocumentQueueStore) Cancel(ctx context.Context, id string) (DocumentQueueItem, error) {
	item, ok := s.records[id]
	if !ok {
		return DocumentQueueItem{}, fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
	}
	if item.Status != QueueStatusPending {
		return DocumentQueueItem{}, fmt.Errorf("%w: %s is %s", ErrQueueItemNotCancellable, id, item.Status)
	}
	item.Status = QueueStatusCancelled
	item.NextRetryAt = nil
	s.records[id] = item
	return item, nil
}

func (s *fakeDocumentQueueStore) List(ctx context.Context, filter DocumentQueueFilter) (DocumentQueuePage, error) {
	matched := make([]DocumentQueueItem, 0)
	for _, id := range s.order {
		item := s.records[id]
		if filter.Operation != "" && item.Operation != filter.Operation {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		matched = append(matched, item)
	}
	start := (filter.Page - 1) * filter.PerPage
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return DocumentQueuePage{
		Items:   matched[start:end],
		Page:    filter.Page,
		PerPage: filter.PerPage,
		Total:   len(matched),
		HasMore: end < len(matched),
	}, nil
}

func (s *fakeDocumentQueueStore) Stats(ctx context.Context) (QueueStats, error) {
	stats := QueueStats{}
	for _, item := range s.records {
		switch item.Status {
		case QueueStatusPending:
			stats.Pending++
		case QueueStatusInProgress:
			stats.InProgress++
		case QueueStatusCompleted:
			stats.Completed++
		case QueueStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (s *fakeDocumentQueueStore) ReapStale(ctx context.Context, olderThan time.Time) (int, error) {
	reaped := 0
	for id, item := range s.records {
		if item.Status == QueueStatusInProgress && item.UpdatedAt.Before(olderThan) {
			item.Status = QueueStatusPending
			s.records[id] = item
			reaped++
		}
	}
	return reaped, nil
}

type recordingAuditBus struct {
	events []AuditEvent
}

func (b *recordingAuditBus) Publish(ctx context.Context, event AuditEvent) error {
	b.events = append(b.events, event)
	return nil
}

func (b *recordingAuditBus) Subscribe(handler AuditEventHandler) {}

func (b *recordingAuditBus) eventNames() []string {
	names := make([]string, 0, len(b.events))
	for _, event := range b.events {
		names = append(names, event.Name)
	}
	return names
}

type memoryAuditOutboxStore struct {
	pending []AuditEvent
	failed  []AuditEvent
}

func (s *memoryAuditOutboxStore) Enqueue(ctx context.Context, event AuditEvent) error {
	s.pending = append(s.pending, event)
	return nil
}

func (s *memoryAuditOutboxStore) ClaimBatch(ctx context.Context, limit int) ([]AuditEvent, error) {
	if limit > len(s.pending) {
		limit = len(s.pending)
	}
	batch := append([]AuditEvent(nil), s.pending[:limit]...)
	return batch, nil
}

func (s *memoryAuditOutboxStore) Ack(ctx context.Context, eventID string) error {
	for i, event := range s.pending {
		if event.ID == eventID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("audit event not found: %s", eventID)
}

func (s *memoryAuditOutboxStore) Retry(ctx context.Context, eventID string, cause error, nextAttemptAt time.Time) error {
	for i, event := range s.pending {
		if event.ID != eventID {
			continue
		}
		if nextAttemptAt.IsZero() {
			s.failed = append(s.failed, event)
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
		if event.Metadata == nil {
			event.Metadata = map[string]any{}
		}
		event.Metadata[MetadataKeyAuditAttempts] = auditAttemptIndex(event) + 1
		s.pending[i] = event
		return nil
	}
	return fmt.Errorf("audit event not found: %s", eventID)
}

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}

func (c *fixedClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

type sequenceIDs struct {
	prefix string
	next   int
}

func (g *sequenceIDs) New() string {
	g.next++
	return fmt.Sprintf("%s_%d", g.prefix, g.next)
}

func newTestService(t interface {
	Fatalf(format string, args ...any)
}, options ...Option) (*Service, *fakeConflictStore, *fakeSyncQueueStore, *fakeDocumentQueueStore, *recordingAuditBus, *fixedClock) {
	conflicts := newFakeConflictStore()
	syncQueue := newFakeSyncQueueStore()
	documents := newFakeDocumentQueueStore()
	bus := &recordingAuditBus{}
	clock := &fixedClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	ids := &sequenceIDs{prefix: "id"}

	base := []Option{
		WithConflictStore(conflicts),
		WithSyncQueueStore(syncQueue),
		WithDocumentQueueStore(documents),
		WithAuditEventBus(bus),
		WithClock(clock.Now),
		WithIDGenerator(ids.New),
		WithRetryScheduler(RetryScheduler{
			Initial:             30 * time.Second,
			Max:                 30 * time.Minute,
			JitterFraction:      0,
			RateLimitMultiplier: 4,
		}),
	}
	service, err := NewService(DefaultConfig(), append(base, options...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, conflicts, syncQueue, documents, bus, clock
}

func containsString(values []string, want string) bool {
	for _, value := range values {
		if strings.Contains(value, want) {
			return true
		}
	}
	return false
}
