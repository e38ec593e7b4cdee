package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidEntityType          = errors.New("core: invalid entity type")
	ErrInvalidSyncDirection       = errors.New("core: invalid sync direction")
	ErrInvalidSyncOperation       = errors.New("core: invalid sync operation")
	ErrInvalidDocumentOperation   = errors.New("core: invalid document operation")
	ErrInvalidResolutionType      = errors.New("core: invalid resolution type")
	ErrInvalidQueueTransition     = errors.New("core: invalid queue status transition")
	ErrQueueItemNotFound          = errors.New("core: queue item not found")
	ErrQueueItemNotRetryable      = errors.New("core: queue item is not retryable")
	ErrQueueItemNotCancellable    = errors.New("core: queue item is not cancellable")
	ErrConflictNotFound           = errors.New("core: sync conflict not found")
	ErrConflictAlreadyResolved    = errors.New("core: sync conflict already resolved")
	ErrIncompleteSelection        = errors.New("core: merge selection does not cover conflict fields")
	ErrBulkMergeNotAllowed        = errors.New("core: merge resolution is not allowed in bulk")
)

type EntityType string

const (
	EntityTypeContact      EntityType = "contact"
	EntityTypeOrganization EntityType = "organization"
)

func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeContact, EntityTypeOrganization:
		return true
	default:
		return false
	}
}

// SyncDirection names the side a propagation writes to: to_external pushes
// the internal record into the CRM, to_internal pulls the CRM record into
// the internal database.
type SyncDirection string

const (
	DirectionToExternal SyncDirection = "to_external"
	DirectionToInternal SyncDirection = "to_internal"
)

func (d SyncDirection) IsValid() bool {
	switch d {
	case DirectionToExternal, DirectionToInternal:
		return true
	default:
		return false
	}
}

type SyncOperation string

const (
	SyncOperationCreate SyncOperation = "create"
	SyncOperationUpdate SyncOperation = "update"
	SyncOperationDelete SyncOperation = "delete"
)

func (o SyncOperation) IsValid() bool {
	switch o {
	case SyncOperationCreate, SyncOperationUpdate, SyncOperationDelete:
		return true
	default:
		return false
	}
}

type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusInProgress QueueStatus = "in_progress"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusCancelled  QueueStatus = "cancelled"
)

func (s QueueStatus) IsValid() bool {
	switch s {
	case QueueStatusPending, QueueStatusInProgress, QueueStatusCompleted,
		QueueStatusFailed, QueueStatusCancelled:
		return true
	default:
		return false
	}
}

// Active reports whether the status holds the per-key uniqueness slot in the
// queue. Failed items are deliberately not active: a dead letter must not
// block fresh work for the same entity and direction.
func (s QueueStatus) Active() bool {
	return s == QueueStatusPending || s == QueueStatusInProgress
}

func (s QueueStatus) Terminal() bool {
	return s == QueueStatusCompleted || s == QueueStatusCancelled
}

// SyncQueueItem is one pending or historical propagation of a single entity
// in a single direction. Completed and dead-lettered items are retained for
// audit and are never deleted by the engine.
type SyncQueueItem struct {
	ID           string
	EntityType   EntityType
	EntityID     string
	Direction    SyncDirection
	Operation    SyncOperation
	Status       QueueStatus
	Attempts     int
	MaxAttempts  int
	NextRetryAt  *time.Time
	ErrorMessage string
	ConflictID   string
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeadLettered reports whether the item exhausted its retry budget and now
// requires a manual retry.
func (i SyncQueueItem) DeadLettered() bool {
	return i.Status == QueueStatusFailed && i.NextRetryAt == nil
}

func (i *SyncQueueItem) TransitionTo(status QueueStatus, now time.Time) error {
	if i == nil {
		return nil
	}
	if i.Status == status {
		i.UpdatedAt = now
		return nil
	}
	if !queueTransitionAllowed(i.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidQueueTransition, i.Status, status)
	}
	i.Status = status
	i.UpdatedAt = now
	return nil
}

func queueTransitionAllowed(current, next QueueStatus) bool {
	allowed := map[QueueStatus]map[QueueStatus]struct{}{
		QueueStatusPending: {
			QueueStatusInProgress: {},
			QueueStatusCancelled:  {},
		},
		QueueStatusInProgress: {
			QueueStatusCompleted: {},
			QueueStatusFailed:    {},
			QueueStatusPending:   {},
		},
		QueueStatusFailed: {
			QueueStatusPending: {},
		},
		QueueStatusCompleted: {},
		QueueStatusCancelled: {},
	}
	_, ok := allowed[current][next]
	return ok
}

type ResolutionType string

const (
	ResolutionKeepInternal ResolutionType = "keep_internal"
	ResolutionKeepExternal ResolutionType = "keep_external"
	ResolutionMerge        ResolutionType = "merge"
)

func (r ResolutionType) IsValid() bool {
	switch r {
	case ResolutionKeepInternal, ResolutionKeepExternal, ResolutionMerge:
		return true
	default:
		return false
	}
}

// FieldSide names which snapshot a merge selection takes a field from.
type FieldSide string

const (
	FieldSideInternal FieldSide = "internal"
	FieldSideExternal FieldSide = "external"
)

func (s FieldSide) IsValid() bool {
	switch s {
	case FieldSideInternal, FieldSideExternal:
		return true
	default:
		return false
	}
}

// SyncConflict is one detected divergence between the internal and external
// snapshots of a single entity. Resolved conflicts are retained as an audit
// trail and are never deleted.
type SyncConflict struct {
	ID             string
	EntityType     EntityType
	EntityID       string
	InternalData   map[string]any
	ExternalData   map[string]any
	ConflictFields []string
	DetectedAt     time.Time
	ResolvedAt     *time.Time
	ResolutionType ResolutionType
	ResolvedBy     string
	ResolvedData   map[string]any
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c SyncConflict) Resolved() bool {
	return c.ResolvedAt != nil
}

func (c SyncConflict) Validate() error {
	if !c.EntityType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntityType, c.EntityType)
	}
	if strings.TrimSpace(c.EntityID) == "" {
		return fmt.Errorf("core: entity id is required")
	}
	if len(c.ConflictFields) == 0 && !c.Resolved() {
		return fmt.Errorf("core: unresolved conflict requires at least one conflicting field")
	}
	if c.ResolutionType != "" && !c.ResolutionType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidResolutionType, c.ResolutionType)
	}
	return nil
}

type DocumentOperation string

const (
	DocumentOperationProcess   DocumentOperation = "process"
	DocumentOperationReprocess DocumentOperation = "reprocess"
)

func (o DocumentOperation) IsValid() bool {
	switch o {
	case DocumentOperationProcess, DocumentOperationReprocess:
		return true
	default:
		return false
	}
}

// DocumentQueueItem is the document-processing twin of SyncQueueItem, keyed
// by document id instead of entity/direction.
type DocumentQueueItem struct {
	ID           string
	DocumentID   string
	Operation    DocumentOperation
	Status       QueueStatus
	Attempts     int
	MaxAttempts  int
	NextRetryAt  *time.Time
	ErrorMessage string
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (i DocumentQueueItem) DeadLettered() bool {
	return i.Status == QueueStatusFailed && i.NextRetryAt == nil
}

func (i *DocumentQueueItem) TransitionTo(status QueueStatus, now time.Time) error {
	if i == nil {
		return nil
	}
	if i.Status == status {
		i.UpdatedAt = now
		return nil
	}
	if !queueTransitionAllowed(i.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidQueueTransition, i.Status, status)
	}
	i.Status = status
	i.UpdatedAt = now
	return nil
}

// AuditEvent is one append-only entry handed to the configured audit sink.
type AuditEvent struct {
	ID         string
	Name       string
	EntityType string
	EntityID   string
	Source     string
	OccurredAt time.Time
	Payload    map[string]any
	Metadata   map[string]any
}
