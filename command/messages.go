package command

import (
	"strings"

	"github.com/npdadmin/syncengine/core"
)

const (
	TypeRecordConflict  = "syncengine.command.conflict.record"
	TypeResolveConflict = "syncengine.command.conflict.resolve"
	TypeBulkResolve     = "syncengine.command.conflict.bulk_resolve"
	TypeEnqueueSync     = "syncengine.command.sync_queue.enqueue"
	TypeRetrySync       = "syncengine.command.sync_queue.retry"
	TypeEnqueueDocument = "syncengine.command.document_queue.enqueue"
	TypeRetryDocument   = "syncengine.command.document_queue.retry"
	TypeCancelDocument  = "syncengine.command.document_queue.cancel"
	TypeReapStale       = "syncengine.command.queues.reap_stale"
)

type RecordConflictMessage struct {
	Input core.RecordConflictInput
}

func (RecordConflictMessage) Type() string { return TypeRecordConflict }

func (m RecordConflictMessage) Validate() error {
	if !m.Input.EntityType.IsValid() {
		return commandValidationError("entity_type", "entity type must be contact or organization")
	}
	if strings.TrimSpace(m.Input.EntityID) == "" {
		return commandValidationError("entity_id", "entity id is required")
	}
	return nil
}

type ResolveConflictMessage struct {
	ConflictID string
	Request    core.ResolutionRequest
}

func (ResolveConflictMessage) Type() string { return TypeResolveConflict }

func (m ResolveConflictMessage) Validate() error {
	if strings.TrimSpace(m.ConflictID) == "" {
		return commandValidationError("conflict_id", "conflict id is required")
	}
	if !m.Request.Type.IsValid() {
		return commandValidationError("resolution_type", "resolution type must be keep_internal, keep_external or merge")
	}
	if m.Request.Type == core.ResolutionMerge && len(m.Request.MergeSelections) == 0 {
		return commandValidationError("merge_selections", "merge resolution requires field selections")
	}
	return nil
}

type BulkResolveMessage struct {
	Request core.BulkResolveRequest
}

func (BulkResolveMessage) Type() string { return TypeBulkResolve }

func (m BulkResolveMessage) Validate() error {
	if len(m.Request.ConflictIDs) == 0 {
		return commandValidationError("conflict_ids", "at least one conflict id is required")
	}
	if !m.Request.Type.IsValid() {
		return commandValidationError("resolution_type", "resolution type must be keep_internal, keep_external or merge")
	}
	if m.Request.Type == core.ResolutionMerge {
		return commandValidationError("resolution_type", "merge resolution is not allowed in bulk")
	}
	return nil
}

type EnqueueSyncMessage struct {
	Input core.EnqueueSyncInput
}

func (EnqueueSyncMessage) Type() string { return TypeEnqueueSync }

func (m EnqueueSyncMessage) Validate() error {
	if !m.Input.EntityType.IsValid() {
		return commandValidationError("entity_type", "entity type must be contact or organization")
	}
	if strings.TrimSpace(m.Input.EntityID) == "" {
		return commandValidationError("entity_id", "entity id is required")
	}
	if !m.Input.Direction.IsValid() {
		return commandValidationError("direction", "direction must be to_external or to_internal")
	}
	if !m.Input.Operation.IsValid() {
		return commandValidationError("operation", "operation must be create, update or delete")
	}
	return nil
}

type RetrySyncMessage struct {
	ItemID        string
	ResetAttempts bool
}

func (RetrySyncMessage) Type() string { return TypeRetrySync }

func (m RetrySyncMessage) Validate() error {
	if strings.TrimSpace(m.ItemID) == "" {
		return commandValidationError("item_id", "queue item id is required")
	}
	return nil
}

type EnqueueDocumentMessage struct {
	Input core.EnqueueDocumentInput
}

func (EnqueueDocumentMessage) Type() string { return TypeEnqueueDocument }

func (m EnqueueDocumentMessage) Validate() error {
	if strings.TrimSpace(m.Input.DocumentID) == "" {
		return commandValidationError("document_id", "document id is required")
	}
	if !m.Input.Operation.IsValid() {
		return commandValidationError("operation", "operation must be process or reprocess")
	}
	return nil
}

type RetryDocumentMessage struct {
	ItemID        string
	ResetAttempts bool
}

func (RetryDocumentMessage) Type() string { return TypeRetryDocument }

func (m RetryDocumentMessage) Validate() error {
	if strings.TrimSpace(m.ItemID) == "" {
		return commandValidationError("item_id", "queue item id is required")
	}
	return nil
}

type CancelDocumentMessage struct {
	ItemID string
}

func (CancelDocumentMessage) Type() string { return TypeCancelDocument }

func (m CancelDocumentMessage) Validate() error {
	if strings.TrimSpace(m.ItemID) == "" {
		return commandValidationError("item_id", "queue item id is required")
	}
	return nil
}

// ReapStaleMessage requeues abandoned in-progress items across both queues.
type ReapStaleMessage struct{}

func (ReapStaleMessage) Type() string { return TypeReapStale }

func (ReapStaleMessage) Validate() error { return nil }
