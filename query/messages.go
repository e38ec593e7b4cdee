package query

import (
	"strings"

	"github.com/npdadmin/syncengine/core"
)

const (
	TypeGetConflict        = "syncengine.query.conflict.get"
	TypeListConflicts      = "syncengine.query.conflict.list"
	TypeConflictStats      = "syncengine.query.conflict.stats"
	TypeGetSyncItem        = "syncengine.query.sync_queue.get"
	TypeListSyncQueue      = "syncengine.query.sync_queue.list"
	TypeSyncQueueStats     = "syncengine.query.sync_queue.stats"
	TypeGetDocumentItem    = "syncengine.query.document_queue.get"
	TypeListDocumentQueue  = "syncengine.query.document_queue.list"
	TypeDocumentQueueStats = "syncengine.query.document_queue.stats"
)

type GetConflictMessage struct {
	ConflictID string
}

func (GetConflictMessage) Type() string { return TypeGetConflict }

func (m GetConflictMessage) Validate() error {
	if strings.TrimSpace(m.ConflictID) == "" {
		return queryValidationError("conflict_id", "conflict id is required")
	}
	return nil
}

type ListConflictsMessage struct {
	Filter core.ConflictFilter
}

func (ListConflictsMessage) Type() string { return TypeListConflicts }

func (m ListConflictsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	if m.Filter.EntityType != "" && !m.Filter.EntityType.IsValid() {
		return queryValidationError("entity_type", "entity type must be contact or organization")
	}
	return nil
}

type ConflictStatsMessage struct{}

func (ConflictStatsMessage) Type() string { return TypeConflictStats }

func (ConflictStatsMessage) Validate() error { return nil }

type GetSyncItemMessage struct {
	ItemID string
}

func (GetSyncItemMessage) Type() string { return TypeGetSyncItem }

func (m GetSyncItemMessage) Validate() error {
	if strings.TrimSpace(m.ItemID) == "" {
		return queryValidationError("item_id", "queue item id is required")
	}
	return nil
}

type ListSyncQueueMessage struct {
	Filter core.SyncQueueFilter
}

func (ListSyncQueueMessage) Type() string { return TypeListSyncQueue }

func (m ListSyncQueueMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	if m.Filter.EntityType != "" && !m.Filter.EntityType.IsValid() {
		return queryValidationError("entity_type", "entity type must be contact or organization")
	}
	if m.Filter.Direction != "" && !m.Filter.Direction.IsValid() {
		return queryValidationError("direction", "direction must be to_external or to_internal")
	}
	if m.Filter.Status != "" && !m.Filter.Status.IsValid() {
		return queryValidationError("status", "unknown queue status")
	}
	return nil
}

type SyncQueueStatsMessage struct{}

func (SyncQueueStatsMessage) Type() string { return TypeSyncQueueStats }

func (SyncQueueStatsMessage) Validate() error { return nil }

type GetDocumentItemMessage struct {
	ItemID string
}

func (GetDocumentItemMessage) Type() string { return TypeGetDocumentItem }

func (m GetDocumentItemMessage) Validate() error {
	if strings.TrimSpace(m.ItemID) == "" {
		return queryValidationError("item_id", "queue item id is required")
	}
	return nil
}

type ListDocumentQueueMessage struct {
	Filter core.DocumentQueueFilter
}

func (ListDocumentQueueMessage) Type() string { return TypeListDocumentQueue }

func (m ListDocumentQueueMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	if m.Filter.Operation != "" && !m.Filter.Operation.IsValid() {
		return queryValidationError("operation", "operation must be process or reprocess")
	}
	if m.Filter.Status != "" && !m.Filter.Status.IsValid() {
		return queryValidationError("status", "unknown queue status")
	}
	return nil
}

type DocumentQueueStatsMessage struct{}

func (DocumentQueueStatsMessage) Type() string { return TypeDocumentQueueStats }

func (DocumentQueueStatsMessage) Validate() error { return nil }
