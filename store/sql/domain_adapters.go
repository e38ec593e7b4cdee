package sqlstore

import (
	"strings"
	"time"

	"github.com/npdadmin/syncengine/core"
)

func newSyncConflictRecord(conflict core.SyncConflict, now time.Time) *syncConflictRecord {
	record := &syncConflictRecord{
		ID:             conflict.ID,
		EntityType:     string(conflict.EntityType),
		EntityID:       conflict.EntityID,
		InternalData:   copyAnyMap(conflict.InternalData),
		ExternalData:   copyAnyMap(conflict.ExternalData),
		ConflictFields: append([]string(nil), conflict.ConflictFields...),
		DetectedAt:     conflict.DetectedAt,
		ResolutionType: string(conflict.ResolutionType),
		ResolvedBy:     conflict.ResolvedBy,
		ResolvedData:   copyAnyMap(conflict.ResolvedData),
		Metadata:       copyAnyMap(conflict.Metadata),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !conflict.CreatedAt.IsZero() {
		record.CreatedAt = conflict.CreatedAt
	}
	if conflict.ResolvedAt != nil {
		value := conflict.ResolvedAt.UTC()
		record.ResolvedAt = &value
	}
	return record
}

func (r *syncConflictRecord) toDomain() core.SyncConflict {
	if r == nil {
		return core.SyncConflict{}
	}
	conflict := core.SyncConflict{
		ID:             r.ID,
		EntityType:     core.EntityType(r.EntityType),
		EntityID:       r.EntityID,
		InternalData:   copyAnyMap(r.InternalData),
		ExternalData:   copyAnyMap(r.ExternalData),
		ConflictFields: append([]string(nil), r.ConflictFields...),
		DetectedAt:     r.DetectedAt,
		ResolutionType: core.ResolutionType(r.ResolutionType),
		ResolvedBy:     r.ResolvedBy,
		ResolvedData:   copyAnyMap(r.ResolvedData),
		Metadata:       copyAnyMap(r.Metadata),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.ResolvedAt != nil {
		value := *r.ResolvedAt
		conflict.ResolvedAt = &value
	}
	return conflict
}

func newSyncQueueRecord(item core.SyncQueueItem, now time.Time) *syncQueueRecord {
	record := &syncQueueRecord{
		ID:           item.ID,
		EntityType:   string(item.EntityType),
		EntityID:     item.EntityID,
		Direction:    string(item.Direction),
		Operation:    string(item.Operation),
		Status:       string(item.Status),
		Attempts:     item.Attempts,
		MaxAttempts:  item.MaxAttempts,
		ErrorMessage: item.ErrorMessage,
		Metadata:     copyAnyMap(item.Metadata),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !item.CreatedAt.IsZero() {
		record.CreatedAt = item.CreatedAt
	}
	if item.NextRetryAt != nil {
		value := item.NextRetryAt.UTC()
		record.NextRetryAt = &value
	}
	if trimmed := strings.TrimSpace(item.ConflictID); trimmed != "" {
		record.ConflictID = &trimmed
	}
	return record
}

func (r *syncQueueRecord) toDomain() core.SyncQueueItem {
	if r == nil {
		return core.SyncQueueItem{}
	}
	item := core.SyncQueueItem{
		ID:           r.ID,
		EntityType:   core.EntityType(r.EntityType),
		EntityID:     r.EntityID,
		Direction:    core.SyncDirection(r.Direction),
		Operation:    core.SyncOperation(r.Operation),
		Status:       core.QueueStatus(r.Status),
		Attempts:     r.Attempts,
		MaxAttempts:  r.MaxAttempts,
		ErrorMessage: r.ErrorMessage,
		Metadata:     copyAnyMap(r.Metadata),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.NextRetryAt != nil {
		value := *r.NextRetryAt
		item.NextRetryAt = &value
	}
	if r.ConflictID != nil {
		item.ConflictID = strings.TrimSpace(*r.ConflictID)
	}
	return item
}

func newDocumentQueueRecord(item core.DocumentQueueItem, now time.Time) *documentQueueRecord {
	record := &documentQueueRecord{
		ID:           item.ID,
		DocumentID:   item.DocumentID,
		Operation:    string(item.Operation),
		Status:       string(item.Status),
		Attempts:     item.Attempts,
		MaxAttempts:  item.MaxAttempts,
		ErrorMessage: item.ErrorMessage,
		Metadata:     copyAnyMap(item.Metadata),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !item.CreatedAt.IsZero() {
		record.CreatedAt = item.CreatedAt
	}
	if item.NextRetryAt != nil {
		value := item.NextRetryAt.UTC()
		record.NextRetryAt = &value
	}
	return record
}

func (r *documentQueueRecord) toDomain() core.DocumentQueueItem {
	if r == nil {
		return core.DocumentQueueItem{}
	}
	item := core.DocumentQueueItem{
		ID:           r.ID,
		DocumentID:   r.DocumentID,
		Operation:    core.DocumentOperation(r.Operation),
		Status:       core.QueueStatus(r.Status),
		Attempts:     r.Attempts,
		MaxAttempts:  r.MaxAttempts,
		ErrorMessage: r.ErrorMessage,
		Metadata:     copyAnyMap(r.Metadata),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.NextRetryAt != nil {
		value := *r.NextRetryAt
		item.NextRetryAt = &value
	}
	return item
}

func auditOutboxRecordToEvent(record auditOutboxRecord) core.AuditEvent {
	event := core.AuditEvent{
		ID:         record.EventID,
		Name:       record.EventName,
		EntityType: record.EntityType,
		EntityID:   record.EntityID,
		Source:     record.Source,
		Payload:    copyAnyMap(record.Payload),
		Metadata:   copyAnyMap(record.Metadata),
		OccurredAt: record.OccurredAt,
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	event.Metadata[core.MetadataKeyAuditAttempts] = record.Attempts
	return event
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
