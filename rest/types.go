package rest

import (
	"time"

	"github.com/npdadmin/syncengine/core"
)

type ConflictResponse struct {
	ID             string         `json:"id"`
	EntityType     string         `json:"entity_type"`
	EntityID       string         `json:"entity_id"`
	InternalData   map[string]any `json:"internal_data,omitempty"`
	ExternalData   map[string]any `json:"external_data,omitempty"`
	ConflictFields []string       `json:"conflict_fields"`
	DetectedAt     time.Time      `json:"detected_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	ResolutionType string         `json:"resolution_type,omitempty"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`
	ResolvedData   map[string]any `json:"resolved_data,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func newConflictResponse(conflict core.SyncConflict) ConflictResponse {
	return ConflictResponse{
		ID:             conflict.ID,
		EntityType:     string(conflict.EntityType),
		EntityID:       conflict.EntityID,
		InternalData:   conflict.InternalData,
		ExternalData:   conflict.ExternalData,
		ConflictFields: conflict.ConflictFields,
		DetectedAt:     conflict.DetectedAt,
		ResolvedAt:     conflict.ResolvedAt,
		ResolutionType: string(conflict.ResolutionType),
		ResolvedBy:     conflict.ResolvedBy,
		ResolvedData:   conflict.ResolvedData,
		Metadata:       conflict.Metadata,
		CreatedAt:      conflict.CreatedAt,
		UpdatedAt:      conflict.UpdatedAt,
	}
}

type ConflictListResponse struct {
	Items    []ConflictResponse `json:"items"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Total    int                `json:"total"`
	HasMore  bool               `json:"has_more"`
}

func newConflictListResponse(page core.ConflictPage) ConflictListResponse {
	items := make([]ConflictResponse, 0, len(page.Items))
	for _, conflict := range page.Items {
		items = append(items, newConflictResponse(conflict))
	}
	return ConflictListResponse{
		Items:    items,
		Page:     page.Page,
		PageSize: page.PerPage,
		Total:    page.Total,
		HasMore:  page.HasMore,
	}
}

type ConflictStatsResponse struct {
	Unresolved int `json:"unresolved"`
	Resolved   int `json:"resolved"`
}

type ResolveConflictRequest struct {
	ResolutionType  string            `json:"resolution_type" binding:"required"`
	MergeSelections map[string]string `json:"merge_selections"`
	ResolvedBy      string            `json:"resolved_by"`
}

func (r ResolveConflictRequest) toResolutionRequest() core.ResolutionRequest {
	var selections map[string]core.FieldSide
	if len(r.MergeSelections) > 0 {
		selections = make(map[string]core.FieldSide, len(r.MergeSelections))
		for field, side := range r.MergeSelections {
			selections[field] = core.FieldSide(side)
		}
	}
	return core.ResolutionRequest{
		Type:            core.ResolutionType(r.ResolutionType),
		MergeSelections: selections,
		ResolvedBy:      r.ResolvedBy,
	}
}

type BulkResolveRequest struct {
	ConflictIDs    []string `json:"conflict_ids" binding:"required,min=1"`
	ResolutionType string   `json:"resolution_type" binding:"required"`
	ResolvedBy     string   `json:"resolved_by"`
}

type BulkResolveOutcomeResponse struct {
	ConflictID string `json:"conflict_id"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type BulkResolveResponse struct {
	Succeeded int                          `json:"succeeded"`
	Failed    int                          `json:"failed"`
	Results   []BulkResolveOutcomeResponse `json:"results"`
}

func newBulkResolveResponse(result core.BulkResolveResult) BulkResolveResponse {
	results := make([]BulkResolveOutcomeResponse, 0, len(result.Results))
	for _, outcome := range result.Results {
		entry := BulkResolveOutcomeResponse{
			ConflictID: outcome.ConflictID,
			Success:    outcome.Err == nil,
		}
		if outcome.Err != nil {
			entry.Error = outcome.Err.Error()
		}
		results = append(results, entry)
	}
	return BulkResolveResponse{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Results:   results,
	}
}

type SyncQueueItemResponse struct {
	ID           string         `json:"id"`
	EntityType   string         `json:"entity_type"`
	EntityID     string         `json:"entity_id"`
	Direction    string         `json:"direction"`
	Operation    string         `json:"operation"`
	Status       string         `json:"status"`
	Attempts     int            `json:"attempts"`
	MaxAttempts  int            `json:"max_attempts"`
	NextRetryAt  *time.Time     `json:"next_retry_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ConflictID   string         `json:"conflict_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func newSyncQueueItemResponse(item core.SyncQueueItem) SyncQueueItemResponse {
	return SyncQueueItemResponse{
		ID:           item.ID,
		EntityType:   string(item.EntityType),
		EntityID:     item.EntityID,
		Direction:    string(item.Direction),
		Operation:    string(item.Operation),
		Status:       string(item.Status),
		Attempts:     item.Attempts,
		MaxAttempts:  item.MaxAttempts,
		NextRetryAt:  item.NextRetryAt,
		ErrorMessage: item.ErrorMessage,
		ConflictID:   item.ConflictID,
		Metadata:     item.Metadata,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

type SyncQueueListResponse struct {
	Items    []SyncQueueItemResponse `json:"items"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
	Total    int                     `json:"total"`
	HasMore  bool                    `json:"has_more"`
}

func newSyncQueueListResponse(page core.SyncQueuePage) SyncQueueListResponse {
	items := make([]SyncQueueItemResponse, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, newSyncQueueItemResponse(item))
	}
	return SyncQueueListResponse{
		Items:    items,
		Page:     page.Page,
		PageSize: page.PerPage,
		Total:    page.Total,
		HasMore:  page.HasMore,
	}
}

type QueueStatsResponse struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

func newQueueStatsResponse(stats core.QueueStats) QueueStatsResponse {
	return QueueStatsResponse{
		Pending:    stats.Pending,
		InProgress: stats.InProgress,
		Completed:  stats.Completed,
		Failed:     stats.Failed,
	}
}

type RetryRequest struct {
	ResetAttempts bool `json:"reset_attempts"`
}

type DocumentQueueItemResponse struct {
	ID           string         `json:"id"`
	DocumentID   string         `json:"document_id"`
	Operation    string         `json:"operation"`
	Status       string         `json:"status"`
	Attempts     int            `json:"attempts"`
	MaxAttempts  int            `json:"max_attempts"`
	NextRetryAt  *time.Time     `json:"next_retry_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func newDocumentQueueItemResponse(item core.DocumentQueueItem) DocumentQueueItemResponse {
	return DocumentQueueItemResponse{
		ID:           item.ID,
		DocumentID:   item.DocumentID,
		Operation:    string(item.Operation),
		Status:       string(item.Status),
		Attempts:     item.Attempts,
		MaxAttempts:  item.MaxAttempts,
		NextRetryAt:  item.NextRetryAt,
		ErrorMessage: item.ErrorMessage,
		Metadata:     item.Metadata,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

type DocumentQueueListResponse struct {
	Items    []DocumentQueueItemResponse `json:"items"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"page_size"`
	Total    int                         `json:"total"`
	HasMore  bool                        `json:"has_more"`
}

func newDocumentQueueListResponse(page core.DocumentQueuePage) DocumentQueueListResponse {
	items := make([]DocumentQueueItemResponse, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, newDocumentQueueItemResponse(item))
	}
	return DocumentQueueListResponse{
		Items:    items,
		Page:     page.Page,
		PageSize: page.PerPage,
		Total:    page.Total,
		HasMore:  page.HasMore,
	}
}
