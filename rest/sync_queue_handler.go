package rest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/npdadmin/syncengine/core"
)

type SyncQueueHandler struct {
	service SyncQueueService
}

func NewSyncQueueHandler(service SyncQueueService) *SyncQueueHandler {
	return &SyncQueueHandler{service: service}
}

func (h *SyncQueueHandler) List(c *gin.Context) {
	filter := core.SyncQueueFilter{}

	if raw := strings.TrimSpace(c.Query("entity_type")); raw != "" {
		entityType := core.EntityType(raw)
		if !entityType.IsValid() {
			writeError(c, queryParamError("entity_type", "entity type must be contact or organization"))
			return
		}
		filter.EntityType = entityType
	}
	if raw := strings.TrimSpace(c.Query("direction")); raw != "" {
		direction := core.SyncDirection(raw)
		if !direction.IsValid() {
			writeError(c, queryParamError("direction", "direction must be to_external or to_internal"))
			return
		}
		filter.Direction = direction
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := core.QueueStatus(raw)
		if !status.IsValid() {
			writeError(c, queryParamError("status", "unknown queue status"))
			return
		}
		filter.Status = status
	}

	page, pageSize, err := parsePagination(c)
	if err != nil {
		writeError(c, err)
		return
	}
	filter.Page = page
	filter.PerPage = pageSize

	result, err := h.service.ListSyncQueue(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newSyncQueueListResponse(result))
}

func (h *SyncQueueHandler) Stats(c *gin.Context) {
	stats, err := h.service.SyncQueueStatistics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newQueueStatsResponse(stats))
}

func (h *SyncQueueHandler) Retry(c *gin.Context) {
	req := RetryRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, bindError(err))
			return
		}
	}

	item, err := h.service.RetrySync(c.Request.Context(), c.Param("id"), req.ResetAttempts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newSyncQueueItemResponse(item))
}
