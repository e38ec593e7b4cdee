package rest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/npdadmin/syncengine/core"
)

type DocumentQueueHandler struct {
	service DocumentQueueService
}

func NewDocumentQueueHandler(service DocumentQueueService) *DocumentQueueHandler {
	return &DocumentQueueHandler{service: service}
}

func (h *DocumentQueueHandler) List(c *gin.Context) {
	filter := core.DocumentQueueFilter{}

	if raw := strings.TrimSpace(c.Query("operation")); raw != "" {
		operation := core.DocumentOperation(raw)
		if !operation.IsValid() {
			writeError(c, queryParamError("operation", "operation must be process or reprocess"))
			return
		}
		filter.Operation = operation
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

	result, err := h.service.ListDocumentQueue(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newDocumentQueueListResponse(result))
}

func (h *DocumentQueueHandler) Stats(c *gin.Context) {
	stats, err := h.service.DocumentQueueStatistics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newQueueStatsResponse(stats))
}

func (h *DocumentQueueHandler) Retry(c *gin.Context) {
	req := RetryRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, bindError(err))
			return
		}
	}

	item, err := h.service.RetryDocument(c.Request.Context(), c.Param("id"), req.ResetAttempts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newDocumentQueueItemResponse(item))
}

func (h *DocumentQueueHandler) Cancel(c *gin.Context) {
	item, err := h.service.CancelDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newDocumentQueueItemResponse(item))
}
