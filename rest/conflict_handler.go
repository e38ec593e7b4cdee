package rest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/npdadmin/syncengine/core"
)

type ConflictHandler struct {
	service ConflictService
}

func NewConflictHandler(service ConflictService) *ConflictHandler {
	return &ConflictHandler{service: service}
}

func (h *ConflictHandler) List(c *gin.Context) {
	filter := core.ConflictFilter{}

	if raw := strings.TrimSpace(c.Query("entity_type")); raw != "" {
		entityType := core.EntityType(raw)
		if !entityType.IsValid() {
			writeError(c, queryParamError("entity_type", "entity type must be contact or organization"))
			return
		}
		filter.EntityType = entityType
	}
	if raw := strings.TrimSpace(c.Query("resolved")); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(c, queryParamError("resolved", "resolved must be a boolean"))
			return
		}
		filter.Resolved = &resolved
	}

	page, pageSize, err := parsePagination(c)
	if err != nil {
		writeError(c, err)
		return
	}
	filter.Page = page
	filter.PerPage = pageSize

	result, err := h.service.ListConflicts(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newConflictListResponse(result))
}

func (h *ConflictHandler) Stats(c *gin.Context) {
	stats, err := h.service.ConflictStatistics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, ConflictStatsResponse{
		Unresolved: stats.Unresolved,
		Resolved:   stats.Resolved,
	})
}

func (h *ConflictHandler) Resolve(c *gin.Context) {
	var req ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	resolved, err := h.service.ResolveConflict(c.Request.Context(), c.Param("id"), req.toResolutionRequest())
	if err != nil {
		writeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newConflictResponse(resolved))
}

func (h *ConflictHandler) BulkResolve(c *gin.Context) {
	var req BulkResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	result, err := h.service.BulkResolve(c.Request.Context(), core.BulkResolveRequest{
		ConflictIDs: req.ConflictIDs,
		Type:        core.ResolutionType(req.ResolutionType),
		ResolvedBy:  req.ResolvedBy,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newBulkResolveResponse(result))
}

func parsePagination(c *gin.Context) (int, int, error) {
	page := 0
	pageSize := 0

	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, queryParamError("page", "page must be a non-negative integer")
		}
		page = parsed
	}
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, queryParamError("page_size", "page_size must be a non-negative integer")
		}
		pageSize = parsed
	}
	return page, pageSize, nil
}
