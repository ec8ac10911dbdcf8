package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/orghub/security-log/internal/middleware"
	"github.com/orghub/security-log/internal/models"
	"github.com/orghub/security-log/internal/repository"
	"github.com/orghub/security-log/internal/service"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(service *service.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// Handles GET /admin/security-logs
func (h *AuditHandler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page := 1
	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil {
			page = p
		}
	}

	pageSize := 0
	if sizeStr := c.Query("page_size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil {
			pageSize = s
		}
	}

	ctx := c.Request.Context()
	result, err := h.service.ListLogs(ctx, middleware.CallerFromContext(c), filter, parseOrderBy(c), page, pageSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Handles GET /admin/security-logs/stats
func (h *AuditHandler) Statistics(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	stats, err := h.service.GetStatistics(ctx, middleware.CallerFromContext(c), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Handles GET /admin/security-logs/:id
func (h *AuditHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log id"})
		return
	}

	ctx := c.Request.Context()
	log, err := h.service.GetLog(ctx, middleware.CallerFromContext(c), uint(id))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if log == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Log not found"})
		return
	}

	c.JSON(http.StatusOK, log)
}

// Handles GET /admin/security-logs/:id/detail. A missing detail document is
// not an error: the body is null.
func (h *AuditHandler) GetDetail(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log id"})
		return
	}

	ctx := c.Request.Context()
	caller := middleware.CallerFromContext(c)

	log, err := h.service.GetLog(ctx, caller, uint(id))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if log == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Log not found"})
		return
	}

	detail, err := h.service.GetLogDetail(ctx, caller, log.CorrelationID.String())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parseFilter(c *gin.Context) (repository.LogFilter, error) {
	filter := repository.LogFilter{
		Email:     c.Query("email"),
		Operation: c.Query("operation"),
		Module:    c.Query("module"),
		Status:    models.LogStatus(c.Query("status")),
		IPAddress: c.Query("ip_address"),
		Search:    c.Query("search"),
	}

	if idStr := c.Query("user_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return filter, errors.New("invalid user_id")
		}
		filter.UserID = &id
	}

	if fromStr := c.Query("from"); fromStr != "" {
		from, err := parseTime(fromStr)
		if err != nil {
			return filter, errors.New("invalid from date")
		}
		filter.DateFrom = &from
	}

	if toStr := c.Query("to"); toStr != "" {
		to, err := parseTime(toStr)
		if err != nil {
			return filter, errors.New("invalid to date")
		}
		filter.DateTo = &to
	}

	return filter, nil
}

// Accepts RFC3339 or a Unix timestamp
func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}

	timestamp, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}

	return time.Unix(timestamp, 0), nil
}

// Parses order_by as a comma-separated list of "column" or "column:desc"
func parseOrderBy(c *gin.Context) []repository.OrderBy {
	raw := c.Query("order_by")
	if raw == "" {
		return nil
	}

	var orderBy []repository.OrderBy
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		column, direction, _ := strings.Cut(part, ":")
		orderBy = append(orderBy, repository.OrderBy{
			Column: column,
			Desc:   strings.EqualFold(direction, "desc"),
		})
	}

	return orderBy
}
