package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/orghub/security-log/internal/models"
	"github.com/orghub/security-log/internal/repository"
	"github.com/orghub/security-log/internal/storage"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient role to read security logs")
	ErrInvalidFilter   = errors.New("invalid filter or pagination input")
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
	topLimit        = 10
	statsCacheTTL   = 30 * time.Second
)

// Identity of the read-API caller, extracted from the validated token.
type Caller struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// Roles allowed to read the audit log.
var authorizedRoles = map[string]struct{}{
	models.RoleAdmin:           {},
	models.RoleSecurityOfficer: {},
}

// Read side of the summary store.
type SummaryReader interface {
	FindByID(ctx context.Context, id uint) (*models.LogSummary, error)
	List(ctx context.Context, filter repository.LogFilter, orderBy []repository.OrderBy, limit, offset int) ([]models.LogSummary, int64, error)
	Count(ctx context.Context, filter repository.LogFilter) (int64, error)
	CountDistinctUsers(ctx context.Context, filter repository.LogFilter) (int64, error)
	CountByStatus(ctx context.Context, filter repository.LogFilter) ([]repository.StatusCount, error)
	TopOperations(ctx context.Context, filter repository.LogFilter, limit int) ([]repository.NameCount, error)
	TopModules(ctx context.Context, filter repository.LogFilter, limit int) ([]repository.NameCount, error)
	CountByHour(ctx context.Context, filter repository.LogFilter) ([]repository.HourCount, error)
}

// Read side of the detail store.
type DetailReader interface {
	FindByCorrelationID(ctx context.Context, correlationID string) (*models.LogDetail, error)
}

type AuditService struct {
	summaries SummaryReader
	details   DetailReader
	cache     *storage.RedisClient
	log       *logrus.Logger
	now       func() time.Time
}

// details and cache may be nil: a missing detail store means GetLogDetail
// always reports no record, and a missing cache disables statistics caching.
func NewAuditService(summaries SummaryReader, details DetailReader, cache *storage.RedisClient, log *logrus.Logger) *AuditService {
	return &AuditService{
		summaries: summaries,
		details:   details,
		cache:     cache,
		log:       log,
		now:       time.Now,
	}
}

func (s *AuditService) authorize(caller *Caller) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	if _, ok := authorizedRoles[caller.Role]; !ok {
		return ErrForbidden
	}

	return nil
}

// Retrieves a single summary by surrogate id
func (s *AuditService) GetLog(ctx context.Context, caller *Caller, id uint) (*models.LogSummary, error) {
	if err := s.authorize(caller); err != nil {
		return nil, err
	}

	return s.summaries.FindByID(ctx, id)
}

// Retrieves the forensic detail for a correlation id. Returns (nil, nil) when
// the detail store is unconfigured or holds no matching document.
func (s *AuditService) GetLogDetail(ctx context.Context, caller *Caller, correlationID string) (*models.LogDetail, error) {
	if err := s.authorize(caller); err != nil {
		return nil, err
	}

	if s.details == nil {
		return nil, nil
	}

	return s.details.FindByCorrelationID(ctx, correlationID)
}

// Pagination metadata returned alongside a page of summaries
type PageInfo struct {
	Total        int64 `json:"total"`
	PerPage      int   `json:"per_page"`
	CurrentPage  int   `json:"current_page"`
	LastPage     int   `json:"last_page"`
	From         int   `json:"from"`
	To           int   `json:"to"`
	Count        int   `json:"count"`
	HasMorePages bool  `json:"has_more_pages"`
}

type LogPage struct {
	Items    []models.LogSummary `json:"items"`
	PageInfo PageInfo            `json:"page_info"`
}

// Retrieves a filtered, ordered page of summaries
func (s *AuditService) ListLogs(ctx context.Context, caller *Caller, filter repository.LogFilter, orderBy []repository.OrderBy, page, pageSize int) (*LogPage, error) {
	if err := s.authorize(caller); err != nil {
		return nil, err
	}

	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", ErrInvalidFilter)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, filter.Status)
	}

	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	offset := (page - 1) * pageSize
	items, total, err := s.summaries.List(ctx, filter, orderBy, pageSize, offset)
	if err != nil {
		return nil, err
	}

	return &LogPage{
		Items:    items,
		PageInfo: buildPageInfo(total, page, pageSize, len(items)),
	}, nil
}

func buildPageInfo(total int64, page, pageSize, count int) PageInfo {
	lastPage := int((total + int64(pageSize) - 1) / int64(pageSize))
	if lastPage < 1 {
		lastPage = 1
	}

	from, to := 0, 0
	if count > 0 {
		from = (page-1)*pageSize + 1
		to = from + count - 1
	}

	return PageInfo{
		Total:        total,
		PerPage:      pageSize,
		CurrentPage:  page,
		LastPage:     lastPage,
		From:         from,
		To:           to,
		Count:        count,
		HasMorePages: page < lastPage,
	}
}

type NameStat struct {
	Name       string  `json:"name"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type StatusStat struct {
	Status     models.LogStatus `json:"status"`
	Count      int64            `json:"count"`
	Percentage float64          `json:"percentage"`
}

type Statistics struct {
	TotalRequests   int64                  `json:"total_requests"`
	UniqueUsers     int64                  `json:"unique_users"`
	SuccessRate     float64                `json:"success_rate"`
	TopOperations   []NameStat             `json:"top_operations"`
	TopModules      []NameStat             `json:"top_modules"`
	StatusBreakdown []StatusStat           `json:"status_breakdown"`
	RequestsByHour  []repository.HourCount `json:"requests_by_hour"`
}

// Computes aggregate statistics over the filtered summaries
func (s *AuditService) GetStatistics(ctx context.Context, caller *Caller, filter repository.LogFilter) (*Statistics, error) {
	if err := s.authorize(caller); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, filter.Status)
	}

	if cached := s.cachedStatistics(ctx, filter); cached != nil {
		return cached, nil
	}

	stats := &Statistics{
		TopOperations:   []NameStat{},
		TopModules:      []NameStat{},
		StatusBreakdown: []StatusStat{},
		RequestsByHour:  []repository.HourCount{},
	}

	total, err := s.summaries.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats.TotalRequests = total

	hourly, err := s.summaries.CountByHour(ctx, s.hourlyFilter(filter))
	if err != nil {
		return nil, err
	}
	stats.RequestsByHour = hourly

	if total == 0 {
		s.cacheStatistics(ctx, filter, stats)
		return stats, nil
	}

	uniqueUsers, err := s.summaries.CountDistinctUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats.UniqueUsers = uniqueUsers

	breakdown, err := s.summaries.CountByStatus(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, sc := range breakdown {
		stats.StatusBreakdown = append(stats.StatusBreakdown, StatusStat{
			Status:     sc.Status,
			Count:      sc.Count,
			Percentage: percentage(sc.Count, total),
		})
		if sc.Status == models.StatusSuccess {
			stats.SuccessRate = percentage(sc.Count, total)
		}
	}

	topOps, err := s.summaries.TopOperations(ctx, filter, topLimit)
	if err != nil {
		return nil, err
	}
	stats.TopOperations = nameStats(topOps, total)

	topModules, err := s.summaries.TopModules(ctx, filter, topLimit)
	if err != nil {
		return nil, err
	}
	stats.TopModules = nameStats(topModules, total)

	s.cacheStatistics(ctx, filter, stats)

	return stats, nil
}

// When no explicit date range is filtered, the hourly histogram covers the
// trailing 24 hours.
func (s *AuditService) hourlyFilter(filter repository.LogFilter) repository.LogFilter {
	if filter.HasDateRange() {
		return filter
	}

	to := s.now()
	from := to.Add(-24 * time.Hour)
	filter.DateFrom = &from
	filter.DateTo = &to

	return filter
}

func nameStats(counts []repository.NameCount, total int64) []NameStat {
	stats := make([]NameStat, 0, len(counts))
	for _, nc := range counts {
		stats = append(stats, NameStat{
			Name:       nc.Name,
			Count:      nc.Count,
			Percentage: percentage(nc.Count, total),
		})
	}

	return stats
}

func percentage(count, total int64) float64 {
	if total == 0 {
		return 0
	}

	return float64(count) / float64(total) * 100
}

func (s *AuditService) statsCacheKey(filter repository.LogFilter) string {
	raw, _ := json.Marshal(filter)
	hash := sha256.Sum256(raw)

	return fmt.Sprintf("seclog:stats:%s", hex.EncodeToString(hash[:]))
}

func (s *AuditService) cachedStatistics(ctx context.Context, filter repository.LogFilter) *Statistics {
	if s.cache == nil {
		return nil
	}

	cached, err := s.cache.Get(ctx, s.statsCacheKey(filter))
	if err != nil || cached == "" {
		return nil
	}

	var stats Statistics
	if err := json.Unmarshal([]byte(cached), &stats); err != nil {
		return nil
	}

	return &stats
}

func (s *AuditService) cacheStatistics(ctx context.Context, filter repository.LogFilter, stats *Statistics) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, s.statsCacheKey(filter), raw, statsCacheTTL); err != nil {
		s.log.WithError(err).Warn("failed to cache security log statistics")
	}
}
