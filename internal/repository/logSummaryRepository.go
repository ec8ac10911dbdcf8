package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/orghub/security-log/internal/models"
	"github.com/orghub/security-log/internal/storage"
	"gorm.io/gorm"
)

// Optional filters applied to list and statistics queries. Zero values mean
// "not filtered".
type LogFilter struct {
	UserID    *uuid.UUID
	Email     string
	Operation string
	Module    string
	Status    models.LogStatus
	IPAddress string
	DateFrom  *time.Time
	DateTo    *time.Time
	Search    string
}

// HasDateRange reports whether an explicit creation-date bound was supplied.
func (f LogFilter) HasDateRange() bool {
	return f.DateFrom != nil || f.DateTo != nil
}

type OrderBy struct {
	Column string
	Desc   bool
}

// Columns callers may order by. Unknown columns fall back to created_at.
var orderableColumns = map[string]string{
	"id":         "id",
	"operation":  "operation",
	"module":     "module",
	"status":     "status",
	"ip_address": "ip_address",
	"email":      "email",
	"created_at": "created_at",
}

type StatusCount struct {
	Status models.LogStatus `json:"status"`
	Count  int64            `json:"count"`
}

type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type HourCount struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

type LogSummaryRepository struct {
	db *storage.Postgres
}

func NewLogSummaryRepository(db *storage.Postgres) *LogSummaryRepository {
	return &LogSummaryRepository{db: db}
}

// Inserts a new summary row
func (r *LogSummaryRepository) Create(ctx context.Context, log *models.LogSummary) error {
	return r.db.DB.WithContext(ctx).Create(log).Error
}

// Retrieves a summary by surrogate id
func (r *LogSummaryRepository) FindByID(ctx context.Context, id uint) (*models.LogSummary, error) {
	var log models.LogSummary
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&log).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &log, err
}

// Applies the filter set to a query against security_logs
func (r *LogSummaryRepository) filtered(ctx context.Context, filter LogFilter) *gorm.DB {
	q := r.db.DB.WithContext(ctx).Model(&models.LogSummary{})

	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Email != "" {
		q = q.Where("email ILIKE ?", "%"+filter.Email+"%")
	}
	if filter.Operation != "" {
		q = q.Where("operation ILIKE ?", "%"+filter.Operation+"%")
	}
	if filter.Module != "" {
		q = q.Where("module = ?", filter.Module)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.IPAddress != "" {
		q = q.Where("ip_address ILIKE ?", "%"+filter.IPAddress+"%")
	}
	if filter.DateFrom != nil {
		q = q.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		q = q.Where("created_at <= ?", *filter.DateTo)
	}
	if filter.Search != "" {
		term := "%" + filter.Search + "%"
		q = q.Where(
			"email ILIKE ? OR operation ILIKE ? OR module ILIKE ? OR ip_address ILIKE ?",
			term, term, term, term,
		)
	}

	return q
}

// Retrieves one page of filtered summaries plus the total matching count
func (r *LogSummaryRepository) List(ctx context.Context, filter LogFilter, orderBy []OrderBy, limit, offset int) ([]models.LogSummary, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.filtered(ctx, filter)
	for _, ob := range applyOrderDefaults(orderBy) {
		column := orderableColumns[ob.Column]
		if column == "" {
			column = "created_at"
		}
		direction := "ASC"
		if ob.Desc {
			direction = "DESC"
		}
		q = q.Order(column + " " + direction)
	}

	var logs []models.LogSummary
	err := q.Limit(limit).Offset(offset).Find(&logs).Error

	return logs, total, err
}

func applyOrderDefaults(orderBy []OrderBy) []OrderBy {
	if len(orderBy) == 0 {
		return []OrderBy{{Column: "created_at", Desc: true}}
	}
	return orderBy
}

// Counts filtered rows
func (r *LogSummaryRepository) Count(ctx context.Context, filter LogFilter) (int64, error) {
	var count int64
	err := r.filtered(ctx, filter).Count(&count).Error
	return count, err
}

// Counts distinct non-null user ids among filtered rows
func (r *LogSummaryRepository) CountDistinctUsers(ctx context.Context, filter LogFilter) (int64, error) {
	var count int64
	err := r.filtered(ctx, filter).
		Where("user_id IS NOT NULL").
		Distinct("user_id").
		Count(&count).Error

	return count, err
}

// Returns per-status counts for the filtered rows
func (r *LogSummaryRepository) CountByStatus(ctx context.Context, filter LogFilter) ([]StatusCount, error) {
	var results []StatusCount
	err := r.filtered(ctx, filter).
		Select("status, COUNT(*) as count").
		Group("status").
		Order("count DESC").
		Scan(&results).Error

	return results, err
}

// Returns the most frequent operations among the filtered rows
func (r *LogSummaryRepository) TopOperations(ctx context.Context, filter LogFilter, limit int) ([]NameCount, error) {
	var results []NameCount
	err := r.filtered(ctx, filter).
		Select("operation as name, COUNT(*) as count").
		Group("operation").
		Order("count DESC").
		Limit(limit).
		Scan(&results).Error

	return results, err
}

// Returns the most frequent modules among the filtered rows
func (r *LogSummaryRepository) TopModules(ctx context.Context, filter LogFilter, limit int) ([]NameCount, error) {
	var results []NameCount
	err := r.filtered(ctx, filter).
		Where("module IS NOT NULL").
		Select("module as name, COUNT(*) as count").
		Group("module").
		Order("count DESC").
		Limit(limit).
		Scan(&results).Error

	return results, err
}

// Returns the request count grouped by hour
func (r *LogSummaryRepository) CountByHour(ctx context.Context, filter LogFilter) ([]HourCount, error) {
	var results []HourCount
	err := r.filtered(ctx, filter).
		Select("DATE_TRUNC('hour', created_at) as hour, COUNT(*) as count").
		Group("hour").
		Order("hour ASC").
		Scan(&results).Error

	return results, err
}

// Deletes summaries older than the specified time. Operator tooling; the
// pipeline itself never deletes.
func (r *LogSummaryRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.LogSummary{})

	return result.RowsAffected, result.Error
}
