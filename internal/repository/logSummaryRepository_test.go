package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/orghub/security-log/internal/models"
	"github.com/orghub/security-log/internal/storage"
)

func newMockRepo(t *testing.T) (*LogSummaryRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewLogSummaryRepository(&storage.Postgres{DB: gdb}), mock
}

func TestCreateSummary(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO "security_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	module := "UserManagement"
	log := &models.LogSummary{
		CorrelationID: uuid.New(),
		Operation:     "CreateUser",
		Module:        &module,
		IPAddress:     "10.0.0.1",
		Status:        models.StatusSuccess,
		CreatedAt:     time.Now().UTC(),
	}

	err := repo.Create(context.Background(), log)
	require.NoError(t, err)
	assert.Equal(t, uint(1), log.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT \* FROM "security_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	log, err := repo.FindByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, log)
}

func TestListAppliesFilters(t *testing.T) {
	repo, mock := newMockRepo(t)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(2)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "security_logs" WHERE operation ILIKE \$1 AND status = \$2`).
		WillReturnRows(countRows)

	listRows := sqlmock.NewRows([]string{"id", "operation", "status"}).
		AddRow(1, "CreateUser", "success").
		AddRow(2, "CreateUserProfile", "success")
	mock.ExpectQuery(`SELECT \* FROM "security_logs" WHERE operation ILIKE \$1 AND status = \$2 ORDER BY created_at DESC`).
		WillReturnRows(listRows)

	filter := LogFilter{Status: models.StatusSuccess, Operation: "createuser"}
	logs, total, err := repo.List(context.Background(), filter, nil, 25, 0)

	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, logs, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRejectsUnknownOrderColumn(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "security_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	// An unknown order column must fall back to created_at, never reach SQL
	mock.ExpectQuery(`SELECT \* FROM "security_logs" ORDER BY created_at ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, _, err := repo.List(context.Background(), LogFilter{}, []OrderBy{{Column: "1; DROP TABLE users"}}, 25, 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("success", 8).
		AddRow("graphql_error", 2)
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) as count FROM "security_logs"`).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background(), LogFilter{})
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, models.StatusSuccess, counts[0].Status)
	assert.Equal(t, int64(8), counts[0].Count)
}

func TestSearchFilterOrsAcrossColumns(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "security_logs" WHERE \(email ILIKE \$1 OR operation ILIKE \$2 OR module ILIKE \$3 OR ip_address ILIKE \$4\)`).
		WithArgs("%admin%", "%admin%", "%admin%", "%admin%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.Count(context.Background(), LogFilter{Search: "admin"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
