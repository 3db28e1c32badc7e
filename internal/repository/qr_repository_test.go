package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadriparlanti/qp-api/internal/models"
)

func newQRMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestQRRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newQRMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	mock.ExpectExec("INSERT INTO qr_codes").WillReturnResult(sqlmock.NewResult(1, 1))

	code := &models.QRCode{Code: "Ab3xY9", ThemeID: "theme-1", IsActive: true, CreatedBy: "user-1"}
	err := repo.Create(context.Background(), code)
	require.NoError(t, err)
	assert.NotEmpty(t, code.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQRRepositoryCodeExists(t *testing.T) {
	db, mock, cleanup := newQRMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM qr_codes WHERE code = $1)")).
		WithArgs("Ab3xY9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.CodeExists(context.Background(), "Ab3xY9")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQRRepositoryGetByCode(t *testing.T) {
	db, mock, cleanup := newQRMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "code", "theme_id", "image_path", "is_active", "scan_count", "created_by",
		"created_at", "updated_at", "theme_slug", "theme_title_it", "theme_status",
	}).AddRow("qr-1", "Ab3xY9", "theme-1", nil, true, 5, "user-1", now, now, "la-piazza", "La piazza", models.ThemeStatusPublished)
	mock.ExpectQuery("FROM qr_codes q JOIN themes t").
		WithArgs("Ab3xY9").
		WillReturnRows(rows)

	resolved, err := repo.GetByCode(context.Background(), "Ab3xY9")
	require.NoError(t, err)
	assert.Equal(t, "la-piazza", resolved.ThemeSlug)
	assert.True(t, resolved.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQRRepositoryIncrementScanCount(t *testing.T) {
	db, mock, cleanup := newQRMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE qr_codes SET scan_count = scan_count + 1 WHERE id = $1")).
		WithArgs("qr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementScanCount(context.Background(), "qr-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
