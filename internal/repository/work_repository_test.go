package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadriparlanti/qp-api/internal/models"
)

func newWorkMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestWorkRepositoryCreateAggregate(t *testing.T) {
	db, mock, cleanup := newWorkMock(t)
	defer cleanup()
	repo := NewWorkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO works").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO work_attachments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO work_links").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO work_themes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	label := "Project video"
	work := &models.Work{
		TitleIT:       "La piazza racconta",
		DescriptionIT: "Percorso sulla piazza del paese",
		ClassName:     "3B",
		TeacherName:   "M. Bianchi",
		SchoolYear:    "2025/2026",
		License:       models.LicenseCCBY,
		CreatedBy:     "user-1",
	}
	err := repo.CreateAggregate(context.Background(), WorkAggregate{
		Work: work,
		Attachments: []models.WorkAttachment{
			{StoragePath: "attachments/a.jpg", FileName: "a.jpg", MimeType: "image/jpeg", FileType: models.AttachmentImage, SizeBytes: 1024},
		},
		Links: []models.WorkLink{
			{URL: "https://youtube.com/watch?v=abc", Provider: models.LinkYouTube, Label: &label},
		},
		ThemeIDs: []string{"theme-1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, work.ID)
	assert.Equal(t, models.WorkStatusDraft, work.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkRepositoryCreateAggregateRollsBackOnChildFailure(t *testing.T) {
	db, mock, cleanup := newWorkMock(t)
	defer cleanup()
	repo := NewWorkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO works").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO work_themes").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.CreateAggregate(context.Background(), WorkAggregate{
		Work:     &models.Work{TitleIT: "Titolo", DescriptionIT: "Descrizione", CreatedBy: "user-1"},
		ThemeIDs: []string{"theme-1"},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newWorkMock(t)
	defer cleanup()
	repo := NewWorkRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE works SET status").
		WithArgs(models.WorkStatusPendingReview, sqlmock.AnyArg(), nil, "work-1", models.WorkStatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:          "work-1",
		From:        models.WorkStatusDraft,
		To:          models.WorkStatusPendingReview,
		SubmittedAt: &now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkRepositoryUpdateStatusLostRace(t *testing.T) {
	db, mock, cleanup := newWorkMock(t)
	defer cleanup()
	repo := NewWorkRepository(db)

	mock.ExpectExec("UPDATE works SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:   "work-1",
		From: models.WorkStatusPendingReview,
		To:   models.WorkStatusPublished,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkRepositoryListReviewQueue(t *testing.T) {
	db, mock, cleanup := newWorkMock(t)
	defer cleanup()
	repo := NewWorkRepository(db)

	submitted := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "title_it", "title_en", "description_it", "description_en", "class_name", "teacher_name",
		"school_year", "status", "license", "tags", "view_count", "edit_count", "created_by", "created_at",
		"updated_at", "submitted_at", "published_at", "submitter_name", "submitter_email",
		"attachment_count", "link_count", "theme_count",
	}).AddRow(
		"work-1", "Titolo", nil, "Descrizione", nil, "3B", "M. Bianchi",
		"2025/2026", models.WorkStatusPendingReview, models.LicenseCCBY, "{}", 0, 0, "user-1", submitted,
		submitted, submitted, nil, "Maria Bianchi", "maria@example.org",
		2, 1, 1,
	)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY w.submitted_at ASC")).
		WithArgs(models.WorkStatusPendingReview).
		WillReturnRows(rows)

	works, err := repo.ListReviewQueue(context.Background())
	require.NoError(t, err)
	require.Len(t, works, 1)
	assert.Equal(t, models.WorkStatusPendingReview, works[0].Status)
	assert.Equal(t, "Maria Bianchi", works[0].SubmitterName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
