package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/models"
	"github.com/quadriparlanti/qp-api/internal/repository"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
	"github.com/quadriparlanti/qp-api/pkg/jobs"
	"github.com/quadriparlanti/qp-api/pkg/storage"
)

type exportJobRepoStub struct {
	jobs map[string]*models.ExportJob
	seq  int
}

func newExportJobRepoStub() *exportJobRepoStub {
	return &exportJobRepoStub{jobs: make(map[string]*models.ExportJob)}
}

func (m *exportJobRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	m.seq++
	if job.ID == "" {
		job.ID = "job-" + strconv.Itoa(m.seq)
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *exportJobRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	if job, ok := m.jobs[id]; ok {
		cp := *job
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *exportJobRepoStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.FilePath != nil {
		job.FilePath = params.FilePath
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.StartedAt != nil {
		job.StartedAt = params.StartedAt
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *exportJobRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range m.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (m *exportJobRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	return nil, nil
}

type exportWorksStub struct {
	works   []models.WorkSummary
	listErr error
}

func (m *exportWorksStub) List(ctx context.Context, filter models.WorkFilter) ([]models.WorkSummary, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	if filter.Page > 1 {
		return nil, len(m.works), nil
	}
	return m.works, len(m.works), nil
}

type exportFilesStub struct {
	dir string
}

func (m *exportFilesStub) Save(filename string, data []byte) (string, error) {
	if err := os.WriteFile(filepath.Join(m.dir, filename), data, 0o644); err != nil {
		return "", err
	}
	return filename, nil
}

func (m *exportFilesStub) Open(filename string) (*os.File, error) {
	return os.Open(filepath.Join(m.dir, filename))
}

func (m *exportFilesStub) Delete(filename string) error {
	return os.Remove(filepath.Join(m.dir, filename))
}

func (m *exportFilesStub) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

type dispatcherStub struct {
	jobs       []jobs.Job
	enqueueErr error
}

func (m *dispatcherStub) Enqueue(job jobs.Job) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func newExportTestService(t *testing.T) (*ExportService, *exportJobRepoStub, *exportWorksStub, *dispatcherStub) {
	t.Helper()
	repo := newExportJobRepoStub()
	works := &exportWorksStub{}
	dispatcher := &dispatcherStub{}
	files := &exportFilesStub{dir: t.TempDir()}
	signer := storage.NewSignedURLSigner("export-secret", time.Minute)
	svc := NewExportService(repo, works, files, dispatcher, signer, nil, ExportConfig{
		APIPrefix:  "/api/v1",
		MaxRetries: 3,
	})
	return svc, repo, works, dispatcher
}

func publishedSummary(id, title string) models.WorkSummary {
	return models.WorkSummary{
		Work: models.Work{
			ID:         id,
			TitleIT:    title,
			ClassName:  "3B",
			SchoolYear: "2025/2026",
			Status:     models.WorkStatusPublished,
		},
		SubmitterName: "Maria Rossi",
		ThemeCount:    1,
	}
}

func TestCreateJobQueuesExport(t *testing.T) {
	svc, repo, _, dispatcher := newExportTestService(t)

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{Format: models.ExportFormatCSV}, adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)

	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, resp.ID, dispatcher.jobs[0].ID)
	require.Contains(t, repo.jobs, resp.ID)
}

func TestCreateJobRequiresAdmin(t *testing.T) {
	svc, _, _, _ := newExportTestService(t)

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{Format: models.ExportFormatCSV}, docenteClaims("user-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestCreateJobRejectsUnknownFormat(t *testing.T) {
	svc, repo, _, dispatcher := newExportTestService(t)

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{Format: "xlsx"}, adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.jobs)
	assert.Empty(t, dispatcher.jobs)
}

func TestHandleRendersRegisterAndFinishesJob(t *testing.T) {
	svc, repo, works, dispatcher := newExportTestService(t)
	works.works = []models.WorkSummary{publishedSummary("work-1", "La nostra piazza")}

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{Format: models.ExportFormatCSV}, adminClaims("admin-1"))
	require.NoError(t, err)

	require.NoError(t, svc.Handle(context.Background(), dispatcher.jobs[0]))

	job := repo.jobs[resp.ID]
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	require.NotNil(t, job.FilePath)
	require.NotNil(t, job.ResultURL)
	assert.Contains(t, *job.ResultURL, "/api/v1/exports/download?token=")
	assert.NotNil(t, job.FinishedAt)
}

func TestHandleRequeuesFailedJobUntilBudget(t *testing.T) {
	svc, repo, works, dispatcher := newExportTestService(t)
	works.listErr = errors.New("db unavailable")

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{Format: models.ExportFormatCSV}, adminClaims("admin-1"))
	require.NoError(t, err)

	failing := dispatcher.jobs[0]
	failing.Attempt = 1
	require.Error(t, svc.Handle(context.Background(), failing))
	assert.Equal(t, models.ExportStatusQueued, repo.jobs[resp.ID].Status)
	require.NotNil(t, repo.jobs[resp.ID].ErrorMessage)

	failing.Attempt = 3
	require.Error(t, svc.Handle(context.Background(), failing))
	assert.Equal(t, models.ExportStatusFailed, repo.jobs[resp.ID].Status)
}

func TestResolveDownloadRoundTrip(t *testing.T) {
	svc, _, works, dispatcher := newExportTestService(t)
	works.works = []models.WorkSummary{publishedSummary("work-1", "La nostra piazza")}

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{Format: models.ExportFormatCSV}, adminClaims("admin-1"))
	require.NoError(t, err)
	require.NoError(t, svc.Handle(context.Background(), dispatcher.jobs[0]))

	status, err := svc.GetStatus(context.Background(), resp.ID, adminClaims("admin-1"))
	require.NoError(t, err)
	require.NotNil(t, status.ResultURL)

	token := (*status.ResultURL)[strings.Index(*status.ResultURL, "token=")+len("token="):]
	result, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer result.File.Close() //nolint:errcheck

	data, err := io.ReadAll(result.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "La nostra piazza")
	assert.Contains(t, string(data), "Maria Rossi")
}

func TestExportResolveDownloadRejectsBadToken(t *testing.T) {
	svc, _, _, _ := newExportTestService(t)

	_, err := svc.ResolveDownload(context.Background(), "garbage")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
