package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/models"
	"github.com/quadriparlanti/qp-api/internal/repository"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
	"github.com/quadriparlanti/qp-api/pkg/export"
	"github.com/quadriparlanti/qp-api/pkg/jobs"
	"github.com/quadriparlanti/qp-api/pkg/storage"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type exportWorkStore interface {
	List(ctx context.Context, filter models.WorkFilter) ([]models.WorkSummary, int, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes the export pipeline.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService runs asynchronous works-register exports: jobs are
// queued, rendered to CSV or PDF by the workers and served through
// signed expiring URLs.
type ExportService struct {
	repo    exportJobStore
	works   exportWorkStore
	storage exportFileStorage
	queue   jobDispatcher
	signer  *storage.SignedURLSigner
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs the service with default renderers.
func NewExportService(repo exportJobStore, works exportWorkStore, files exportFileStorage, queue jobDispatcher, signer *storage.SignedURLSigner, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ExportService{
		repo:    repo,
		works:   works,
		storage: files,
		queue:   queue,
		signer:  signer,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
		cfg:     cfg,
	}
}

// CreateJob persists a new export job and enqueues processing.
func (s *ExportService) CreateJob(ctx context.Context, req dto.ExportRequest, actor *models.JWTClaims) (*dto.ExportJobResponse, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if req.Format != models.ExportFormatCSV && req.Format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	for _, status := range req.Status {
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
		}
	}

	job := &models.ExportJob{
		Params: models.ExportJobParams{
			Status:     req.Status,
			ThemeID:    req.ThemeID,
			SchoolYear: req.SchoolYear,
			Format:     req.Format,
		},
		Status:    models.ExportStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "export"}); err != nil {
		failed := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status}, nil
}

// GetStatus exposes job metadata.
func (s *ExportService) GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ExportStatusResponse, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}

	resp := &dto.ExportStatusResponse{ID: job.ID, Status: job.Status}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the signed token and opens the stored file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	if job.FilePath == nil || *job.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  relPath,
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// Handle processes a queued export job. Wired as the queue handler.
func (s *ExportService) Handle(ctx context.Context, job jobs.Job) error {
	record, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}

	processing := models.ExportStatusProcessing
	started := time.Now().UTC()
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:    &processing,
		StartedAt: &started,
	}); err != nil {
		return err
	}

	relPath, resultURL, err := s.generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= s.cfg.MaxRetries {
			failed := models.ExportStatusFailed
			now := time.Now().UTC()
			if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &failed,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				s.logger.Sugar().Warnw("failed to mark export failed", "job_id", job.ID, "error", updateErr)
			}
		} else {
			queued := models.ExportStatusQueued
			if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &queued,
				ErrorMessage: &msg,
			}); updateErr != nil {
				s.logger.Sugar().Warnw("failed to requeue export", "job_id", job.ID, "error", updateErr)
			}
		}
		return err
	}

	finished := models.ExportStatusFinished
	now := time.Now().UTC()
	clear := ""
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		FilePath:     &relPath,
		ResultURL:    &resultURL,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Sugar().Warnw("failed to mark export finished", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued export jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "export"}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending export", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ExportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Sugar().Warnw("export cleanup list failed", "error", err)
		return
	}
	for _, job := range expired {
		if job.FilePath == nil {
			continue
		}
		if err := s.storage.Delete(*job.FilePath); err != nil {
			s.logger.Sugar().Warnw("export cleanup delete failed", "job_id", job.ID, "error", err)
		}
	}
	if _, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("export filesystem cleanup failed", "error", err)
	}
}

func (s *ExportService) generate(ctx context.Context, job *models.ExportJob) (relPath, resultURL string, err error) {
	dataset, err := s.buildRegisterDataset(ctx, job.Params)
	if err != nil {
		return "", "", err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Registro dei lavori")
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return "", "", err
	}

	filename := fmt.Sprintf("works_register_%s.%s", time.Now().UTC().Format("20060102_150405"), job.Params.Format)
	relPath, err = s.storage.Save(filename, payload)
	if err != nil {
		return "", "", err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return "", "", err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return relPath, fmt.Sprintf("%s/exports/download?token=%s", prefix, token), nil
}

func (s *ExportService) buildRegisterDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, error) {
	headers := []string{"id", "title_it", "class", "teacher", "school_year", "status", "license",
		"submitter", "themes", "attachments", "links", "views", "submitted_at", "published_at"}
	dataset := export.Dataset{Headers: headers}

	filter := models.WorkFilter{
		Status:     params.Status,
		ThemeID:    params.ThemeID,
		SchoolYear: params.SchoolYear,
		PageSize:   100,
	}
	for page := 1; ; page++ {
		filter.Page = page
		works, total, err := s.works.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, fmt.Errorf("load works register: %w", err)
		}
		for _, work := range works {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"id":           work.ID,
				"title_it":     work.TitleIT,
				"class":        work.ClassName,
				"teacher":      work.TeacherName,
				"school_year":  work.SchoolYear,
				"status":       string(work.Status),
				"license":      string(work.License),
				"submitter":    work.SubmitterName,
				"themes":       strconv.Itoa(work.ThemeCount),
				"attachments":  strconv.Itoa(work.AttachmentCount),
				"links":        strconv.Itoa(work.LinkCount),
				"views":        strconv.Itoa(work.ViewCount),
				"submitted_at": formatOptionalTime(work.SubmittedAt),
				"published_at": formatOptionalTime(work.PublishedAt),
			})
		}
		if len(dataset.Rows) >= total || len(works) == 0 {
			break
		}
	}
	return dataset, nil
}

func formatOptionalTime(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
