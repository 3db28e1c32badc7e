package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/models"
	"github.com/quadriparlanti/qp-api/internal/repository"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
)

type workStore interface {
	CreateAggregate(ctx context.Context, agg repository.WorkAggregate) error
	UpdateAggregate(ctx context.Context, agg repository.WorkAggregate) error
	GetByID(ctx context.Context, id string) (*models.Work, error)
	GetDetail(ctx context.Context, id string) (*models.WorkDetail, error)
	List(ctx context.Context, filter models.WorkFilter) ([]models.WorkSummary, int, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error
	CountThemes(ctx context.Context, workID string) (int, error)
}

// WorkService owns the work aggregate: drafting, updating, submitting
// and archiving. All status changes go through the transition table.
type WorkService struct {
	repo      workStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// NewWorkService constructs the service.
func NewWorkService(repo workStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *WorkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &WorkService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Create stores a new draft aggregate: the work row plus attachments,
// links and theme bindings in one transaction.
func (s *WorkService) Create(ctx context.Context, req dto.SaveWorkRequest, actor *models.JWTClaims) (*models.WorkDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid work payload")
	}

	agg := buildWorkAggregate(req, &models.Work{
		Status:    models.WorkStatusDraft,
		CreatedBy: actor.UserID,
	})
	if err := s.repo.CreateAggregate(ctx, agg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create work")
	}
	return s.repo.GetDetail(ctx, agg.Work.ID)
}

// Update rewrites the aggregate. Only the owner may edit, and only
// while the work is a draft or sent back for revision; admins may edit
// in any state.
func (s *WorkService) Update(ctx context.Context, id string, req dto.SaveWorkRequest, actor *models.JWTClaims) (*models.WorkDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid work payload")
	}

	work, err := s.loadWork(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		if work.CreatedBy != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
		if !work.Status.Editable() {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("work is %s and can no longer be edited", work.Status))
		}
	}

	agg := buildWorkAggregate(req, work)
	if err := s.repo.UpdateAggregate(ctx, agg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update work")
	}
	return s.repo.GetDetail(ctx, id)
}

// Submit moves a draft or revised work into the review queue. Readiness
// is checked before any write; the error lists every failing field.
func (s *WorkService) Submit(ctx context.Context, id string, actor *models.JWTClaims) (*models.Work, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	work, err := s.loadWork(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && work.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}

	themeCount, err := s.repo.CountThemes(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count themes")
	}
	if problems := submitReadinessProblems(work, themeCount); len(problems) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "work is not ready for submission: "+strings.Join(problems, "; "))
	}

	return s.transition(ctx, work, models.WorkStatusPendingReview, actor, models.AuditActionWorkSubmit)
}

// Archive retires the work from any non-archived state.
func (s *WorkService) Archive(ctx context.Context, id string, actor *models.JWTClaims) (*models.Work, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	work, err := s.loadWork(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && work.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return s.transition(ctx, work, models.WorkStatusArchived, actor, models.AuditActionWorkArchive)
}

// Get loads the work detail enforcing visibility: owners see their own
// works in any state, admins see everything.
func (s *WorkService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.WorkDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work")
	}
	if !actor.IsAdmin() && detail.Work.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return detail, nil
}

// List returns works scoped to the actor: docenti see their own,
// admins see all matching the filter.
func (s *WorkService) List(ctx context.Context, query dto.WorkQuery, actor *models.JWTClaims) ([]models.WorkSummary, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.WorkFilter{
		Status:     query.Status,
		ThemeID:    query.ThemeID,
		SchoolYear: query.SchoolYear,
		Tag:        query.Tag,
		Search:     query.Search,
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	if !actor.IsAdmin() {
		filter.CreatedBy = actor.UserID
	}
	works, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list works")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return works, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *WorkService) loadWork(ctx context.Context, id string) (*models.Work, error) {
	work, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work")
	}
	return work, nil
}

func (s *WorkService) transition(ctx context.Context, work *models.Work, to models.WorkStatus, actor *models.JWTClaims, auditAction string) (*models.Work, error) {
	from := work.Status
	now := time.Now().UTC()
	if err := work.Transition(to, now); err != nil {
		var invalid *models.InvalidTransitionError
		if errors.As(err, &invalid) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, invalid.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change status")
	}

	params := repository.UpdateStatusParams{ID: work.ID, From: from, To: to}
	if to == models.WorkStatusPendingReview {
		params.SubmittedAt = work.SubmittedAt
	}
	if to == models.WorkStatusPublished {
		params.PublishedAt = work.PublishedAt
	}
	if err := s.repo.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "work status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist status change")
	}

	s.emitAudit(ctx, actor, auditAction, work, from)
	return work, nil
}

func (s *WorkService) emitAudit(ctx context.Context, actor *models.JWTClaims, action string, work *models.Work, from models.WorkStatus) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "works",
		ResourceID: &work.ID,
		OldValues:  []byte(fmt.Sprintf(`{"status":%q}`, from)),
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, work.Status)),
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record work audit log", zap.Error(err))
	}
}

// submitReadinessProblems collects every field blocking submission so
// callers learn all of them in one round trip.
func submitReadinessProblems(work *models.Work, themeCount int) []string {
	var problems []string
	if len(strings.TrimSpace(work.TitleIT)) < 3 {
		problems = append(problems, "title_it must be at least 3 characters")
	}
	if len(strings.TrimSpace(work.DescriptionIT)) < 10 {
		problems = append(problems, "description_it must be at least 10 characters")
	}
	if themeCount < 1 {
		problems = append(problems, "at least one theme is required")
	}
	return problems
}

func buildWorkAggregate(req dto.SaveWorkRequest, work *models.Work) repository.WorkAggregate {
	work.TitleIT = strings.TrimSpace(req.TitleIT)
	work.TitleEN = req.TitleEN
	work.DescriptionIT = strings.TrimSpace(req.DescriptionIT)
	work.DescriptionEN = req.DescriptionEN
	work.ClassName = strings.TrimSpace(req.ClassName)
	work.TeacherName = strings.TrimSpace(req.TeacherName)
	work.SchoolYear = strings.TrimSpace(req.SchoolYear)
	work.Tags = models.StringList(req.Tags)
	if req.License != "" {
		work.License = req.License
	} else if work.License == "" {
		work.License = models.LicenseCCBY
	}

	agg := repository.WorkAggregate{Work: work, ThemeIDs: req.ThemeIDs}
	for _, att := range req.Attachments {
		agg.Attachments = append(agg.Attachments, models.WorkAttachment{
			StoragePath: att.StoragePath,
			FileName:    att.FileName,
			MimeType:    att.MimeType,
			FileType:    attachmentTypeFromMime(att.MimeType),
			SizeBytes:   att.SizeBytes,
		})
	}
	for _, link := range req.Links {
		agg.Links = append(agg.Links, models.WorkLink{
			URL:      link.URL,
			Provider: linkProviderFromURL(link.URL),
			Label:    link.Label,
		})
	}
	return agg
}

func attachmentTypeFromMime(mime string) models.AttachmentType {
	if mime == "application/pdf" {
		return models.AttachmentPDF
	}
	return models.AttachmentImage
}

func linkProviderFromURL(rawURL string) models.LinkProvider {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "youtube.com"), strings.Contains(lower, "youtu.be"):
		return models.LinkYouTube
	case strings.Contains(lower, "vimeo.com"):
		return models.LinkVimeo
	case strings.Contains(lower, "drive.google.com"), strings.Contains(lower, "docs.google.com"):
		return models.LinkDrive
	default:
		return models.LinkOther
	}
}
