package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/models"
	"github.com/quadriparlanti/qp-api/internal/repository"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
)

type reviewWorkStore interface {
	GetByID(ctx context.Context, id string) (*models.Work, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error
	ListReviewQueue(ctx context.Context) ([]models.WorkSummary, error)
}

type reviewStore interface {
	Create(ctx context.Context, review *models.WorkReview) error
	ListByWork(ctx context.Context, workID string) ([]models.WorkReview, error)
}

// ReviewService handles the admin review queue: approving, rejecting
// and the append-only decision history.
type ReviewService struct {
	works   reviewWorkStore
	reviews reviewStore
	audit   auditLogger
	logger  *zap.Logger
}

// NewReviewService constructs the service.
func NewReviewService(works reviewWorkStore, reviews reviewStore, audit auditLogger, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{works: works, reviews: reviews, audit: audit, logger: logger}
}

// Queue returns pending works oldest submission first.
func (s *ReviewService) Queue(ctx context.Context, actor *models.JWTClaims) ([]models.WorkSummary, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	works, err := s.works.ListReviewQueue(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review queue")
	}
	return works, nil
}

// Approve publishes a pending work and appends the decision record.
// Comments are optional; a blank comment is stored as NULL.
func (s *ReviewService) Approve(ctx context.Context, workID string, req dto.ReviewDecisionRequest, actor *models.JWTClaims) (*models.Work, error) {
	return s.decide(ctx, workID, models.ReviewActionApproved, req.Comments, actor)
}

// Reject sends a pending work back for revision. Comments are required;
// an empty or whitespace comment is rejected before any state change.
func (s *ReviewService) Reject(ctx context.Context, workID string, req dto.ReviewDecisionRequest, actor *models.JWTClaims) (*models.Work, error) {
	if strings.TrimSpace(req.Comments) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comments are required when rejecting a work")
	}
	return s.decide(ctx, workID, models.ReviewActionRejected, req.Comments, actor)
}

// History lists the append-only decisions for a work, newest first.
func (s *ReviewService) History(ctx context.Context, workID string, actor *models.JWTClaims) ([]models.WorkReview, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	work, err := s.works.GetByID(ctx, workID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work")
	}
	if !actor.IsAdmin() && work.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	reviews, err := s.reviews.ListByWork(ctx, workID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review history")
	}
	return reviews, nil
}

func (s *ReviewService) decide(ctx context.Context, workID string, action models.ReviewAction, comments string, actor *models.JWTClaims) (*models.Work, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}

	work, err := s.works.GetByID(ctx, workID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work")
	}

	target := models.WorkStatusPublished
	if action == models.ReviewActionRejected {
		target = models.WorkStatusNeedsRevision
	}

	from := work.Status
	now := time.Now().UTC()
	if err := work.Transition(target, now); err != nil {
		var invalid *models.InvalidTransitionError
		if errors.As(err, &invalid) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, invalid.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change status")
	}

	params := repository.UpdateStatusParams{ID: work.ID, From: from, To: target}
	if target == models.WorkStatusPublished {
		params.PublishedAt = work.PublishedAt
	}
	if err := s.works.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "work was reviewed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist decision")
	}

	review := &models.WorkReview{
		WorkID:     work.ID,
		Action:     action,
		Comments:   optionalComments(comments),
		ReviewerID: actor.UserID,
		CreatedAt:  now,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review")
	}

	if s.audit != nil {
		log := &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionWorkReview,
			Resource:   "works",
			ResourceID: &work.ID,
			OldValues:  []byte(`{"status":"` + string(from) + `"}`),
			NewValues:  []byte(`{"status":"` + string(work.Status) + `","action":"` + string(action) + `"}`),
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to record review audit log", zap.Error(err))
		}
	}

	return work, nil
}

func optionalComments(comments string) *string {
	trimmed := strings.TrimSpace(comments)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
