package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/models"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
)

type themeStore interface {
	List(ctx context.Context, filter models.ThemeFilter) ([]models.Theme, error)
	GetByID(ctx context.Context, id string) (*models.Theme, error)
	GetBySlug(ctx context.Context, slug string) (*models.Theme, error)
	Create(ctx context.Context, theme *models.Theme) error
	Update(ctx context.Context, theme *models.Theme) error
	Reorder(ctx context.Context, themeIDs []string) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// ThemeService manages the theme catalog for admins. Public reads go
// through PublicService and its cache.
type ThemeService struct {
	repo      themeStore
	cache     cacheInvalidator
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewThemeService constructs the service.
func NewThemeService(repo themeStore, cache cacheInvalidator, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *ThemeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ThemeService{repo: repo, cache: cache, audit: audit, validator: validate, logger: logger}
}

// List returns themes for the admin screen.
func (s *ThemeService) List(ctx context.Context, filter models.ThemeFilter, actor *models.JWTClaims) ([]models.Theme, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	themes, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list themes")
	}
	return themes, nil
}

// Get returns a theme by identifier.
func (s *ThemeService) Get(ctx context.Context, id string) (*models.Theme, error) {
	theme, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "theme not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load theme")
	}
	return theme, nil
}

// Create adds a new draft theme with a unique slug.
func (s *ThemeService) Create(ctx context.Context, req dto.SaveThemeRequest, actor *models.JWTClaims) (*models.Theme, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid theme payload")
	}

	slug := normaliseSlug(req.Slug)
	if _, err := s.repo.GetBySlug(ctx, slug); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "slug already in use")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slug uniqueness")
	}

	theme := &models.Theme{
		Slug:          slug,
		TitleIT:       strings.TrimSpace(req.TitleIT),
		TitleEN:       req.TitleEN,
		DescriptionIT: req.DescriptionIT,
		DescriptionEN: req.DescriptionEN,
		DisplayOrder:  req.DisplayOrder,
		Status:        models.ThemeStatusDraft,
		CoverImage:    req.CoverImage,
		CreatedBy:     actor.UserID,
	}
	if err := s.repo.Create(ctx, theme); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create theme")
	}
	s.invalidatePublicCache(ctx)
	s.emitThemeAudit(ctx, actor, theme)
	return theme, nil
}

// Update modifies a theme keeping its status.
func (s *ThemeService) Update(ctx context.Context, id string, req dto.SaveThemeRequest, actor *models.JWTClaims) (*models.Theme, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid theme payload")
	}

	theme, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	slug := normaliseSlug(req.Slug)
	if slug != theme.Slug {
		if _, err := s.repo.GetBySlug(ctx, slug); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "slug already in use")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slug uniqueness")
		}
	}

	theme.Slug = slug
	theme.TitleIT = strings.TrimSpace(req.TitleIT)
	theme.TitleEN = req.TitleEN
	theme.DescriptionIT = req.DescriptionIT
	theme.DescriptionEN = req.DescriptionEN
	theme.DisplayOrder = req.DisplayOrder
	theme.CoverImage = req.CoverImage

	if err := s.repo.Update(ctx, theme); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update theme")
	}
	s.invalidatePublicCache(ctx)
	s.emitThemeAudit(ctx, actor, theme)
	return theme, nil
}

// Publish makes the theme visible to the public catalog.
func (s *ThemeService) Publish(ctx context.Context, id string, actor *models.JWTClaims) (*models.Theme, error) {
	return s.setStatus(ctx, id, models.ThemeStatusPublished, actor)
}

// Archive hides the theme from the public catalog; bound QR codes fall
// back to the site root while archived.
func (s *ThemeService) Archive(ctx context.Context, id string, actor *models.JWTClaims) (*models.Theme, error) {
	return s.setStatus(ctx, id, models.ThemeStatusArchived, actor)
}

// Reorder applies the slice order as display order in one transaction.
func (s *ThemeService) Reorder(ctx context.Context, req dto.ReorderThemesRequest, actor *models.JWTClaims) error {
	if !actor.IsAdmin() {
		return appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reorder payload")
	}
	if err := s.repo.Reorder(ctx, req.ThemeIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reorder themes")
	}
	s.invalidatePublicCache(ctx)
	return nil
}

func (s *ThemeService) setStatus(ctx context.Context, id string, status models.ThemeStatus, actor *models.JWTClaims) (*models.Theme, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	theme, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if theme.Status == status {
		return theme, nil
	}
	theme.Status = status
	if err := s.repo.Update(ctx, theme); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change theme status")
	}
	s.invalidatePublicCache(ctx)
	s.emitThemeAudit(ctx, actor, theme)
	return theme, nil
}

func (s *ThemeService) invalidatePublicCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "public:*"); err != nil {
		s.logger.Warn("failed to invalidate public cache", zap.Error(err))
	}
}

func (s *ThemeService) emitThemeAudit(ctx context.Context, actor *models.JWTClaims, theme *models.Theme) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionThemeChange,
		Resource:   "themes",
		ResourceID: &theme.ID,
		NewValues:  []byte(`{"slug":"` + theme.Slug + `","status":"` + string(theme.Status) + `"}`),
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record theme audit log", zap.Error(err))
	}
}

func normaliseSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
