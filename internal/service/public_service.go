package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/models"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
)

type publicWorkStore interface {
	List(ctx context.Context, filter models.WorkFilter) ([]models.WorkSummary, int, error)
	GetDetail(ctx context.Context, id string) (*models.WorkDetail, error)
}

type publicThemeStore interface {
	ListPublishedWithCounts(ctx context.Context) ([]models.ThemeWithCount, error)
	GetBySlug(ctx context.Context, slug string) (*models.Theme, error)
}

type viewRecorder interface {
	RecordView(event ViewEvent) bool
}

// PublicConfig tunes the anonymous catalog.
type PublicConfig struct {
	CacheTTL time.Duration
	PageSize int
}

// PublicService serves the anonymous catalog: published themes and
// works only, heavily cached. Work views feed the analytics pipeline
// and attachment downloads go through signed URLs.
type PublicService struct {
	works  publicWorkStore
	themes publicThemeStore
	cache  analyticsCache
	events viewRecorder
	signer downloadSigner
	logger *zap.Logger
	config PublicConfig
}

// NewPublicService constructs the service.
func NewPublicService(works publicWorkStore, themes publicThemeStore, cache analyticsCache, events viewRecorder, signer downloadSigner, logger *zap.Logger, config PublicConfig) *PublicService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if config.PageSize <= 0 {
		config.PageSize = 20
	}
	return &PublicService{works: works, themes: themes, cache: cache, events: events, signer: signer, logger: logger, config: config}
}

// ListThemes returns published themes with their work counts.
func (s *PublicService) ListThemes(ctx context.Context) ([]models.ThemeWithCount, error) {
	const cacheKey = "public:themes"
	if s.cache != nil {
		var cached []models.ThemeWithCount
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	themes, err := s.themes.ListPublishedWithCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list themes")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, themes, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to cache public themes", zap.Error(err))
		}
	}
	return themes, nil
}

// GetTheme resolves a published theme by slug together with its
// published works.
func (s *PublicService) GetTheme(ctx context.Context, slug string) (*models.Theme, []models.WorkSummary, error) {
	theme, err := s.themes.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "theme not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load theme")
	}
	if theme.Status != models.ThemeStatusPublished {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "theme not found")
	}

	works, _, err := s.works.List(ctx, models.WorkFilter{
		Status:   []models.WorkStatus{models.WorkStatusPublished},
		ThemeID:  theme.ID,
		PageSize: s.config.PageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list theme works")
	}
	return theme, works, nil
}

// ListWorks returns the published slice of the catalog.
func (s *PublicService) ListWorks(ctx context.Context, query dto.WorkQuery) ([]models.WorkSummary, *models.Pagination, error) {
	filter := models.WorkFilter{
		Status:     []models.WorkStatus{models.WorkStatusPublished},
		ThemeID:    query.ThemeID,
		SchoolYear: query.SchoolYear,
		Tag:        query.Tag,
		Search:     query.Search,
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	if filter.PageSize <= 0 {
		filter.PageSize = s.config.PageSize
	}

	cacheKey := fmt.Sprintf("public:works:%s:%s:%s:%s:%d:%d",
		filter.ThemeID, filter.SchoolYear, filter.Tag, filter.Search, filter.Page, filter.PageSize)

	type cachedPage struct {
		Works []models.WorkSummary `json:"works"`
		Total int                  `json:"total"`
	}
	if s.cache != nil {
		var cached cachedPage
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached.Works, paginationFor(filter, cached.Total), nil
		}
	}

	works, total, err := s.works.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list works")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, cachedPage{Works: works, Total: total}, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to cache public works", zap.Error(err))
		}
	}
	return works, paginationFor(filter, total), nil
}

// GetWork returns a published work with its attachments, links and
// themes. The view is recorded fire-and-forget.
func (s *PublicService) GetWork(ctx context.Context, id string, event ViewEvent) (*models.WorkDetail, error) {
	detail, err := s.works.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work")
	}
	if detail.Work.Status != models.WorkStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "work not found")
	}

	s.signAttachmentURLs(detail)

	if s.events != nil {
		event.WorkID = detail.Work.ID
		_ = s.events.RecordView(event)
	}
	return detail, nil
}

// signAttachmentURLs embeds fresh download tokens so anonymous visitors
// can fetch the binaries of a published work.
func (s *PublicService) signAttachmentURLs(detail *models.WorkDetail) {
	if s.signer == nil {
		return
	}
	for i := range detail.Attachments {
		att := &detail.Attachments[i]
		token, _, err := s.signer.Generate(att.ID, att.StoragePath)
		if err != nil {
			s.logger.Warn("failed to sign attachment download url",
				zap.String("attachment_id", att.ID), zap.Error(err))
			continue
		}
		att.DownloadURL = AttachmentDownloadPath + "?token=" + token
	}
}

func paginationFor(filter models.WorkFilter, total int) *models.Pagination {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	return &models.Pagination{Page: page, PageSize: filter.PageSize, TotalCount: total}
}
