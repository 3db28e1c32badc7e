package service

import (
	"context"
	"database/sql"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/models"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
)

type themeRepoStub struct {
	themes map[string]*models.Theme
	seq    int
}

func newThemeRepoStub() *themeRepoStub {
	return &themeRepoStub{themes: make(map[string]*models.Theme)}
}

func (m *themeRepoStub) List(ctx context.Context, filter models.ThemeFilter) ([]models.Theme, error) {
	var result []models.Theme
	for _, theme := range m.themes {
		result = append(result, *theme)
	}
	return result, nil
}

func (m *themeRepoStub) GetByID(ctx context.Context, id string) (*models.Theme, error) {
	if theme, ok := m.themes[id]; ok {
		cp := *theme
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *themeRepoStub) GetBySlug(ctx context.Context, slug string) (*models.Theme, error) {
	for _, theme := range m.themes {
		if theme.Slug == slug {
			cp := *theme
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *themeRepoStub) Create(ctx context.Context, theme *models.Theme) error {
	m.seq++
	if theme.ID == "" {
		theme.ID = "theme-" + strconv.Itoa(m.seq)
	}
	cp := *theme
	m.themes[theme.ID] = &cp
	return nil
}

func (m *themeRepoStub) Update(ctx context.Context, theme *models.Theme) error {
	if _, ok := m.themes[theme.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *theme
	m.themes[theme.ID] = &cp
	return nil
}

func (m *themeRepoStub) Reorder(ctx context.Context, themeIDs []string) error {
	for i, id := range themeIDs {
		if theme, ok := m.themes[id]; ok {
			theme.DisplayOrder = i
		}
	}
	return nil
}

type cacheInvalidatorStub struct {
	patterns []string
}

func (m *cacheInvalidatorStub) Invalidate(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func newThemeTestService() (*ThemeService, *themeRepoStub, *cacheInvalidatorStub) {
	repo := newThemeRepoStub()
	cache := &cacheInvalidatorStub{}
	svc := NewThemeService(repo, cache, &auditStub{}, nil, nil)
	return svc, repo, cache
}

func saveThemeRequest(slug, title string) dto.SaveThemeRequest {
	return dto.SaveThemeRequest{Slug: slug, TitleIT: title}
}

func TestCreateThemeStartsAsDraft(t *testing.T) {
	svc, _, cache := newThemeTestService()

	theme, err := svc.Create(context.Background(), saveThemeRequest("la-piazza", "La Piazza"), adminClaims("admin-1"))
	require.NoError(t, err)

	assert.Equal(t, models.ThemeStatusDraft, theme.Status)
	assert.Equal(t, "la-piazza", theme.Slug)
	assert.Contains(t, cache.patterns, "public:*")
}

func TestCreateThemeNormalisesSlug(t *testing.T) {
	svc, _, _ := newThemeTestService()

	theme, err := svc.Create(context.Background(), saveThemeRequest("  La-Piazza  ", "La Piazza"), adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, "la-piazza", theme.Slug)
}

func TestCreateThemeRejectsDuplicateSlug(t *testing.T) {
	svc, _, _ := newThemeTestService()

	_, err := svc.Create(context.Background(), saveThemeRequest("la-piazza", "La Piazza"), adminClaims("admin-1"))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), saveThemeRequest("la-piazza", "Altro tema"), adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCreateThemeRequiresAdmin(t *testing.T) {
	svc, _, _ := newThemeTestService()

	_, err := svc.Create(context.Background(), saveThemeRequest("la-piazza", "La Piazza"), docenteClaims("user-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestPublishThemeInvalidatesPublicCache(t *testing.T) {
	svc, repo, cache := newThemeTestService()

	theme, err := svc.Create(context.Background(), saveThemeRequest("la-piazza", "La Piazza"), adminClaims("admin-1"))
	require.NoError(t, err)
	cache.patterns = nil

	published, err := svc.Publish(context.Background(), theme.ID, adminClaims("admin-1"))
	require.NoError(t, err)

	assert.Equal(t, models.ThemeStatusPublished, published.Status)
	assert.Equal(t, models.ThemeStatusPublished, repo.themes[theme.ID].Status)
	assert.Contains(t, cache.patterns, "public:*")
}

func TestArchiveThemeHidesFromCatalog(t *testing.T) {
	svc, repo, _ := newThemeTestService()

	theme, err := svc.Create(context.Background(), saveThemeRequest("la-piazza", "La Piazza"), adminClaims("admin-1"))
	require.NoError(t, err)

	_, err = svc.Publish(context.Background(), theme.ID, adminClaims("admin-1"))
	require.NoError(t, err)

	archived, err := svc.Archive(context.Background(), theme.ID, adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ThemeStatusArchived, archived.Status)
	assert.Equal(t, models.ThemeStatusArchived, repo.themes[theme.ID].Status)
}

func TestReorderAppliesSliceOrder(t *testing.T) {
	svc, repo, _ := newThemeTestService()

	first, err := svc.Create(context.Background(), saveThemeRequest("primo", "Primo tema"), adminClaims("admin-1"))
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), saveThemeRequest("secondo", "Secondo tema"), adminClaims("admin-1"))
	require.NoError(t, err)

	req := dto.ReorderThemesRequest{ThemeIDs: []string{second.ID, first.ID}}
	require.NoError(t, svc.Reorder(context.Background(), req, adminClaims("admin-1")))

	assert.Equal(t, 0, repo.themes[second.ID].DisplayOrder)
	assert.Equal(t, 1, repo.themes[first.ID].DisplayOrder)
}

func TestReorderRequiresAdmin(t *testing.T) {
	svc, _, _ := newThemeTestService()

	req := dto.ReorderThemesRequest{ThemeIDs: []string{"theme-1"}}
	err := svc.Reorder(context.Background(), req, docenteClaims("user-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}
