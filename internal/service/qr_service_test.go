package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/models"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
)

type qrRepoStub struct {
	codes       map[string]*models.QRCodeWithTheme
	existing    map[string]bool
	existsCalls int
	created     []*models.QRCode
}

func newQRRepoStub() *qrRepoStub {
	return &qrRepoStub{codes: make(map[string]*models.QRCodeWithTheme), existing: make(map[string]bool)}
}

func (m *qrRepoStub) Create(ctx context.Context, code *models.QRCode) error {
	code.ID = "qr-" + code.Code
	m.created = append(m.created, code)
	return nil
}

func (m *qrRepoStub) CodeExists(ctx context.Context, code string) (bool, error) {
	m.existsCalls++
	return m.existing[code] || m.existing["*"], nil
}

func (m *qrRepoStub) GetByCode(ctx context.Context, code string) (*models.QRCodeWithTheme, error) {
	if found, ok := m.codes[code]; ok {
		return found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *qrRepoStub) GetByID(ctx context.Context, id string) (*models.QRCode, error) {
	for _, code := range m.codes {
		if code.ID == id {
			cp := code.QRCode
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *qrRepoStub) List(ctx context.Context) ([]models.QRCodeWithTheme, error) {
	var result []models.QRCodeWithTheme
	for _, code := range m.codes {
		result = append(result, *code)
	}
	return result, nil
}

func (m *qrRepoStub) SetActive(ctx context.Context, id string, active bool) error {
	for _, code := range m.codes {
		if code.ID == id {
			code.IsActive = active
			return nil
		}
	}
	return sql.ErrNoRows
}

type qrThemeStub struct {
	themes map[string]*models.Theme
}

func (m *qrThemeStub) GetByID(ctx context.Context, id string) (*models.Theme, error) {
	if theme, ok := m.themes[id]; ok {
		return theme, nil
	}
	return nil, sql.ErrNoRows
}

type qrImageStub struct {
	saved map[string][]byte
}

func (m *qrImageStub) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return "qr/" + filename, nil
}

func (m *qrImageStub) Path(filename string) string {
	return "/data/" + filename
}

type scanRecorderStub struct {
	events []ScanEvent
}

func (m *scanRecorderStub) RecordScan(event ScanEvent) bool {
	m.events = append(m.events, event)
	return true
}

func activeCode(code, slug string, themeStatus models.ThemeStatus) *models.QRCodeWithTheme {
	return &models.QRCodeWithTheme{
		QRCode:      models.QRCode{ID: "qr-" + code, Code: code, ThemeID: "theme-1", IsActive: true},
		ThemeSlug:   slug,
		ThemeStatus: themeStatus,
	}
}

func newQRTestService(repo *qrRepoStub, scans *scanRecorderStub) *QRService {
	return NewQRService(repo,
		&qrThemeStub{themes: map[string]*models.Theme{"theme-1": {ID: "theme-1", Slug: "la-piazza"}}},
		&qrImageStub{}, scans, nil,
		QRServiceConfig{SiteURL: "https://quadriparlanti.example"})
}

func TestQRServiceCreateAllocatesUniqueCode(t *testing.T) {
	repo := newQRRepoStub()
	svc := newQRTestService(repo, nil)

	code, err := svc.Create(context.Background(), dto.CreateQRCodeRequest{ThemeID: "theme-1"}, adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Len(t, code.Code, 6)
	assert.True(t, code.IsActive)
	require.NotNil(t, code.ImagePath)
	assert.Equal(t, "qr/"+code.Code+".png", *code.ImagePath)

	for _, ch := range code.Code {
		assert.Contains(t, models.ShortCodeAlphabet, string(ch))
	}
}

func TestQRServiceCreateGivesUpAfterBoundedRetries(t *testing.T) {
	repo := newQRRepoStub()
	repo.existing["*"] = true // every candidate collides
	svc := newQRTestService(repo, nil)

	_, err := svc.Create(context.Background(), dto.CreateQRCodeRequest{ThemeID: "theme-1"}, adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeExhausted.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 10, repo.existsCalls)
	assert.Empty(t, repo.created)
}

func TestQRServiceCreateRequiresAdmin(t *testing.T) {
	svc := newQRTestService(newQRRepoStub(), nil)
	_, err := svc.Create(context.Background(), dto.CreateQRCodeRequest{ThemeID: "theme-1"}, docenteClaims("user-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestQRServiceResolveActiveCodeRedirectsAndRecordsScan(t *testing.T) {
	repo := newQRRepoStub()
	repo.codes["Ab3xY9"] = activeCode("Ab3xY9", "la-piazza", models.ThemeStatusPublished)
	scans := &scanRecorderStub{}
	svc := newQRTestService(repo, scans)

	target := svc.Resolve(context.Background(), "Ab3xY9", ScanEvent{IP: "192.0.2.10", UserAgent: "Mozilla/5.0"})
	assert.Equal(t, "https://quadriparlanti.example/it/themes/la-piazza", target)

	require.Len(t, scans.events, 1)
	assert.Equal(t, "qr-Ab3xY9", scans.events[0].QRCodeID)
	assert.Equal(t, "192.0.2.10", scans.events[0].IP)
	assert.False(t, scans.events[0].OccurredAt.IsZero())
}

func TestQRServiceResolveFallsBackToRootSilently(t *testing.T) {
	repo := newQRRepoStub()
	repo.codes["offxyz"] = activeCode("offxyz", "la-piazza", models.ThemeStatusPublished)
	repo.codes["offxyz"].IsActive = false
	repo.codes["drafty"] = activeCode("drafty", "bozza", models.ThemeStatusDraft)
	scans := &scanRecorderStub{}
	svc := newQRTestService(repo, scans)

	root := "https://quadriparlanti.example/"
	assert.Equal(t, root, svc.Resolve(context.Background(), "nosuch", ScanEvent{}))
	assert.Equal(t, root, svc.Resolve(context.Background(), "offxyz", ScanEvent{}))
	assert.Equal(t, root, svc.Resolve(context.Background(), "drafty", ScanEvent{}))

	// none of the fallback scans are recorded
	assert.Empty(t, scans.events)
}

func TestQRServiceSetActiveTogglesCode(t *testing.T) {
	repo := newQRRepoStub()
	repo.codes["Ab3xY9"] = activeCode("Ab3xY9", "la-piazza", models.ThemeStatusPublished)
	svc := newQRTestService(repo, nil)

	code, err := svc.SetActive(context.Background(), "qr-Ab3xY9", false, adminClaims("admin-1"))
	require.NoError(t, err)
	assert.False(t, code.IsActive)
	assert.False(t, repo.codes["Ab3xY9"].IsActive)
}
