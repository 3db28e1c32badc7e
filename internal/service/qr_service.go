package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/models"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
)

type qrStore interface {
	Create(ctx context.Context, code *models.QRCode) error
	CodeExists(ctx context.Context, code string) (bool, error)
	GetByCode(ctx context.Context, code string) (*models.QRCodeWithTheme, error)
	GetByID(ctx context.Context, id string) (*models.QRCode, error)
	List(ctx context.Context) ([]models.QRCodeWithTheme, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type qrThemeStore interface {
	GetByID(ctx context.Context, id string) (*models.Theme, error)
}

type qrImageStore interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
}

// ScanEvent carries the raw request metadata of a QR scan before it is
// anonymised by the analytics pipeline.
type ScanEvent struct {
	QRCodeID   string
	IP         string
	UserAgent  string
	Referrer   string
	OccurredAt time.Time
}

type scanRecorder interface {
	RecordScan(event ScanEvent) bool
}

// QRServiceConfig tunes code generation and redirect targets.
type QRServiceConfig struct {
	SiteURL        string
	DefaultLocale  string
	CodeLength     int
	MaxGenAttempts int
	ImageSize      int
}

// QRService manages short codes: allocation, PNG rendering, activation
// and public redirect resolution.
type QRService struct {
	repo    qrStore
	themes  qrThemeStore
	images  qrImageStore
	scans   scanRecorder
	logger  *zap.Logger
	config  QRServiceConfig
}

// NewQRService constructs the service with defaults applied.
func NewQRService(repo qrStore, themes qrThemeStore, images qrImageStore, scans scanRecorder, logger *zap.Logger, config QRServiceConfig) *QRService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CodeLength <= 0 {
		config.CodeLength = 6
	}
	if config.MaxGenAttempts <= 0 {
		config.MaxGenAttempts = 10
	}
	if config.ImageSize <= 0 {
		config.ImageSize = 512
	}
	if config.DefaultLocale == "" {
		config.DefaultLocale = "it"
	}
	config.SiteURL = strings.TrimRight(config.SiteURL, "/")
	return &QRService{repo: repo, themes: themes, images: images, scans: scans, logger: logger, config: config}
}

// Create allocates a unique short code for a theme and renders its PNG.
func (s *QRService) Create(ctx context.Context, req dto.CreateQRCodeRequest, actor *models.JWTClaims) (*models.QRCode, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}

	theme, err := s.themes.GetByID(ctx, req.ThemeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "theme not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load theme")
	}

	shortCode, err := s.allocateCode(ctx)
	if err != nil {
		return nil, err
	}

	code := &models.QRCode{
		Code:      shortCode,
		ThemeID:   theme.ID,
		IsActive:  true,
		CreatedBy: actor.UserID,
	}

	if s.images != nil {
		png, err := qrcode.Encode(s.RedirectURL(shortCode), qrcode.Medium, s.config.ImageSize)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr image")
		}
		imagePath, err := s.images.Save(fmt.Sprintf("%s.png", shortCode), png)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store qr image")
		}
		code.ImagePath = &imagePath
	}

	if err := s.repo.Create(ctx, code); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create qr code")
	}
	return code, nil
}

// List returns all codes with theme context for the admin screen.
func (s *QRService) List(ctx context.Context, actor *models.JWTClaims) ([]models.QRCodeWithTheme, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	codes, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list qr codes")
	}
	return codes, nil
}

// SetActive toggles a code. Deactivated codes silently redirect to the
// site root.
func (s *QRService) SetActive(ctx context.Context, id string, active bool, actor *models.JWTClaims) (*models.QRCode, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	code, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "qr code not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qr code")
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update qr code")
	}
	code.IsActive = active
	return code, nil
}

// ImagePath resolves the stored PNG path for download.
func (s *QRService) ImagePath(ctx context.Context, id string, actor *models.JWTClaims) (string, error) {
	if !actor.IsAdmin() {
		return "", appErrors.ErrForbidden
	}
	code, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "qr code not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qr code")
	}
	if code.ImagePath == nil || s.images == nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "qr code has no rendered image")
	}
	return s.images.Path(*code.ImagePath), nil
}

// Resolve maps a scanned short code to its redirect target. Unknown,
// inactive or unpublished codes fall back to the site root without
// surfacing an error; valid scans are recorded fire-and-forget.
func (s *QRService) Resolve(ctx context.Context, shortCode string, event ScanEvent) string {
	root := s.config.SiteURL + "/"

	code, err := s.repo.GetByCode(ctx, shortCode)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("qr lookup failed", zap.String("code", shortCode), zap.Error(err))
		}
		return root
	}
	if !code.IsActive || code.ThemeStatus != models.ThemeStatusPublished {
		return root
	}

	if s.scans != nil {
		event.QRCodeID = code.ID
		if event.OccurredAt.IsZero() {
			event.OccurredAt = time.Now().UTC()
		}
		// Dropped events are accepted: the redirect never waits.
		_ = s.scans.RecordScan(event)
	}

	return fmt.Sprintf("%s/%s/themes/%s", s.config.SiteURL, s.config.DefaultLocale, code.ThemeSlug)
}

// RedirectURL is the public URL encoded into the printed QR image.
func (s *QRService) RedirectURL(shortCode string) string {
	return fmt.Sprintf("%s/q/%s", s.config.SiteURL, shortCode)
}

// allocateCode draws random codes until one is free, bounded by the
// configured attempt budget.
func (s *QRService) allocateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.config.MaxGenAttempts; attempt++ {
		candidate, err := randomShortCode(s.config.CodeLength)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate short code")
		}
		exists, err := s.repo.CodeExists(ctx, candidate)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check short code")
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrCodeExhausted, fmt.Sprintf("no unique short code after %d attempts", s.config.MaxGenAttempts))
}

func randomShortCode(length int) (string, error) {
	alphabetSize := big.NewInt(int64(len(models.ShortCodeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		buf[i] = models.ShortCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
