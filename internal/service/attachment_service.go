package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quadriparlanti/qp-api/internal/models"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
)

type attachmentStore interface {
	GetByID(ctx context.Context, id string) (*models.Work, error)
	AddAttachment(ctx context.Context, att *models.WorkAttachment) error
	GetAttachment(ctx context.Context, id string) (*models.WorkAttachment, error)
	DeleteAttachment(ctx context.Context, id string) error
}

type attachmentFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type downloadSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (resourceID, relPath string, expiresAt time.Time, err error)
}

// AttachmentDownloadPath is the token-only download endpoint; signed
// URLs embed it so links work without a session.
const AttachmentDownloadPath = "/api/v1/attachments/download"

// AttachmentConfig bounds uploads.
type AttachmentConfig struct {
	MaxSizeBytes int64
	AllowedMIMEs []string
}

// AttachmentService stores work attachment binaries and their metadata
// rows. Files land in the attachments dir and are served back through
// signed, expiring download tokens.
type AttachmentService struct {
	works   attachmentStore
	files   attachmentFileStorage
	signer  downloadSigner
	logger  *zap.Logger
	maxSize int64
	allowed map[string]struct{}
}

// AttachmentDownload is an opened attachment ready for streaming.
type AttachmentDownload struct {
	File     *os.File
	Filename string
	MimeType string
	Size     int64
}

// NewAttachmentService constructs the service.
func NewAttachmentService(works attachmentStore, files attachmentFileStorage, signer downloadSigner, logger *zap.Logger, cfg AttachmentConfig) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		allowed[m] = struct{}{}
	}
	maxSize := cfg.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = 20 << 20
	}
	return &AttachmentService{
		works:   works,
		files:   files,
		signer:  signer,
		logger:  logger,
		maxSize: maxSize,
		allowed: allowed,
	}
}

// Upload validates and stores a binary for a work the actor may edit.
func (s *AttachmentService) Upload(ctx context.Context, workID, filename, mimeType string, size int64, r io.Reader, actor *models.JWTClaims) (*models.WorkAttachment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if size > s.maxSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.maxSize))
	}
	if _, ok := s.allowed[mimeType]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("mime type %q is not allowed", mimeType))
	}

	work, err := s.works.GetByID(ctx, workID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work")
	}
	if !actor.IsAdmin() {
		if work.CreatedBy != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
		if !work.Status.Editable() {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("work is %s and can no longer be edited", work.Status))
		}
	}

	storedName := fmt.Sprintf("%s-%s%s", work.ID, uuid.NewString(), filepath.Ext(filename))
	counted := &countingReader{r: r}
	relPath, err := s.files.SaveStream(storedName, io.LimitReader(counted, size+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}
	if counted.n != size {
		if delErr := s.files.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove mismatched attachment file",
				zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "file does not match the declared size")
	}

	att := &models.WorkAttachment{
		WorkID:      work.ID,
		StoragePath: relPath,
		FileName:    filename,
		MimeType:    mimeType,
		FileType:    attachmentTypeFromMime(mimeType),
		SizeBytes:   size,
	}
	if err := s.works.AddAttachment(ctx, att); err != nil {
		if delErr := s.files.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove orphaned attachment file",
				zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attachment")
	}
	return att, nil
}

// Delete removes an attachment row and its stored file.
func (s *AttachmentService) Delete(ctx context.Context, attachmentID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	att, work, err := s.loadAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		if work.CreatedBy != actor.UserID {
			return appErrors.ErrForbidden
		}
		if !work.Status.Editable() {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("work is %s and can no longer be edited", work.Status))
		}
	}

	if err := s.works.DeleteAttachment(ctx, att.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attachment")
	}
	if err := s.files.Delete(att.StoragePath); err != nil {
		s.logger.Warn("failed to remove attachment file",
			zap.String("path", att.StoragePath), zap.Error(err))
	}
	return nil
}

// DownloadURL signs an expiring token for an attachment the actor may see.
func (s *AttachmentService) DownloadURL(ctx context.Context, attachmentID string, actor *models.JWTClaims) (string, time.Time, error) {
	if actor == nil {
		return "", time.Time{}, appErrors.ErrUnauthorized
	}
	att, work, err := s.loadAttachment(ctx, attachmentID)
	if err != nil {
		return "", time.Time{}, err
	}
	if !actor.IsAdmin() && work.CreatedBy != actor.UserID && work.Status != models.WorkStatusPublished {
		return "", time.Time{}, appErrors.ErrForbidden
	}
	token, expiresAt, err := s.signer.Generate(att.ID, att.StoragePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	return token, expiresAt, nil
}

// ResolveDownload verifies a signed token and opens the file. Tokens are
// the only credential: the endpoint itself is anonymous, so published
// works remain downloadable from the public site.
func (s *AttachmentService) ResolveDownload(ctx context.Context, token string) (*AttachmentDownload, error) {
	attachmentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	att, err := s.works.GetAttachment(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	if att.StoragePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.files.Open(att.StoragePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attachment file")
	}
	return &AttachmentDownload{
		File:     file,
		Filename: att.FileName,
		MimeType: att.MimeType,
		Size:     att.SizeBytes,
	}, nil
}

// countingReader tallies bytes as they stream to storage so the stored
// file can be checked against the declared size.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (s *AttachmentService) loadAttachment(ctx context.Context, attachmentID string) (*models.WorkAttachment, *models.Work, error) {
	att, err := s.works.GetAttachment(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	work, err := s.works.GetByID(ctx, att.WorkID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "work not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work")
	}
	return att, work, nil
}
