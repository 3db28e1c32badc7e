package service

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadriparlanti/qp-api/internal/models"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
	"github.com/quadriparlanti/qp-api/pkg/storage"
)

type attachmentRepoStub struct {
	works       map[string]*models.Work
	attachments map[string]*models.WorkAttachment
}

func newAttachmentRepoStub() *attachmentRepoStub {
	return &attachmentRepoStub{
		works:       make(map[string]*models.Work),
		attachments: make(map[string]*models.WorkAttachment),
	}
}

func (m *attachmentRepoStub) GetByID(ctx context.Context, id string) (*models.Work, error) {
	if work, ok := m.works[id]; ok {
		cp := *work
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *attachmentRepoStub) AddAttachment(ctx context.Context, att *models.WorkAttachment) error {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	cp := *att
	m.attachments[att.ID] = &cp
	return nil
}

func (m *attachmentRepoStub) GetAttachment(ctx context.Context, id string) (*models.WorkAttachment, error) {
	if att, ok := m.attachments[id]; ok {
		cp := *att
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *attachmentRepoStub) DeleteAttachment(ctx context.Context, id string) error {
	if _, ok := m.attachments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.attachments, id)
	return nil
}

type fileStorageStub struct {
	dir   string
	saved []string
}

func newFileStorageStub(t *testing.T) *fileStorageStub {
	t.Helper()
	return &fileStorageStub{dir: t.TempDir()}
}

func (m *fileStorageStub) SaveStream(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(m.dir, filename), data, 0o644); err != nil {
		return "", err
	}
	m.saved = append(m.saved, filename)
	return filename, nil
}

func (m *fileStorageStub) Open(filename string) (*os.File, error) {
	return os.Open(filepath.Join(m.dir, filename))
}

func (m *fileStorageStub) Delete(filename string) error {
	return os.Remove(filepath.Join(m.dir, filename))
}

func newAttachmentTestService(t *testing.T) (*AttachmentService, *attachmentRepoStub, *fileStorageStub) {
	t.Helper()
	repo := newAttachmentRepoStub()
	files := newFileStorageStub(t)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	svc := NewAttachmentService(repo, files, signer, nil, AttachmentConfig{
		MaxSizeBytes: 1024,
		AllowedMIMEs: []string{"image/jpeg", "image/png", "application/pdf"},
	})
	return svc, repo, files
}

func draftWork(id, owner string) *models.Work {
	return &models.Work{ID: id, Status: models.WorkStatusDraft, CreatedBy: owner}
}

func TestUploadStoresFileAndRow(t *testing.T) {
	svc, repo, files := newAttachmentTestService(t)
	repo.works["work-1"] = draftWork("work-1", "user-1")

	att, err := svc.Upload(context.Background(), "work-1", "piazza.jpg", "image/jpeg",
		11, strings.NewReader("jpeg bytes!"), docenteClaims("user-1"))
	require.NoError(t, err)

	assert.Equal(t, "work-1", att.WorkID)
	assert.Equal(t, "piazza.jpg", att.FileName)
	assert.Equal(t, models.AttachmentImage, att.FileType)
	require.Len(t, files.saved, 1)
	assert.True(t, strings.HasPrefix(files.saved[0], "work-1-"))
	assert.True(t, strings.HasSuffix(files.saved[0], ".jpg"))
	require.Len(t, repo.attachments, 1)
}

func TestUploadClassifiesPDF(t *testing.T) {
	svc, repo, _ := newAttachmentTestService(t)
	repo.works["work-1"] = draftWork("work-1", "user-1")

	att, err := svc.Upload(context.Background(), "work-1", "relazione.pdf", "application/pdf",
		8, strings.NewReader("%PDF-1.4"), docenteClaims("user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.AttachmentPDF, att.FileType)
}

func TestUploadRejectsDisallowedMime(t *testing.T) {
	svc, repo, files := newAttachmentTestService(t)
	repo.works["work-1"] = draftWork("work-1", "user-1")

	_, err := svc.Upload(context.Background(), "work-1", "script.sh", "application/x-sh",
		5, strings.NewReader("#!/bin"), docenteClaims("user-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, files.saved)
	assert.Empty(t, repo.attachments)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	svc, repo, files := newAttachmentTestService(t)
	repo.works["work-1"] = draftWork("work-1", "user-1")

	_, err := svc.Upload(context.Background(), "work-1", "big.png", "image/png",
		4096, strings.NewReader("x"), docenteClaims("user-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, files.saved)
}

func TestUploadRejectsUnderdeclaredStream(t *testing.T) {
	svc, repo, files := newAttachmentTestService(t)
	repo.works["work-1"] = draftWork("work-1", "user-1")

	_, err := svc.Upload(context.Background(), "work-1", "lungo.jpg", "image/jpeg",
		4, strings.NewReader("more than four bytes"), docenteClaims("user-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.attachments)
	require.Len(t, files.saved, 1)
	_, err = files.Open(files.saved[0])
	assert.Error(t, err)
}

func TestUploadRejectsTruncatedStream(t *testing.T) {
	svc, repo, _ := newAttachmentTestService(t)
	repo.works["work-1"] = draftWork("work-1", "user-1")

	_, err := svc.Upload(context.Background(), "work-1", "corto.jpg", "image/jpeg",
		100, strings.NewReader("short"), docenteClaims("user-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.attachments)
}

func TestUploadBlockedOncePending(t *testing.T) {
	svc, repo, _ := newAttachmentTestService(t)
	work := draftWork("work-1", "user-1")
	work.Status = models.WorkStatusPendingReview
	repo.works["work-1"] = work

	_, err := svc.Upload(context.Background(), "work-1", "late.jpg", "image/jpeg",
		3, strings.NewReader("jpg"), docenteClaims("user-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUploadForeignWorkForbidden(t *testing.T) {
	svc, repo, _ := newAttachmentTestService(t)
	repo.works["work-1"] = draftWork("work-1", "user-1")

	_, err := svc.Upload(context.Background(), "work-1", "foto.jpg", "image/jpeg",
		3, strings.NewReader("jpg"), docenteClaims("user-2"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDeleteRemovesRowAndFile(t *testing.T) {
	svc, repo, files := newAttachmentTestService(t)
	repo.works["work-1"] = draftWork("work-1", "user-1")

	att, err := svc.Upload(context.Background(), "work-1", "foto.jpg", "image/jpeg",
		3, strings.NewReader("jpg"), docenteClaims("user-1"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), att.ID, docenteClaims("user-1")))
	assert.Empty(t, repo.attachments)
	_, err = files.Open(att.StoragePath)
	assert.Error(t, err)
}

func TestDownloadURLAndResolveRoundTrip(t *testing.T) {
	svc, repo, _ := newAttachmentTestService(t)
	repo.works["work-1"] = draftWork("work-1", "user-1")

	att, err := svc.Upload(context.Background(), "work-1", "foto.jpg", "image/jpeg",
		11, strings.NewReader("jpeg bytes!"), docenteClaims("user-1"))
	require.NoError(t, err)

	token, expiresAt, err := svc.DownloadURL(context.Background(), att.ID, docenteClaims("user-1"))
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	result, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer result.File.Close() //nolint:errcheck

	assert.Equal(t, "foto.jpg", result.Filename)
	assert.Equal(t, "image/jpeg", result.MimeType)
	data, err := io.ReadAll(result.File)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes!", string(data))
}

func TestDownloadURLForeignUnpublishedWorkForbidden(t *testing.T) {
	svc, repo, _ := newAttachmentTestService(t)
	repo.works["work-1"] = draftWork("work-1", "user-1")

	att, err := svc.Upload(context.Background(), "work-1", "foto.jpg", "image/jpeg",
		3, strings.NewReader("jpg"), docenteClaims("user-1"))
	require.NoError(t, err)

	_, _, err = svc.DownloadURL(context.Background(), att.ID, docenteClaims("user-2"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestResolveDownloadRejectsBadToken(t *testing.T) {
	svc, _, _ := newAttachmentTestService(t)

	_, err := svc.ResolveDownload(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
