package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quadriparlanti/qp-api/internal/models"
)

// QRRepository persists short codes and their theme bindings.
type QRRepository struct {
	db *sqlx.DB
}

// NewQRRepository constructs the repository.
func NewQRRepository(db *sqlx.DB) *QRRepository {
	return &QRRepository{db: db}
}

// Create inserts a new QR code row.
func (r *QRRepository) Create(ctx context.Context, code *models.QRCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if code.CreatedAt.IsZero() {
		code.CreatedAt = now
	}
	code.UpdatedAt = now
	const query = `INSERT INTO qr_codes (id, code, theme_id, image_path, is_active, scan_count, created_by, created_at, updated_at)
	VALUES (:id, :code, :theme_id, :image_path, :is_active, :scan_count, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, code); err != nil {
		return fmt.Errorf("create qr code: %w", err)
	}
	return nil
}

// CodeExists reports whether the short code is already taken.
func (r *QRRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM qr_codes WHERE code = $1)", code); err != nil {
		return false, fmt.Errorf("check qr code: %w", err)
	}
	return exists, nil
}

// GetByCode resolves a short code together with its theme for redirects.
func (r *QRRepository) GetByCode(ctx context.Context, code string) (*models.QRCodeWithTheme, error) {
	const query = `SELECT q.id, q.code, q.theme_id, q.image_path, q.is_active, q.scan_count, q.created_by,
       q.created_at, q.updated_at,
       t.slug AS theme_slug, t.title_it AS theme_title_it, t.status AS theme_status
FROM qr_codes q JOIN themes t ON t.id = q.theme_id
WHERE q.code = $1`
	var row models.QRCodeWithTheme
	if err := r.db.GetContext(ctx, &row, query, code); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByID returns a QR code by identifier.
func (r *QRRepository) GetByID(ctx context.Context, id string) (*models.QRCode, error) {
	const query = `SELECT id, code, theme_id, image_path, is_active, scan_count, created_by, created_at, updated_at
	FROM qr_codes WHERE id = $1`
	var code models.QRCode
	if err := r.db.GetContext(ctx, &code, query, id); err != nil {
		return nil, err
	}
	return &code, nil
}

// List returns all codes with theme context, newest first.
func (r *QRRepository) List(ctx context.Context) ([]models.QRCodeWithTheme, error) {
	const query = `SELECT q.id, q.code, q.theme_id, q.image_path, q.is_active, q.scan_count, q.created_by,
       q.created_at, q.updated_at,
       t.slug AS theme_slug, t.title_it AS theme_title_it, t.status AS theme_status
FROM qr_codes q JOIN themes t ON t.id = q.theme_id
ORDER BY q.created_at DESC`
	var rows []models.QRCodeWithTheme
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list qr codes: %w", err)
	}
	return rows, nil
}

// SetActive toggles the active flag.
func (r *QRRepository) SetActive(ctx context.Context, id string, active bool) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE qr_codes SET is_active = $1, updated_at = NOW() WHERE id = $2", active, id); err != nil {
		return fmt.Errorf("update qr code: %w", err)
	}
	return nil
}

// IncrementScanCount bumps the denormalised scan counter.
func (r *QRRepository) IncrementScanCount(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE qr_codes SET scan_count = scan_count + 1 WHERE id = $1", id); err != nil {
		return fmt.Errorf("increment scan count: %w", err)
	}
	return nil
}
