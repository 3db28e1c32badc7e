package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quadriparlanti/qp-api/internal/models"
)

const themeColumns = `id, slug, title_it, title_en, description_it, description_en, display_order,
       status, cover_image, created_by, created_at, updated_at`

// ThemeRepository provides persistence for themes.
type ThemeRepository struct {
	db *sqlx.DB
}

// NewThemeRepository constructs the repository.
func NewThemeRepository(db *sqlx.DB) *ThemeRepository {
	return &ThemeRepository{db: db}
}

// List returns themes matching the filter ordered by display order.
func (r *ThemeRepository) List(ctx context.Context, filter models.ThemeFilter) ([]models.Theme, error) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("title_it ILIKE $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM themes", themeColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY display_order ASC, created_at ASC"

	var themes []models.Theme
	if err := r.db.SelectContext(ctx, &themes, query, args...); err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	return themes, nil
}

// ListPublishedWithCounts returns published themes with their published
// works totals, for the public catalog.
func (r *ThemeRepository) ListPublishedWithCounts(ctx context.Context) ([]models.ThemeWithCount, error) {
	const query = `SELECT t.id, t.slug, t.title_it, t.title_en, t.description_it, t.description_en,
       t.display_order, t.status, t.cover_image, t.created_by, t.created_at, t.updated_at,
       (SELECT COUNT(*) FROM work_themes wt JOIN works w ON w.id = wt.work_id
        WHERE wt.theme_id = t.id AND w.status = 'PUBLISHED') AS work_count
FROM themes t WHERE t.status = 'PUBLISHED'
ORDER BY t.display_order ASC`
	var themes []models.ThemeWithCount
	if err := r.db.SelectContext(ctx, &themes, query); err != nil {
		return nil, fmt.Errorf("list published themes: %w", err)
	}
	return themes, nil
}

// GetByID returns a theme by identifier.
func (r *ThemeRepository) GetByID(ctx context.Context, id string) (*models.Theme, error) {
	query := fmt.Sprintf("SELECT %s FROM themes WHERE id = $1", themeColumns)
	var theme models.Theme
	if err := r.db.GetContext(ctx, &theme, query, id); err != nil {
		return nil, err
	}
	return &theme, nil
}

// GetBySlug returns a theme by its public slug.
func (r *ThemeRepository) GetBySlug(ctx context.Context, slug string) (*models.Theme, error) {
	query := fmt.Sprintf("SELECT %s FROM themes WHERE slug = $1", themeColumns)
	var theme models.Theme
	if err := r.db.GetContext(ctx, &theme, query, slug); err != nil {
		return nil, err
	}
	return &theme, nil
}

// Create inserts a new theme.
func (r *ThemeRepository) Create(ctx context.Context, theme *models.Theme) error {
	if theme.ID == "" {
		theme.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if theme.CreatedAt.IsZero() {
		theme.CreatedAt = now
	}
	theme.UpdatedAt = now
	if theme.Status == "" {
		theme.Status = models.ThemeStatusDraft
	}
	const query = `INSERT INTO themes (id, slug, title_it, title_en, description_it, description_en,
	 display_order, status, cover_image, created_by, created_at, updated_at)
	VALUES (:id, :slug, :title_it, :title_en, :description_it, :description_en,
	 :display_order, :status, :cover_image, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, theme); err != nil {
		return fmt.Errorf("create theme: %w", err)
	}
	return nil
}

// Update modifies an existing theme.
func (r *ThemeRepository) Update(ctx context.Context, theme *models.Theme) error {
	theme.UpdatedAt = time.Now().UTC()
	const query = `UPDATE themes SET slug = :slug, title_it = :title_it, title_en = :title_en,
	 description_it = :description_it, description_en = :description_en, display_order = :display_order,
	 status = :status, cover_image = :cover_image, updated_at = :updated_at
	WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, theme); err != nil {
		return fmt.Errorf("update theme: %w", err)
	}
	return nil
}

// Reorder assigns display order following the slice position, in one
// transaction so a partial reorder never becomes visible.
func (r *ThemeRepository) Reorder(ctx context.Context, themeIDs []string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE themes SET display_order = $1, updated_at = NOW() WHERE id = $2`
	for i, id := range themeIDs {
		if _, err = tx.ExecContext(ctx, query, i, id); err != nil {
			return fmt.Errorf("reorder theme %s: %w", id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}
