package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quadriparlanti/qp-api/internal/models"
)

const workColumns = `id, title_it, title_en, description_it, description_en, class_name, teacher_name,
       school_year, status, license, tags, view_count, edit_count, created_by, created_at, updated_at,
       submitted_at, published_at`

// WorkRepository provides persistence for works and their owned rows.
type WorkRepository struct {
	db *sqlx.DB
}

// NewWorkRepository constructs the repository.
func NewWorkRepository(db *sqlx.DB) *WorkRepository {
	return &WorkRepository{db: db}
}

// WorkAggregate bundles the rows written together with the work.
type WorkAggregate struct {
	Work        *models.Work
	Attachments []models.WorkAttachment
	Links       []models.WorkLink
	ThemeIDs    []string
}

// CreateAggregate inserts the work together with its attachments, links
// and theme associations in a single transaction. A failure on any row
// rolls back everything.
func (r *WorkRepository) CreateAggregate(ctx context.Context, agg WorkAggregate) (err error) {
	work := agg.Work
	if work.ID == "" {
		work.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if work.CreatedAt.IsZero() {
		work.CreatedAt = now
	}
	work.UpdatedAt = now
	if work.Status == "" {
		work.Status = models.WorkStatusDraft
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin work transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertWork = `INSERT INTO works
	(id, title_it, title_en, description_it, description_en, class_name, teacher_name, school_year,
	 status, license, tags, view_count, edit_count, created_by, created_at, updated_at, submitted_at, published_at)
	VALUES (:id, :title_it, :title_en, :description_it, :description_en, :class_name, :teacher_name, :school_year,
	 :status, :license, :tags, :view_count, :edit_count, :created_by, :created_at, :updated_at, :submitted_at, :published_at)`
	if _, err = tx.NamedExecContext(ctx, insertWork, work); err != nil {
		return fmt.Errorf("insert work: %w", err)
	}

	if err = insertWorkChildren(ctx, tx, work.ID, agg, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit work: %w", err)
	}
	return nil
}

// UpdateAggregate rewrites the work row and replaces its attachments,
// links and theme associations atomically.
func (r *WorkRepository) UpdateAggregate(ctx context.Context, agg WorkAggregate) (err error) {
	work := agg.Work
	work.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin work transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateWork = `UPDATE works SET title_it = :title_it, title_en = :title_en,
	 description_it = :description_it, description_en = :description_en, class_name = :class_name,
	 teacher_name = :teacher_name, school_year = :school_year, license = :license, tags = :tags,
	 edit_count = edit_count + 1, updated_at = :updated_at
	WHERE id = :id`
	var res sql.Result
	if res, err = tx.NamedExecContext(ctx, updateWork, work); err != nil {
		return fmt.Errorf("update work: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = sql.ErrNoRows
		return err
	}

	for _, table := range []string{"work_attachments", "work_links", "work_themes"} {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE work_id = $1", table), work.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err = insertWorkChildren(ctx, tx, work.ID, agg, work.UpdatedAt); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit work update: %w", err)
	}
	return nil
}

func insertWorkChildren(ctx context.Context, tx *sqlx.Tx, workID string, agg WorkAggregate, now time.Time) error {
	const insertAttachment = `INSERT INTO work_attachments
	(id, work_id, storage_path, file_name, mime_type, file_type, size_bytes, position, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for i, att := range agg.Attachments {
		id := att.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, insertAttachment, id, workID, att.StoragePath, att.FileName,
			att.MimeType, att.FileType, att.SizeBytes, i, now); err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}

	const insertLink = `INSERT INTO work_links (id, work_id, url, provider, label, position, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i, link := range agg.Links {
		id := link.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, insertLink, id, workID, link.URL, link.Provider, link.Label, i, now); err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
	}

	const insertTheme = `INSERT INTO work_themes (work_id, theme_id) VALUES ($1, $2)`
	for _, themeID := range agg.ThemeIDs {
		if _, err := tx.ExecContext(ctx, insertTheme, workID, themeID); err != nil {
			return fmt.Errorf("insert theme association: %w", err)
		}
	}
	return nil
}

// GetByID fetches a work row.
func (r *WorkRepository) GetByID(ctx context.Context, id string) (*models.Work, error) {
	query := fmt.Sprintf("SELECT %s FROM works WHERE id = $1", workColumns)
	var work models.Work
	if err := r.db.GetContext(ctx, &work, query, id); err != nil {
		return nil, err
	}
	return &work, nil
}

// GetDetail loads the work with attachments, links and themes.
func (r *WorkRepository) GetDetail(ctx context.Context, id string) (*models.WorkDetail, error) {
	work, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &models.WorkDetail{Work: *work}

	const attachmentsQuery = `SELECT id, work_id, storage_path, file_name, mime_type, file_type, size_bytes, position, created_at
	FROM work_attachments WHERE work_id = $1 ORDER BY position`
	if err := r.db.SelectContext(ctx, &detail.Attachments, attachmentsQuery, id); err != nil {
		return nil, fmt.Errorf("load attachments: %w", err)
	}

	const linksQuery = `SELECT id, work_id, url, provider, label, position, created_at
	FROM work_links WHERE work_id = $1 ORDER BY position`
	if err := r.db.SelectContext(ctx, &detail.Links, linksQuery, id); err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}

	const themesQuery = `SELECT t.id, t.slug, t.title_it, t.title_en, t.description_it, t.description_en,
	       t.display_order, t.status, t.cover_image, t.created_by, t.created_at, t.updated_at
	FROM themes t JOIN work_themes wt ON wt.theme_id = t.id WHERE wt.work_id = $1 ORDER BY t.display_order`
	if err := r.db.SelectContext(ctx, &detail.Themes, themesQuery, id); err != nil {
		return nil, fmt.Errorf("load themes: %w", err)
	}

	return detail, nil
}

// List returns work summaries matching the filter plus a total count.
func (r *WorkRepository) List(ctx context.Context, filter models.WorkFilter) ([]models.WorkSummary, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("w.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("w.created_by = $%d", len(args)))
	}
	if filter.ThemeID != "" {
		args = append(args, filter.ThemeID)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM work_themes wt WHERE wt.work_id = w.id AND wt.theme_id = $%d)", len(args)))
	}
	if filter.SchoolYear != "" {
		args = append(args, filter.SchoolYear)
		conditions = append(conditions, fmt.Sprintf("w.school_year = $%d", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(w.tags)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(w.title_it ILIKE $%d OR w.description_it ILIKE $%d)", len(args), len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT w.id, w.title_it, w.title_en, w.description_it, w.description_en,
       w.class_name, w.teacher_name, w.school_year, w.status, w.license, w.tags, w.view_count, w.edit_count,
       w.created_by, w.created_at, w.updated_at, w.submitted_at, w.published_at,
       u.full_name AS submitter_name, u.email AS submitter_email,
       (SELECT COUNT(*) FROM work_attachments a WHERE a.work_id = w.id) AS attachment_count,
       (SELECT COUNT(*) FROM work_links l WHERE l.work_id = w.id) AS link_count,
       (SELECT COUNT(*) FROM work_themes wt WHERE wt.work_id = w.id) AS theme_count
FROM works w JOIN users u ON u.id = w.created_by%s
ORDER BY w.created_at DESC
LIMIT %d OFFSET %d`, whereClause, size, offset)

	var works []models.WorkSummary
	if err := r.db.SelectContext(ctx, &works, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list works: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM works w%s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count works: %w", err)
	}
	return works, total, nil
}

// ListReviewQueue returns pending works oldest submission first.
func (r *WorkRepository) ListReviewQueue(ctx context.Context) ([]models.WorkSummary, error) {
	const query = `SELECT w.id, w.title_it, w.title_en, w.description_it, w.description_en,
       w.class_name, w.teacher_name, w.school_year, w.status, w.license, w.tags, w.view_count, w.edit_count,
       w.created_by, w.created_at, w.updated_at, w.submitted_at, w.published_at,
       u.full_name AS submitter_name, u.email AS submitter_email,
       (SELECT COUNT(*) FROM work_attachments a WHERE a.work_id = w.id) AS attachment_count,
       (SELECT COUNT(*) FROM work_links l WHERE l.work_id = w.id) AS link_count,
       (SELECT COUNT(*) FROM work_themes wt WHERE wt.work_id = w.id) AS theme_count
FROM works w JOIN users u ON u.id = w.created_by
WHERE w.status = $1
ORDER BY w.submitted_at ASC`
	var works []models.WorkSummary
	if err := r.db.SelectContext(ctx, &works, query, models.WorkStatusPendingReview); err != nil {
		return nil, fmt.Errorf("list review queue: %w", err)
	}
	return works, nil
}

// UpdateStatusParams carries a guarded status change.
type UpdateStatusParams struct {
	ID          string
	From        models.WorkStatus
	To          models.WorkStatus
	SubmittedAt *time.Time
	PublishedAt *time.Time
}

// UpdateStatus flips the status only when the row is still in the
// expected source state; sql.ErrNoRows signals a lost race.
func (r *WorkRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) error {
	const query = `UPDATE works SET status = $1,
	 submitted_at = COALESCE($2, submitted_at),
	 published_at = COALESCE($3, published_at),
	 updated_at = NOW()
	WHERE id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, params.To, params.SubmittedAt, params.PublishedAt, params.ID, params.From)
	if err != nil {
		return fmt.Errorf("update work status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountThemes returns how many themes the work is bound to.
func (r *WorkRepository) CountThemes(ctx context.Context, workID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM work_themes WHERE work_id = $1", workID); err != nil {
		return 0, fmt.Errorf("count work themes: %w", err)
	}
	return count, nil
}

// IncrementViewCount bumps the denormalised counter on the work row.
func (r *WorkRepository) IncrementViewCount(ctx context.Context, workID string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE works SET view_count = view_count + 1 WHERE id = $1", workID); err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	return nil
}

// AddAttachment appends an uploaded file row at the next position.
func (r *WorkRepository) AddAttachment(ctx context.Context, att *models.WorkAttachment) error {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO work_attachments
	(id, work_id, storage_path, file_name, mime_type, file_type, size_bytes, position, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7,
	 (SELECT COALESCE(MAX(position) + 1, 0) FROM work_attachments WHERE work_id = $2), $8)`
	if _, err := r.db.ExecContext(ctx, query, att.ID, att.WorkID, att.StoragePath, att.FileName,
		att.MimeType, att.FileType, att.SizeBytes, att.CreatedAt); err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

// GetAttachment fetches a single attachment row.
func (r *WorkRepository) GetAttachment(ctx context.Context, id string) (*models.WorkAttachment, error) {
	const query = `SELECT id, work_id, storage_path, file_name, mime_type, file_type, size_bytes, position, created_at
	FROM work_attachments WHERE id = $1`
	var att models.WorkAttachment
	if err := r.db.GetContext(ctx, &att, query, id); err != nil {
		return nil, err
	}
	return &att, nil
}

// DeleteAttachment removes an attachment row.
func (r *WorkRepository) DeleteAttachment(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM work_attachments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
