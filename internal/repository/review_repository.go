package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quadriparlanti/qp-api/internal/models"
)

// ReviewRepository persists immutable review decisions. There is no
// update or delete: the table is append-only by construction.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create appends a review record.
func (r *ReviewRepository) Create(ctx context.Context, review *models.WorkReview) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO work_reviews (id, work_id, action, comments, reviewer_id, created_at)
	VALUES (:id, :work_id, :action, :comments, :reviewer_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("create work review: %w", err)
	}
	return nil
}

// ListByWork returns the review history newest first.
func (r *ReviewRepository) ListByWork(ctx context.Context, workID string) ([]models.WorkReview, error) {
	const query = `SELECT id, work_id, action, comments, reviewer_id, created_at
	FROM work_reviews WHERE work_id = $1 ORDER BY created_at DESC`
	var reviews []models.WorkReview
	if err := r.db.SelectContext(ctx, &reviews, query, workID); err != nil {
		return nil, fmt.Errorf("list work reviews: %w", err)
	}
	return reviews, nil
}
