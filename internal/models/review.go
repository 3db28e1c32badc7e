package models

import "time"

// ReviewAction is an admin decision on a submitted work.
type ReviewAction string

const (
	ReviewActionApproved ReviewAction = "APPROVED"
	ReviewActionRejected ReviewAction = "REJECTED"
)

// WorkReview is an immutable audit record of an admin decision.
// Rows are append-only; the history per work is never rewritten.
type WorkReview struct {
	ID         string       `db:"id" json:"id"`
	WorkID     string       `db:"work_id" json:"work_id"`
	Action     ReviewAction `db:"action" json:"action"`
	Comments   *string      `db:"comments" json:"comments,omitempty"`
	ReviewerID string       `db:"reviewer_id" json:"reviewer_id"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}
