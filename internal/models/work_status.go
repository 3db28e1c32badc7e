package models

import (
	"fmt"
	"time"
)

// WorkStatus captures the lifecycle state of a work.
type WorkStatus string

const (
	WorkStatusDraft         WorkStatus = "DRAFT"
	WorkStatusPendingReview WorkStatus = "PENDING_REVIEW"
	WorkStatusNeedsRevision WorkStatus = "NEEDS_REVISION"
	WorkStatusPublished     WorkStatus = "PUBLISHED"
	WorkStatusArchived      WorkStatus = "ARCHIVED"
)

// workTransitions is the single source of truth for legal status moves.
// Every handler goes through CanTransition; nothing else mutates status.
var workTransitions = map[WorkStatus][]WorkStatus{
	WorkStatusDraft:         {WorkStatusPendingReview, WorkStatusArchived},
	WorkStatusPendingReview: {WorkStatusPublished, WorkStatusNeedsRevision, WorkStatusArchived},
	WorkStatusNeedsRevision: {WorkStatusPendingReview, WorkStatusArchived},
	WorkStatusPublished:     {WorkStatusArchived},
	WorkStatusArchived:      {},
}

// InvalidTransitionError reports an attempted illegal status move.
type InvalidTransitionError struct {
	From WorkStatus
	To   WorkStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("illegal work transition %s -> %s", e.From, e.To)
}

// Valid reports whether s is a known status value.
func (s WorkStatus) Valid() bool {
	_, ok := workTransitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible.
func (s WorkStatus) Terminal() bool {
	return len(workTransitions[s]) == 0
}

// Editable reports whether the owner may still modify the work.
func (s WorkStatus) Editable() bool {
	return s == WorkStatusDraft || s == WorkStatusNeedsRevision
}

// CanTransition returns nil when moving from -> to is legal, otherwise
// an *InvalidTransitionError describing the rejected edge.
func CanTransition(from, to WorkStatus) error {
	for _, next := range workTransitions[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// Transition applies a legal status change to the work, maintaining the
// timestamps bound to specific states.
func (w *Work) Transition(to WorkStatus, ts time.Time) error {
	if err := CanTransition(w.Status, to); err != nil {
		return err
	}
	switch to {
	case WorkStatusPendingReview:
		w.SubmittedAt = &ts
	case WorkStatusPublished:
		w.PublishedAt = &ts
	}
	w.Status = to
	w.UpdatedAt = ts
	return nil
}
