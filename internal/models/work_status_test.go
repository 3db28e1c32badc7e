package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionAllowsOnlyTableEdges(t *testing.T) {
	statuses := []WorkStatus{
		WorkStatusDraft, WorkStatusPendingReview, WorkStatusNeedsRevision,
		WorkStatusPublished, WorkStatusArchived,
	}
	allowed := map[WorkStatus]map[WorkStatus]bool{
		WorkStatusDraft:         {WorkStatusPendingReview: true, WorkStatusArchived: true},
		WorkStatusPendingReview: {WorkStatusPublished: true, WorkStatusNeedsRevision: true, WorkStatusArchived: true},
		WorkStatusNeedsRevision: {WorkStatusPendingReview: true, WorkStatusArchived: true},
		WorkStatusPublished:     {WorkStatusArchived: true},
		WorkStatusArchived:      {},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			err := CanTransition(from, to)
			if allowed[from][to] {
				assert.NoErrorf(t, err, "%s -> %s should be legal", from, to)
			} else {
				assert.Errorf(t, err, "%s -> %s should be illegal", from, to)
			}
		}
	}
}

func TestCanTransitionReportsEdge(t *testing.T) {
	err := CanTransition(WorkStatusPublished, WorkStatusDraft)
	require.Error(t, err)

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, WorkStatusPublished, invalid.From)
	assert.Equal(t, WorkStatusDraft, invalid.To)
}

func TestTransitionSetsLifecycleTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 12, 9, 30, 0, 0, time.UTC)
	work := &Work{Status: WorkStatusDraft}

	require.NoError(t, work.Transition(WorkStatusPendingReview, now))
	require.NotNil(t, work.SubmittedAt)
	assert.Equal(t, now, *work.SubmittedAt)
	assert.Nil(t, work.PublishedAt)

	later := now.Add(48 * time.Hour)
	require.NoError(t, work.Transition(WorkStatusPublished, later))
	require.NotNil(t, work.PublishedAt)
	assert.Equal(t, later, *work.PublishedAt)
	assert.Equal(t, later, work.UpdatedAt)
}

func TestTransitionRejectsIllegalMoveWithoutMutation(t *testing.T) {
	work := &Work{Status: WorkStatusPublished}
	err := work.Transition(WorkStatusDraft, time.Now().UTC())
	require.Error(t, err)
	assert.Equal(t, WorkStatusPublished, work.Status)
	assert.Nil(t, work.SubmittedAt)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, WorkStatusDraft.Editable())
	assert.True(t, WorkStatusNeedsRevision.Editable())
	assert.False(t, WorkStatusPendingReview.Editable())
	assert.False(t, WorkStatusPublished.Editable())

	assert.True(t, WorkStatusArchived.Terminal())
	assert.False(t, WorkStatusPublished.Terminal())

	assert.True(t, WorkStatusDraft.Valid())
	assert.False(t, WorkStatus("UNKNOWN").Valid())
}
