package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/models"
	"github.com/quadriparlanti/qp-api/internal/repository"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
)

type reviewWorkStub struct {
	works map[string]*models.Work
	queue []models.WorkSummary
}

func (m *reviewWorkStub) GetByID(ctx context.Context, id string) (*models.Work, error) {
	if work, ok := m.works[id]; ok {
		cp := *work
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *reviewWorkStub) UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error {
	work, ok := m.works[params.ID]
	if !ok || work.Status != params.From {
		return sql.ErrNoRows
	}
	work.Status = params.To
	if params.PublishedAt != nil {
		work.PublishedAt = params.PublishedAt
	}
	return nil
}

func (m *reviewWorkStub) ListReviewQueue(ctx context.Context) ([]models.WorkSummary, error) {
	return m.queue, nil
}

type reviewRepoStub struct {
	reviews []*models.WorkReview
}

func (m *reviewRepoStub) Create(ctx context.Context, review *models.WorkReview) error {
	m.reviews = append(m.reviews, review)
	return nil
}

func (m *reviewRepoStub) ListByWork(ctx context.Context, workID string) ([]models.WorkReview, error) {
	var result []models.WorkReview
	for _, r := range m.reviews {
		if r.WorkID == workID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func pendingWork(id string) *models.Work {
	return &models.Work{
		ID:            id,
		TitleIT:       "La piazza racconta",
		DescriptionIT: "Percorso multimediale sulla piazza",
		Status:        models.WorkStatusPendingReview,
		CreatedBy:     "user-1",
	}
}

func TestReviewServiceApprovePublishesWork(t *testing.T) {
	works := &reviewWorkStub{works: map[string]*models.Work{"work-1": pendingWork("work-1")}}
	reviews := &reviewRepoStub{}
	svc := NewReviewService(works, reviews, &auditStub{}, nil)

	work, err := svc.Approve(context.Background(), "work-1", dto.ReviewDecisionRequest{Comments: "Ottimo lavoro"}, adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, models.WorkStatusPublished, work.Status)
	require.NotNil(t, works.works["work-1"].PublishedAt)

	require.Len(t, reviews.reviews, 1)
	assert.Equal(t, models.ReviewActionApproved, reviews.reviews[0].Action)
	require.NotNil(t, reviews.reviews[0].Comments)
	assert.Equal(t, "Ottimo lavoro", *reviews.reviews[0].Comments)
}

func TestReviewServiceApproveBlankCommentsStoredAsNull(t *testing.T) {
	works := &reviewWorkStub{works: map[string]*models.Work{"work-1": pendingWork("work-1")}}
	reviews := &reviewRepoStub{}
	svc := NewReviewService(works, reviews, &auditStub{}, nil)

	work, err := svc.Approve(context.Background(), "work-1", dto.ReviewDecisionRequest{Comments: "   "}, adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, models.WorkStatusPublished, work.Status)
	require.Len(t, reviews.reviews, 1)
	assert.Nil(t, reviews.reviews[0].Comments)
}

func TestReviewServiceRejectRequiresComments(t *testing.T) {
	works := &reviewWorkStub{works: map[string]*models.Work{"work-1": pendingWork("work-1")}}
	reviews := &reviewRepoStub{}
	svc := NewReviewService(works, reviews, &auditStub{}, nil)

	for _, comments := range []string{"", "   ", "\t\n"} {
		_, err := svc.Reject(context.Background(), "work-1", dto.ReviewDecisionRequest{Comments: comments}, adminClaims("admin-1"))
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}

	// no decision recorded, work untouched
	assert.Empty(t, reviews.reviews)
	assert.Equal(t, models.WorkStatusPendingReview, works.works["work-1"].Status)
}

func TestReviewServiceRejectSendsBackForRevision(t *testing.T) {
	works := &reviewWorkStub{works: map[string]*models.Work{"work-1": pendingWork("work-1")}}
	reviews := &reviewRepoStub{}
	audit := &auditStub{}
	svc := NewReviewService(works, reviews, audit, nil)

	work, err := svc.Reject(context.Background(), "work-1", dto.ReviewDecisionRequest{Comments: "Manca la bibliografia"}, adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, models.WorkStatusNeedsRevision, work.Status)

	require.Len(t, reviews.reviews, 1)
	assert.Equal(t, models.ReviewActionRejected, reviews.reviews[0].Action)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionWorkReview, audit.logs[0].Action)
}

func TestReviewServiceDecideRequiresAdmin(t *testing.T) {
	works := &reviewWorkStub{works: map[string]*models.Work{"work-1": pendingWork("work-1")}}
	svc := NewReviewService(works, &reviewRepoStub{}, &auditStub{}, nil)

	_, err := svc.Approve(context.Background(), "work-1", dto.ReviewDecisionRequest{}, docenteClaims("user-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Queue(context.Background(), docenteClaims("user-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestReviewServiceApproveNonPendingWorkFails(t *testing.T) {
	draft := pendingWork("work-1")
	draft.Status = models.WorkStatusDraft
	works := &reviewWorkStub{works: map[string]*models.Work{"work-1": draft}}
	reviews := &reviewRepoStub{}
	svc := NewReviewService(works, reviews, &auditStub{}, nil)

	_, err := svc.Approve(context.Background(), "work-1", dto.ReviewDecisionRequest{}, adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Empty(t, reviews.reviews)
}

func TestReviewServiceHistoryVisibleToOwnerAndAdmin(t *testing.T) {
	works := &reviewWorkStub{works: map[string]*models.Work{"work-1": pendingWork("work-1")}}
	reviews := &reviewRepoStub{reviews: []*models.WorkReview{
		{ID: "rev-1", WorkID: "work-1", Action: models.ReviewActionRejected},
	}}
	svc := NewReviewService(works, reviews, &auditStub{}, nil)

	history, err := svc.History(context.Background(), "work-1", docenteClaims("user-1"))
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = svc.History(context.Background(), "work-1", docenteClaims("user-2"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	history, err = svc.History(context.Background(), "work-1", adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
