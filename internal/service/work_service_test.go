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

type auditStub struct {
	logs []*models.AuditLog
}

func (m *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type workRepoStub struct {
	works       map[string]*models.Work
	themeCounts map[string]int
	aggregates  []repository.WorkAggregate
}

func newWorkRepoStub() *workRepoStub {
	return &workRepoStub{works: make(map[string]*models.Work), themeCounts: make(map[string]int)}
}

func (m *workRepoStub) CreateAggregate(ctx context.Context, agg repository.WorkAggregate) error {
	if agg.Work.ID == "" {
		agg.Work.ID = "work-" + agg.Work.TitleIT
	}
	m.works[agg.Work.ID] = agg.Work
	m.themeCounts[agg.Work.ID] = len(agg.ThemeIDs)
	m.aggregates = append(m.aggregates, agg)
	return nil
}

func (m *workRepoStub) UpdateAggregate(ctx context.Context, agg repository.WorkAggregate) error {
	if _, ok := m.works[agg.Work.ID]; !ok {
		return sql.ErrNoRows
	}
	m.works[agg.Work.ID] = agg.Work
	m.themeCounts[agg.Work.ID] = len(agg.ThemeIDs)
	return nil
}

func (m *workRepoStub) GetByID(ctx context.Context, id string) (*models.Work, error) {
	if work, ok := m.works[id]; ok {
		cp := *work
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *workRepoStub) GetDetail(ctx context.Context, id string) (*models.WorkDetail, error) {
	work, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.WorkDetail{Work: *work}, nil
}

func (m *workRepoStub) List(ctx context.Context, filter models.WorkFilter) ([]models.WorkSummary, int, error) {
	var result []models.WorkSummary
	for _, work := range m.works {
		if filter.CreatedBy != "" && work.CreatedBy != filter.CreatedBy {
			continue
		}
		result = append(result, models.WorkSummary{Work: *work})
	}
	return result, len(result), nil
}

func (m *workRepoStub) UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error {
	work, ok := m.works[params.ID]
	if !ok || work.Status != params.From {
		return sql.ErrNoRows
	}
	work.Status = params.To
	if params.SubmittedAt != nil {
		work.SubmittedAt = params.SubmittedAt
	}
	if params.PublishedAt != nil {
		work.PublishedAt = params.PublishedAt
	}
	return nil
}

func (m *workRepoStub) CountThemes(ctx context.Context, workID string) (int, error) {
	return m.themeCounts[workID], nil
}

func docenteClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleDocente}
}

func adminClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleAdmin}
}

func TestWorkServiceCreateStartsAsDraft(t *testing.T) {
	repo := newWorkRepoStub()
	svc := NewWorkService(repo, &auditStub{}, nil, nil)

	detail, err := svc.Create(context.Background(), dto.SaveWorkRequest{
		TitleIT:       "La piazza racconta",
		DescriptionIT: "Percorso sulla piazza del paese",
		ThemeIDs:      []string{"theme-1"},
		Links:         []dto.LinkInput{{URL: "https://youtu.be/abc123"}},
	}, docenteClaims("user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.WorkStatusDraft, detail.Work.Status)
	assert.Equal(t, "user-1", detail.Work.CreatedBy)

	require.Len(t, repo.aggregates, 1)
	require.Len(t, repo.aggregates[0].Links, 1)
	assert.Equal(t, models.LinkYouTube, repo.aggregates[0].Links[0].Provider)
}

func TestWorkServiceSubmitBlocksUnreadyBeforeWrite(t *testing.T) {
	repo := newWorkRepoStub()
	repo.works["work-1"] = &models.Work{
		ID:            "work-1",
		TitleIT:       "Casa",
		DescriptionIT: "Breve",
		Status:        models.WorkStatusDraft,
		CreatedBy:     "user-1",
	}
	svc := NewWorkService(repo, &auditStub{}, nil, nil)

	_, err := svc.Submit(context.Background(), "work-1", docenteClaims("user-1"))
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "title_it")
	assert.Contains(t, appErr.Message, "description_it")
	assert.Contains(t, appErr.Message, "theme")

	// nothing was written
	assert.Equal(t, models.WorkStatusDraft, repo.works["work-1"].Status)
	assert.Nil(t, repo.works["work-1"].SubmittedAt)
}

func TestWorkServiceSubmitMovesToPendingReview(t *testing.T) {
	repo := newWorkRepoStub()
	repo.works["work-1"] = &models.Work{
		ID:            "work-1",
		TitleIT:       "La piazza racconta",
		DescriptionIT: "Un percorso multimediale sulla piazza del paese",
		Status:        models.WorkStatusDraft,
		CreatedBy:     "user-1",
	}
	repo.themeCounts["work-1"] = 2
	audit := &auditStub{}
	svc := NewWorkService(repo, audit, nil, nil)

	work, err := svc.Submit(context.Background(), "work-1", docenteClaims("user-1"))
	require.NoError(t, err)
	assert.Equal(t, models.WorkStatusPendingReview, work.Status)
	require.NotNil(t, repo.works["work-1"].SubmittedAt)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionWorkSubmit, audit.logs[0].Action)
}

func TestWorkServiceSubmitRejectsForeignWork(t *testing.T) {
	repo := newWorkRepoStub()
	repo.works["work-1"] = &models.Work{
		ID: "work-1", TitleIT: "Titolo valido", DescriptionIT: "Descrizione abbastanza lunga",
		Status: models.WorkStatusDraft, CreatedBy: "user-1",
	}
	repo.themeCounts["work-1"] = 1
	svc := NewWorkService(repo, &auditStub{}, nil, nil)

	_, err := svc.Submit(context.Background(), "work-1", docenteClaims("user-2"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestWorkServiceSubmitPublishedWorkIsIllegal(t *testing.T) {
	repo := newWorkRepoStub()
	repo.works["work-1"] = &models.Work{
		ID: "work-1", TitleIT: "Titolo valido", DescriptionIT: "Descrizione abbastanza lunga",
		Status: models.WorkStatusPublished, CreatedBy: "user-1",
	}
	repo.themeCounts["work-1"] = 1
	svc := NewWorkService(repo, &auditStub{}, nil, nil)

	_, err := svc.Submit(context.Background(), "work-1", docenteClaims("user-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.WorkStatusPublished, repo.works["work-1"].Status)
}

func TestWorkServiceUpdateBlockedOncePending(t *testing.T) {
	repo := newWorkRepoStub()
	repo.works["work-1"] = &models.Work{
		ID: "work-1", TitleIT: "Titolo", DescriptionIT: "Descrizione lunga abbastanza",
		Status: models.WorkStatusPendingReview, CreatedBy: "user-1",
	}
	svc := NewWorkService(repo, &auditStub{}, nil, nil)

	_, err := svc.Update(context.Background(), "work-1", dto.SaveWorkRequest{
		TitleIT: "Nuovo titolo", DescriptionIT: "Nuova descrizione",
	}, docenteClaims("user-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestWorkServiceArchiveFromAnyNonArchivedState(t *testing.T) {
	repo := newWorkRepoStub()
	repo.works["work-1"] = &models.Work{
		ID: "work-1", TitleIT: "Titolo", DescriptionIT: "Descrizione",
		Status: models.WorkStatusPublished, CreatedBy: "user-1",
	}
	svc := NewWorkService(repo, &auditStub{}, nil, nil)

	work, err := svc.Archive(context.Background(), "work-1", adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, models.WorkStatusArchived, work.Status)

	_, err = svc.Archive(context.Background(), "work-1", adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestWorkServiceListScopesDocenteToOwnWorks(t *testing.T) {
	repo := newWorkRepoStub()
	repo.works["work-1"] = &models.Work{ID: "work-1", CreatedBy: "user-1", Status: models.WorkStatusDraft}
	repo.works["work-2"] = &models.Work{ID: "work-2", CreatedBy: "user-2", Status: models.WorkStatusDraft}
	svc := NewWorkService(repo, &auditStub{}, nil, nil)

	works, _, err := svc.List(context.Background(), dto.WorkQuery{}, docenteClaims("user-1"))
	require.NoError(t, err)
	require.Len(t, works, 1)
	assert.Equal(t, "work-1", works[0].ID)
}
