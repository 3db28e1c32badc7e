package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/models"
	"github.com/quadriparlanti/qp-api/internal/service"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
	"github.com/quadriparlanti/qp-api/pkg/response"
)

// WorkHandler handles the authenticated work aggregate endpoints.
type WorkHandler struct {
	service *service.WorkService
}

// NewWorkHandler creates a new work handler.
func NewWorkHandler(svc *service.WorkService) *WorkHandler {
	return &WorkHandler{service: svc}
}

func workQueryFromRequest(c *gin.Context) dto.WorkQuery {
	var query dto.WorkQuery
	for _, status := range c.QueryArray("status") {
		query.Status = append(query.Status, models.WorkStatus(status))
	}
	query.ThemeID = c.Query("theme_id")
	query.SchoolYear = c.Query("school_year")
	query.Tag = c.Query("tag")
	query.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		query.PageSize = size
	}
	return query
}

// List godoc
// @Summary List works
// @Description List works scoped to the caller: teachers see their own, admins see all
// @Tags Works
// @Produce json
// @Param status query []string false "Status filter"
// @Param theme_id query string false "Theme filter"
// @Param school_year query string false "School year filter"
// @Param search query string false "Search term"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /works [get]
func (h *WorkHandler) List(c *gin.Context) {
	works, pagination, err := h.service.List(c.Request.Context(), workQueryFromRequest(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, works, pagination)
}

// Get godoc
// @Summary Get work detail
// @Tags Works
// @Produce json
// @Param id path string true "Work ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /works/{id} [get]
func (h *WorkHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create work draft
// @Description Store a new draft with attachments, links and theme bindings in one call
// @Tags Works
// @Accept json
// @Produce json
// @Param payload body dto.SaveWorkRequest true "Work payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /works [post]
func (h *WorkHandler) Create(c *gin.Context) {
	var req dto.SaveWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid work payload"))
		return
	}

	detail, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, detail)
}

// Update godoc
// @Summary Update work draft
// @Description Rewrite the aggregate while it is still editable
// @Tags Works
// @Accept json
// @Produce json
// @Param id path string true "Work ID"
// @Param payload body dto.SaveWorkRequest true "Work payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /works/{id} [put]
func (h *WorkHandler) Update(c *gin.Context) {
	var req dto.SaveWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid work payload"))
		return
	}

	detail, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Submit godoc
// @Summary Submit work for review
// @Description Move a ready draft into the review queue
// @Tags Works
// @Produce json
// @Param id path string true "Work ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /works/{id}/submit [post]
func (h *WorkHandler) Submit(c *gin.Context) {
	work, err := h.service.Submit(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, work, nil)
}

// Archive godoc
// @Summary Archive work
// @Tags Works
// @Produce json
// @Param id path string true "Work ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /works/{id}/archive [post]
func (h *WorkHandler) Archive(c *gin.Context) {
	work, err := h.service.Archive(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, work, nil)
}
