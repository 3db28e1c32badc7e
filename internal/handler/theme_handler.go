package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/models"
	"github.com/quadriparlanti/qp-api/internal/service"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
	"github.com/quadriparlanti/qp-api/pkg/response"
)

// ThemeHandler handles admin theme management endpoints.
type ThemeHandler struct {
	service *service.ThemeService
}

// NewThemeHandler creates a new theme handler.
func NewThemeHandler(svc *service.ThemeService) *ThemeHandler {
	return &ThemeHandler{service: svc}
}

// List godoc
// @Summary List themes
// @Description List themes with optional status and search filters
// @Tags Themes
// @Produce json
// @Param status query string false "Status filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /themes [get]
func (h *ThemeHandler) List(c *gin.Context) {
	var filter models.ThemeFilter
	for _, status := range c.QueryArray("status") {
		filter.Status = append(filter.Status, models.ThemeStatus(status))
	}
	filter.Search = c.Query("search")

	themes, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, themes, nil)
}

// Get godoc
// @Summary Get theme
// @Tags Themes
// @Produce json
// @Param id path string true "Theme ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /themes/{id} [get]
func (h *ThemeHandler) Get(c *gin.Context) {
	theme, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, theme, nil)
}

// Create godoc
// @Summary Create theme
// @Description Create a new theme in draft state
// @Tags Themes
// @Accept json
// @Produce json
// @Param payload body dto.SaveThemeRequest true "Theme payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /themes [post]
func (h *ThemeHandler) Create(c *gin.Context) {
	var req dto.SaveThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid theme payload"))
		return
	}

	theme, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, theme)
}

// Update godoc
// @Summary Update theme
// @Tags Themes
// @Accept json
// @Produce json
// @Param id path string true "Theme ID"
// @Param payload body dto.SaveThemeRequest true "Theme payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /themes/{id} [put]
func (h *ThemeHandler) Update(c *gin.Context) {
	var req dto.SaveThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid theme payload"))
		return
	}

	theme, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, theme, nil)
}

// Publish godoc
// @Summary Publish theme
// @Description Make the theme visible on the public site
// @Tags Themes
// @Produce json
// @Param id path string true "Theme ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /themes/{id}/publish [post]
func (h *ThemeHandler) Publish(c *gin.Context) {
	theme, err := h.service.Publish(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, theme, nil)
}

// Archive godoc
// @Summary Archive theme
// @Tags Themes
// @Produce json
// @Param id path string true "Theme ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /themes/{id}/archive [post]
func (h *ThemeHandler) Archive(c *gin.Context) {
	theme, err := h.service.Archive(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, theme, nil)
}

// Reorder godoc
// @Summary Reorder themes
// @Description Assign display order by position in the submitted list
// @Tags Themes
// @Accept json
// @Produce json
// @Param payload body dto.ReorderThemesRequest true "Ordered theme IDs"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /themes/reorder [put]
func (h *ThemeHandler) Reorder(c *gin.Context) {
	var req dto.ReorderThemesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reorder payload"))
		return
	}

	if err := h.service.Reorder(c.Request.Context(), req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
