package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quadriparlanti/qp-api/internal/service"
	"github.com/quadriparlanti/qp-api/pkg/response"
)

// PublicHandler serves the anonymous read-only endpoints: published
// themes and works only, no authentication.
type PublicHandler struct {
	service *service.PublicService
}

// NewPublicHandler creates a new public handler.
func NewPublicHandler(svc *service.PublicService) *PublicHandler {
	return &PublicHandler{service: svc}
}

// ListThemes godoc
// @Summary List published themes
// @Tags Public
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /public/themes [get]
func (h *PublicHandler) ListThemes(c *gin.Context) {
	themes, err := h.service.ListThemes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, themes, nil)
}

// GetTheme godoc
// @Summary Get a published theme by slug
// @Description Theme detail plus its published works
// @Tags Public
// @Produce json
// @Param slug path string true "Theme slug"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /public/themes/{slug} [get]
func (h *PublicHandler) GetTheme(c *gin.Context) {
	theme, works, err := h.service.GetTheme(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"theme": theme, "works": works}, nil)
}

// ListWorks godoc
// @Summary List published works
// @Tags Public
// @Produce json
// @Param theme_id query string false "Theme filter"
// @Param school_year query string false "School year filter"
// @Param search query string false "Search term"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /public/works [get]
func (h *PublicHandler) ListWorks(c *gin.Context) {
	works, pagination, err := h.service.ListWorks(c.Request.Context(), workQueryFromRequest(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, works, pagination)
}

// GetWork godoc
// @Summary Get a published work
// @Description Work detail; the view is recorded fire-and-forget
// @Tags Public
// @Produce json
// @Param id path string true "Work ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /public/works/{id} [get]
func (h *PublicHandler) GetWork(c *gin.Context) {
	detail, err := h.service.GetWork(c.Request.Context(), c.Param("id"), service.ViewEvent{
		WorkID:     c.Param("id"),
		IP:         c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
		Referrer:   c.GetHeader("Referer"),
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}
