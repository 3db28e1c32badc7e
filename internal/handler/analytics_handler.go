package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quadriparlanti/qp-api/internal/models"
	"github.com/quadriparlanti/qp-api/internal/service"
	"github.com/quadriparlanti/qp-api/pkg/response"
)

// AnalyticsHandler serves the admin analytics dashboard endpoints.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(svc *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc}
}

func analyticsFilterFromRequest(c *gin.Context) models.AnalyticsFilter {
	var filter models.AnalyticsFilter
	if from := c.Query("date_from"); from != "" {
		if ts, err := time.Parse("2006-01-02", from); err == nil {
			filter.DateFrom = &ts
		}
	}
	if to := c.Query("date_to"); to != "" {
		if ts, err := time.Parse("2006-01-02", to); err == nil {
			filter.DateTo = &ts
		}
	}
	filter.ThemeID = c.Query("theme_id")
	filter.WorkID = c.Query("work_id")
	return filter
}

// Summary godoc
// @Summary Analytics summary
// @Description Scan and view aggregates for the admin dashboard
// @Tags Analytics
// @Produce json
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param theme_id query string false "Theme filter"
// @Param work_id query string false "Work filter"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /analytics/summary [get]
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), analyticsFilterFromRequest(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// ScansPerDay godoc
// @Summary Daily scan counts
// @Tags Analytics
// @Produce json
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /analytics/scans [get]
func (h *AnalyticsHandler) ScansPerDay(c *gin.Context) {
	counts, err := h.service.ScansPerDay(c.Request.Context(), analyticsFilterFromRequest(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, counts, nil)
}

// ViewsPerDay godoc
// @Summary Daily view counts
// @Tags Analytics
// @Produce json
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /analytics/views [get]
func (h *AnalyticsHandler) ViewsPerDay(c *gin.Context) {
	counts, err := h.service.ViewsPerDay(c.Request.Context(), analyticsFilterFromRequest(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, counts, nil)
}
