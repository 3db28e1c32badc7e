package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/service"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
	"github.com/quadriparlanti/qp-api/pkg/response"
)

// ReviewHandler handles the admin review queue endpoints.
type ReviewHandler struct {
	service *service.ReviewService
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(svc *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{service: svc}
}

// Queue godoc
// @Summary List review queue
// @Description Pending works ordered by submission time, oldest first
// @Tags Reviews
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reviews/queue [get]
func (h *ReviewHandler) Queue(c *gin.Context) {
	works, err := h.service.Queue(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, works, nil)
}

// Approve godoc
// @Summary Approve work
// @Description Publish a pending work; comments are optional
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Work ID"
// @Param payload body dto.ReviewDecisionRequest false "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /works/{id}/approve [post]
func (h *ReviewHandler) Approve(c *gin.Context) {
	var req dto.ReviewDecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
			return
		}
	}

	work, err := h.service.Approve(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, work, nil)
}

// Reject godoc
// @Summary Reject work
// @Description Send a pending work back for revision; comments are required
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Work ID"
// @Param payload body dto.ReviewDecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /works/{id}/reject [post]
func (h *ReviewHandler) Reject(c *gin.Context) {
	var req dto.ReviewDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	work, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, work, nil)
}

// History godoc
// @Summary Review history
// @Description Append-only decision history for a work, newest first
// @Tags Reviews
// @Produce json
// @Param id path string true "Work ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /works/{id}/reviews [get]
func (h *ReviewHandler) History(c *gin.Context) {
	reviews, err := h.service.History(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, reviews, nil)
}
