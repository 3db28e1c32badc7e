package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quadriparlanti/qp-api/internal/dto"
	"github.com/quadriparlanti/qp-api/internal/service"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
	"github.com/quadriparlanti/qp-api/pkg/response"
)

// QRHandler handles QR code management and the public redirect.
type QRHandler struct {
	service *service.QRService
}

// NewQRHandler creates a new QR handler.
func NewQRHandler(svc *service.QRService) *QRHandler {
	return &QRHandler{service: svc}
}

// Create godoc
// @Summary Create QR code
// @Description Allocate a unique short code for a theme and render its PNG
// @Tags QRCodes
// @Accept json
// @Produce json
// @Param payload body dto.CreateQRCodeRequest true "QR payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /qr [post]
func (h *QRHandler) Create(c *gin.Context) {
	var req dto.CreateQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid qr payload"))
		return
	}

	code, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, code)
}

// List godoc
// @Summary List QR codes
// @Tags QRCodes
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /qr [get]
func (h *QRHandler) List(c *gin.Context) {
	codes, err := h.service.List(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, codes, nil)
}

// SetActive godoc
// @Summary Activate or deactivate QR code
// @Tags QRCodes
// @Accept json
// @Produce json
// @Param id path string true "QR code ID"
// @Param payload body dto.UpdateQRCodeRequest true "Activation payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /qr/{id} [put]
func (h *QRHandler) SetActive(c *gin.Context) {
	var req dto.UpdateQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "isActive is required"))
		return
	}

	code, err := h.service.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, code, nil)
}

// Image godoc
// @Summary Download QR code PNG
// @Tags QRCodes
// @Produce png
// @Param id path string true "QR code ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /qr/{id}/image [get]
func (h *QRHandler) Image(c *gin.Context) {
	path, err := h.service.ImagePath(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", "image/png")
	c.File(path)
}

// Redirect godoc
// @Summary Resolve a scanned short code
// @Description Redirect the visitor to the bound theme page, or the site root for unknown codes
// @Tags QRCodes
// @Param code path string true "Short code"
// @Success 302
// @Router /q/{code} [get]
func (h *QRHandler) Redirect(c *gin.Context) {
	target := h.service.Resolve(c.Request.Context(), c.Param("code"), service.ScanEvent{
		IP:         c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
		Referrer:   c.GetHeader("Referer"),
		OccurredAt: time.Now().UTC(),
	})

	c.Redirect(http.StatusFound, target)
}
