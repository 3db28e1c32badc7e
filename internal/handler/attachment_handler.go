package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quadriparlanti/qp-api/internal/service"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
	"github.com/quadriparlanti/qp-api/pkg/response"
)

// AttachmentHandler handles work attachment binaries.
type AttachmentHandler struct {
	service *service.AttachmentService
}

// NewAttachmentHandler creates a new attachment handler.
func NewAttachmentHandler(svc *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: svc}
}

// Upload godoc
// @Summary Upload a work attachment
// @Description Store an image or PDF for a work, multipart field "file"
// @Tags Works
// @Accept mpfd
// @Produce json
// @Param id path string true "Work ID"
// @Param file formData file true "Attachment binary"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /works/{id}/attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart field \"file\" is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "failed to read uploaded file"))
		return
	}
	defer file.Close() //nolint:errcheck

	mimeType := fileHeader.Header.Get("Content-Type")
	att, err := h.service.Upload(c.Request.Context(), c.Param("id"), fileHeader.Filename, mimeType,
		fileHeader.Size, file, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, att)
}

// Delete godoc
// @Summary Delete a work attachment
// @Tags Works
// @Produce json
// @Param id path string true "Work ID"
// @Param attachmentId path string true "Attachment ID"
// @Success 204
// @Security BearerAuth
// @Router /works/{id}/attachments/{attachmentId} [delete]
func (h *AttachmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("attachmentId"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DownloadURL godoc
// @Summary Get a signed download URL for an attachment
// @Tags Works
// @Produce json
// @Param id path string true "Work ID"
// @Param attachmentId path string true "Attachment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /works/{id}/attachments/{attachmentId}/url [get]
func (h *AttachmentHandler) DownloadURL(c *gin.Context) {
	token, expiresAt, err := h.service.DownloadURL(c.Request.Context(), c.Param("attachmentId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"download_url": service.AttachmentDownloadPath + "?token=" + token,
		"expires_at":   expiresAt,
	}, nil)
}

// Download godoc
// @Summary Download an attachment with a signed token
// @Tags Works
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /attachments/download [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	c.Header("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.Size, result.MimeType, result.File, nil)
}
