package dto

import "github.com/quadriparlanti/qp-api/internal/models"

// ExportRequest captures POST /exports payload.
type ExportRequest struct {
	Status     []models.WorkStatus `json:"status,omitempty"`
	ThemeID    string              `json:"themeId,omitempty"`
	SchoolYear string              `json:"schoolYear,omitempty"`
	Format     models.ExportFormat `json:"format"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ExportStatus `json:"status"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
