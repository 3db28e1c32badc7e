package dto

import "github.com/quadriparlanti/qp-api/internal/models"

// AttachmentInput describes an already-uploaded file bound to the work
// aggregate. The binary itself goes through the upload endpoint first.
type AttachmentInput struct {
	StoragePath string `json:"storagePath" validate:"required"`
	FileName    string `json:"fileName" validate:"required"`
	MimeType    string `json:"mimeType" validate:"required"`
	SizeBytes   int64  `json:"sizeBytes" validate:"gte=0"`
}

// LinkInput describes an external link bound to the work aggregate.
type LinkInput struct {
	URL   string  `json:"url" validate:"required,url"`
	Label *string `json:"label,omitempty"`
}

// SaveWorkRequest is the single aggregate payload for creating or
// updating a work draft: base fields plus attachments, links and theme
// bindings, persisted in one transaction.
type SaveWorkRequest struct {
	TitleIT       string             `json:"titleIt" validate:"required"`
	TitleEN       *string            `json:"titleEn,omitempty"`
	DescriptionIT string             `json:"descriptionIt"`
	DescriptionEN *string            `json:"descriptionEn,omitempty"`
	ClassName     string             `json:"className"`
	TeacherName   string             `json:"teacherName"`
	SchoolYear    string             `json:"schoolYear"`
	License       models.WorkLicense `json:"license"`
	Tags          []string           `json:"tags,omitempty"`
	ThemeIDs      []string           `json:"themeIds"`
	Attachments   []AttachmentInput  `json:"attachments,omitempty"`
	Links         []LinkInput        `json:"links,omitempty"`
}

// WorkQuery mirrors supported listing filters.
type WorkQuery struct {
	Status     []models.WorkStatus
	ThemeID    string
	SchoolYear string
	Tag        string
	Search     string
	Page       int
	PageSize   int
}

// ReviewDecisionRequest carries the admin approve/reject payload.
type ReviewDecisionRequest struct {
	Comments string `json:"comments"`
}
