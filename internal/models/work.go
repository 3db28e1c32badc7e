package models

import "time"

// WorkLicense enumerates the licenses a work can be published under.
type WorkLicense string

const (
	LicenseCCBY     WorkLicense = "CC_BY"
	LicenseCCBYSA   WorkLicense = "CC_BY_SA"
	LicenseCCBYNC   WorkLicense = "CC_BY_NC"
	LicenseReserved WorkLicense = "ALL_RIGHTS_RESERVED"
)

// Work represents a submitted student project.
type Work struct {
	ID            string      `db:"id" json:"id"`
	TitleIT       string      `db:"title_it" json:"title_it"`
	TitleEN       *string     `db:"title_en" json:"title_en,omitempty"`
	DescriptionIT string      `db:"description_it" json:"description_it"`
	DescriptionEN *string     `db:"description_en" json:"description_en,omitempty"`
	ClassName     string      `db:"class_name" json:"class_name"`
	TeacherName   string      `db:"teacher_name" json:"teacher_name"`
	SchoolYear    string      `db:"school_year" json:"school_year"`
	Status        WorkStatus  `db:"status" json:"status"`
	License       WorkLicense `db:"license" json:"license"`
	Tags          StringList  `db:"tags" json:"tags"`
	ViewCount     int         `db:"view_count" json:"view_count"`
	EditCount     int         `db:"edit_count" json:"edit_count"`
	CreatedBy     string      `db:"created_by" json:"created_by"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
	SubmittedAt   *time.Time  `db:"submitted_at" json:"submitted_at,omitempty"`
	PublishedAt   *time.Time  `db:"published_at" json:"published_at,omitempty"`
}

// AttachmentType classifies stored files.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "IMAGE"
	AttachmentPDF   AttachmentType = "PDF"
)

// WorkAttachment is a file stored for a work. The storage path stays
// internal; consumers download through signed, expiring URLs.
type WorkAttachment struct {
	ID          string         `db:"id" json:"id"`
	WorkID      string         `db:"work_id" json:"work_id"`
	StoragePath string         `db:"storage_path" json:"-"`
	FileName    string         `db:"file_name" json:"file_name"`
	MimeType    string         `db:"mime_type" json:"mime_type"`
	FileType    AttachmentType `db:"file_type" json:"file_type"`
	SizeBytes   int64          `db:"size_bytes" json:"size_bytes"`
	Position    int            `db:"position" json:"position"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	DownloadURL string         `db:"-" json:"download_url,omitempty"`
}

// LinkProvider classifies external links attached to a work.
type LinkProvider string

const (
	LinkYouTube LinkProvider = "YOUTUBE"
	LinkVimeo   LinkProvider = "VIMEO"
	LinkDrive   LinkProvider = "DRIVE"
	LinkOther   LinkProvider = "OTHER"
)

// WorkLink is an external URL reference owned by a work.
type WorkLink struct {
	ID        string       `db:"id" json:"id"`
	WorkID    string       `db:"work_id" json:"work_id"`
	URL       string       `db:"url" json:"url"`
	Provider  LinkProvider `db:"provider" json:"provider"`
	Label     *string      `db:"label" json:"label,omitempty"`
	Position  int          `db:"position" json:"position"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// WorkDetail aggregates a work with its owned rows and theme bindings.
type WorkDetail struct {
	Work        Work             `json:"work"`
	Attachments []WorkAttachment `json:"attachments"`
	Links       []WorkLink       `json:"links"`
	Themes      []Theme          `json:"themes"`
}

// WorkSummary is the listing projection used by dashboards and the
// review queue: counts instead of full child rows.
type WorkSummary struct {
	Work
	SubmitterName   string `db:"submitter_name" json:"submitter_name"`
	SubmitterEmail  string `db:"submitter_email" json:"submitter_email"`
	AttachmentCount int    `db:"attachment_count" json:"attachment_count"`
	LinkCount       int    `db:"link_count" json:"link_count"`
	ThemeCount      int    `db:"theme_count" json:"theme_count"`
}

// WorkFilter constrains work listing queries.
type WorkFilter struct {
	Status     []WorkStatus
	CreatedBy  string
	ThemeID    string
	SchoolYear string
	Tag        string
	Search     string
	Page       int
	PageSize   int
}
