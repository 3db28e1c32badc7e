package models

import "time"

// ThemeStatus captures theme visibility.
type ThemeStatus string

const (
	ThemeStatusDraft     ThemeStatus = "DRAFT"
	ThemeStatusPublished ThemeStatus = "PUBLISHED"
	ThemeStatusArchived  ThemeStatus = "ARCHIVED"
)

// Theme is a named bilingual category grouping works.
type Theme struct {
	ID            string      `db:"id" json:"id"`
	Slug          string      `db:"slug" json:"slug"`
	TitleIT       string      `db:"title_it" json:"title_it"`
	TitleEN       *string     `db:"title_en" json:"title_en,omitempty"`
	DescriptionIT *string     `db:"description_it" json:"description_it,omitempty"`
	DescriptionEN *string     `db:"description_en" json:"description_en,omitempty"`
	DisplayOrder  int         `db:"display_order" json:"display_order"`
	Status        ThemeStatus `db:"status" json:"status"`
	CoverImage    *string     `db:"cover_image" json:"cover_image,omitempty"`
	CreatedBy     string      `db:"created_by" json:"created_by"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// ThemeWithCount decorates a theme with its published works total.
type ThemeWithCount struct {
	Theme
	WorkCount int `db:"work_count" json:"work_count"`
}

// ThemeFilter constrains theme listing queries.
type ThemeFilter struct {
	Status []ThemeStatus
	Search string
}
