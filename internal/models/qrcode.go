package models

import "time"

// ShortCodeAlphabet is the character set 6-char codes are drawn from.
const ShortCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// QRCode binds a short code to a theme and tracks scan volume.
type QRCode struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	ThemeID   string    `db:"theme_id" json:"theme_id"`
	ImagePath *string   `db:"image_path" json:"image_path,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	ScanCount int       `db:"scan_count" json:"scan_count"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// QRCodeWithTheme joins the bound theme slug for redirect resolution
// and admin listings.
type QRCodeWithTheme struct {
	QRCode
	ThemeSlug    string      `db:"theme_slug" json:"theme_slug"`
	ThemeTitleIT string      `db:"theme_title_it" json:"theme_title_it"`
	ThemeStatus  ThemeStatus `db:"theme_status" json:"theme_status"`
}
