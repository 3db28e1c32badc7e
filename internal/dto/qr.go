package dto

// CreateQRCodeRequest binds a new short code to a theme.
type CreateQRCodeRequest struct {
	ThemeID string `json:"themeId" validate:"required"`
}

// UpdateQRCodeRequest toggles code activation.
type UpdateQRCodeRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}
