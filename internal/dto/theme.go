package dto

// SaveThemeRequest creates or updates a theme.
type SaveThemeRequest struct {
	Slug          string  `json:"slug" validate:"required,min=2,max=64"`
	TitleIT       string  `json:"titleIt" validate:"required,min=2"`
	TitleEN       *string `json:"titleEn,omitempty"`
	DescriptionIT *string `json:"descriptionIt,omitempty"`
	DescriptionEN *string `json:"descriptionEn,omitempty"`
	DisplayOrder  int     `json:"displayOrder"`
	CoverImage    *string `json:"coverImage,omitempty"`
}

// ReorderThemesRequest assigns display order by position in the slice.
type ReorderThemesRequest struct {
	ThemeIDs []string `json:"themeIds" validate:"required,min=1"`
}
