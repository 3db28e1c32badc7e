package dto

import "github.com/quadriparlanti/qp-api/internal/models"

// InviteUserRequest creates an invited account. The invite token is
// returned to the caller; mail delivery is out of scope.
type InviteUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"fullName" validate:"required,min=2"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN DOCENTE"`
}

// InviteUserResponse returns the created user and its one-time token.
type InviteUserResponse struct {
	User        models.UserInfo `json:"user"`
	InviteToken string          `json:"inviteToken"`
	ExpiresIn   int64           `json:"expiresIn"`
}

// UpdateUserStatusRequest suspends or reactivates an account.
type UpdateUserStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,oneof=ACTIVE SUSPENDED"`
}
