package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/identity"
)

// RegisterInput contains the input for registration
type RegisterInput struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,max=200"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// LoginInput contains the input for user login
type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenInput contains the input for token refresh
type RefreshTokenInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutInput contains the input for user logout
type LogoutInput struct {
	UserID   uuid.UUID
	TokenJTI string
	// TokenTTL is how long the access token would still be accepted
	TokenTTL time.Duration
}

// UserInfo is the public view of a user
type UserInfo struct {
	ID    uuid.UUID     `json:"id"`
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Role  identity.Role `json:"role"`
	Admin bool          `json:"admin"`
}

// AuthResult contains the tokens issued at registration, login or refresh
type AuthResult struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
	User                  UserInfo  `json:"user"`
}

// ToUserInfo converts a user to its public view
func ToUserInfo(u *identity.User) UserInfo {
	return UserInfo{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
		Admin: u.IsAdmin(),
	}
}
