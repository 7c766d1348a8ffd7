package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

func TestNewUser(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		email    string
		password string
		errorMsg string
	}{
		{name: "valid", userName: "Asha", email: "Asha@Example.com", password: "secret1"},
		{name: "missing name", userName: " ", email: "a@b.c", password: "secret1", errorMsg: "All fields are required"},
		{name: "missing email", userName: "Asha", email: "", password: "secret1", errorMsg: "required"},
		{name: "email without at", userName: "Asha", email: "asha.example.com", password: "secret1", errorMsg: "valid email"},
		{name: "email with leading at", userName: "Asha", email: "@example.com", password: "secret1", errorMsg: "valid email"},
		{name: "short password", userName: "Asha", email: "a@b.c", password: "12345", errorMsg: "at least 6"},
		{name: "long password", userName: "Asha", email: "a@b.c", password: strings.Repeat("p", 73), errorMsg: "cannot exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewUser(tt.userName, tt.email, tt.password)
			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.True(t, errors.Is(err, shared.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "asha@example.com", u.Email)
			assert.Equal(t, RoleCitizen, u.Role)
			assert.NotEqual(t, tt.password, u.PasswordHash)
			assert.True(t, u.VerifyPassword(tt.password))
			assert.False(t, u.VerifyPassword("wrong-password"))
		})
	}
}

func TestUser_Promote(t *testing.T) {
	u, err := NewUser("Admin", "admin@grievancenet.com", "secret1")
	require.NoError(t, err)
	version := u.Version

	u.Promote()
	assert.True(t, u.IsAdmin())
	assert.Equal(t, version+1, u.Version)

	u.Promote()
	assert.Equal(t, version+1, u.Version)
}

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  Admin@GrievanceNet.COM ")
	require.NoError(t, err)
	assert.Equal(t, "admin@grievancenet.com", email)
}
