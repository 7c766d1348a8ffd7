package identity

import (
	"strings"
	"time"

	"github.com/grievancenet/backend/internal/domain/shared"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
)

// Role is the capability a user holds
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
)

// IsValid checks if the Role is a known value
func (r Role) IsValid() bool {
	return r == RoleCitizen || r == RoleAdmin
}

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// Limits for user fields
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72 // bcrypt ignores bytes past 72
	MaxNameLength     = 100
	MaxEmailLength    = 200
)

// bcryptCost is a variable so tests can lower it
var bcryptCost = bcrypt.DefaultCost

var emailFolder = cases.Fold()

// User is a registered citizen or administrator
type User struct {
	shared.BaseAggregateRoot
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	LastLoginAt  *time.Time
}

// NewUser validates the registration fields and hashes the password
func NewUser(name, email, password string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("All fields are required")
	}
	if len(name) > MaxNameLength {
		return nil, shared.NewValidationError("Name cannot exceed 100 characters")
	}

	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}

	return &User{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Email:             normalized,
		PasswordHash:      hash,
		Role:              RoleCitizen,
	}, nil
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Promote grants the admin role
func (u *User) Promote() {
	if u.Role == RoleAdmin {
		return
	}
	u.Role = RoleAdmin
	u.Touch()
	u.IncrementVersion()
}

// VerifyPassword checks password against the stored hash
func (u *User) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// RecordLogin stamps the last successful login
func (u *User) RecordLogin() {
	now := time.Now().UTC()
	u.LastLoginAt = &now
	u.UpdatedAt = now
	u.IncrementVersion()
}

// NormalizeEmail trims and case-folds an email address and checks its shape.
// Only the presence of "@" with text on both sides is required.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", shared.NewValidationError("Email and password are required")
	}
	if len(email) > MaxEmailLength {
		return "", shared.NewValidationError("Email cannot exceed 200 characters")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return "", shared.NewValidationError("Enter a valid email address")
	}
	return emailFolder.String(email), nil
}

// ValidatePassword enforces the password policy
func ValidatePassword(password string) error {
	if password == "" {
		return shared.NewValidationError("Email and password are required")
	}
	if len(password) < MinPasswordLength {
		return shared.NewValidationError("Password must be at least 6 characters")
	}
	if len(password) > MaxPasswordLength {
		return shared.NewValidationError("Password cannot exceed 72 characters")
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
