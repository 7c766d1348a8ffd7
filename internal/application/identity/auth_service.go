package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/identity"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/infrastructure/auth"
	"go.uber.org/zap"
)

// Authentication failures
var (
	ErrInvalidCredentials = shared.NewDomainError(shared.CodeInvalidCredentials, "Invalid email or password")
	ErrEmailTaken         = shared.NewDomainError(shared.CodeAlreadyExists, "Email already registered")
	ErrTokenInvalid       = shared.NewDomainError(shared.CodeUnauthorized, "Invalid or expired token")
	ErrUserNotFound       = shared.NewDomainError(shared.CodeNotFound, "User not found")
	ErrTokenIssue         = shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication tokens")
)

// AuthServiceConfig contains configuration for the auth service
type AuthServiceConfig struct {
	// AdminEmails are promoted to the admin role on registration and login
	AdminEmails []string
}

// AuthService handles registration and authentication
type AuthService struct {
	userRepo    identity.UserRepository
	jwtService  *auth.JWTService
	blacklist   auth.TokenBlacklist
	adminEmails map[string]struct{}
	logger      *zap.Logger
}

// NewAuthService creates a new authentication service. blacklist may be nil,
// in which case logout only ends the session client-side.
func NewAuthService(
	userRepo identity.UserRepository,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	config AuthServiceConfig,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	admins := make(map[string]struct{}, len(config.AdminEmails))
	for _, email := range config.AdminEmails {
		if normalized, err := identity.NormalizeEmail(email); err == nil {
			admins[normalized] = struct{}{}
		}
	}
	return &AuthService{
		userRepo:    userRepo,
		jwtService:  jwtService,
		blacklist:   blacklist,
		adminEmails: admins,
		logger:      logger,
	}
}

// Register creates a citizen account and signs it in
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	user, err := identity.NewUser(input.Name, input.Email, input.Password)
	if err != nil {
		return nil, err
	}
	if s.isAdminEmail(user.Email) {
		user.Promote()
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, err
	}

	s.logger.Info("User registered",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role.String()))

	return s.issue(user)
}

// Login authenticates a user by email and password
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email, err := identity.NormalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, shared.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Login for unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.VerifyPassword(input.Password) {
		s.logger.Warn("Invalid password attempt", zap.String("user_id", user.ID.String()))
		return nil, ErrInvalidCredentials
	}

	if s.isAdminEmail(user.Email) {
		user.Promote()
	}
	user.RecordLogin()
	if err := s.userRepo.Update(ctx, user); err != nil {
		// The login still succeeds.
		s.logger.Error("Failed to update user after successful login", zap.Error(err))
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID.String()))
	return s.issue(user)
}

// Refresh exchanges a refresh token for a new pair. The role is read again
// from the stored user.
func (s *AuthService) Refresh(ctx context.Context, input RefreshTokenInput) (*AuthResult, error) {
	claims, err := s.jwtService.ValidateRefreshToken(input.RefreshToken)
	if err != nil {
		s.logger.Debug("Refresh token rejected", zap.Error(err))
		return nil, ErrTokenInvalid
	}
	if s.revoked(ctx, claims.ID) {
		return nil, ErrTokenInvalid
	}
	userID, err := claims.GetUserUUID()
	if err != nil {
		return nil, ErrTokenInvalid
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	return s.issue(user)
}

// Me returns the caller's account
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*UserInfo, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	info := ToUserInfo(user)
	return &info, nil
}

// Logout revokes the access token for the rest of its lifetime
func (s *AuthService) Logout(ctx context.Context, input LogoutInput) error {
	s.logger.Info("User logout", zap.String("user_id", input.UserID.String()))

	if s.blacklist == nil || input.TokenJTI == "" {
		return nil
	}
	if err := s.blacklist.AddToBlacklist(ctx, input.TokenJTI, input.TokenTTL); err != nil {
		s.logger.Error("Failed to revoke token", zap.Error(err))
		return err
	}
	return nil
}

func (s *AuthService) issue(user *identity.User) (*AuthResult, error) {
	pair, err := s.jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role.String(),
	})
	if err != nil {
		s.logger.Error("Failed to generate token pair", zap.Error(err))
		return nil, ErrTokenIssue
	}
	return &AuthResult{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
		TokenType:             pair.TokenType,
		User:                  ToUserInfo(user),
	}, nil
}

func (s *AuthService) isAdminEmail(email string) bool {
	_, ok := s.adminEmails[email]
	return ok
}

func (s *AuthService) revoked(ctx context.Context, jti string) bool {
	if s.blacklist == nil || jti == "" {
		return false
	}
	revoked, err := s.blacklist.IsBlacklisted(ctx, jti)
	if err != nil {
		s.logger.Warn("Token blacklist unavailable", zap.Error(err))
		return false
	}
	return revoked
}
