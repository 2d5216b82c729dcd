package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"nutritrack/internal/auth"
	apperrors "nutritrack/internal/errors"
	"nutritrack/internal/metrics"
	"nutritrack/internal/model"
	"nutritrack/internal/repository"
)

const bcryptCost = 10

var (
	// ErrInvalidCredentials is returned for an unknown username and for a wrong
	// password alike.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", apperrors.ErrUnauthorized)
	// ErrUserAlreadyExists is returned when the username or email is taken.
	ErrUserAlreadyExists = fmt.Errorf("%w: user with this username or email", apperrors.ErrConflict)
	// ErrInvalidRefreshToken is returned when a refresh token is forged, expired or revoked.
	ErrInvalidRefreshToken = fmt.Errorf("%w: invalid or revoked refresh token", apperrors.ErrForbidden)
	// ErrMissingToken is returned when no token was presented.
	ErrMissingToken = fmt.Errorf("%w: token is required", apperrors.ErrUnauthorized)
)

// TokenPair is what a successful login hands to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, username, password, email string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*TokenPair, *model.User, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type authService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
	ledger     auth.Ledger
	timeout    time.Duration
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService, ledger auth.Ledger, timeout time.Duration) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtService: jwtService,
		ledger:     ledger,
		timeout:    timeout,
	}
}

// Register creates a user with role user and a bcrypt password hash.
func (s *authService) Register(ctx context.Context, username, password, email string) (user *model.User, err error) {
	defer func() { metrics.AuthRegistrationsTotal.WithLabelValues(metrics.Result(err)).Inc() }()

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: username, password and email are required", apperrors.ErrInvalidInput)
	}

	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	// The unique indexes decide; this only spares a bcrypt round for obvious duplicates.
	existing, err := s.userRepo.FindByUsernameOrEmail(ctx, username, email)
	if err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, unavailable("check user existence", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user = &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         model.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserAlreadyExists
		}
		return nil, unavailable("create user", err)
	}
	return user, nil
}

// Login verifies credentials and issues an access and refresh token. The
// refresh token is recorded in the ledger before it is returned.
func (s *authService) Login(ctx context.Context, username, password string) (pair *TokenPair, user *model.User, err error) {
	defer func() { metrics.AuthLoginsTotal.WithLabelValues(metrics.Result(err)).Inc() }()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: username and password are required", apperrors.ErrInvalidInput)
	}

	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	user, err = s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, unavailable("find user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err = s.issue(ctx, user)
	metrics.TokensIssuedTotal.WithLabelValues("issue", metrics.Result(err)).Inc()
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

func (s *authService) issue(ctx context.Context, user *model.User) (*TokenPair, error) {
	userID := user.ID.String()
	accessToken, err := s.jwtService.GenerateAccessToken(userID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(userID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.ledger.Store(ctx, tokenID, refreshToken, s.jwtService.RefreshTTL()); err != nil {
		return nil, unavailable("store refresh token", err)
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RefreshAccessToken mints a new access token from a live refresh token. The
// refresh token itself is not rotated.
func (s *authService) RefreshAccessToken(ctx context.Context, refreshToken string) (accessToken string, err error) {
	defer func() { metrics.TokensIssuedTotal.WithLabelValues("refresh", metrics.Result(err)).Inc() }()

	if refreshToken == "" {
		return "", ErrMissingToken
	}

	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}

	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	ok, err := s.ledger.Exists(ctx, refreshToken)
	if err != nil {
		return "", unavailable("look up refresh token", err)
	}
	if !ok {
		return "", ErrInvalidRefreshToken
	}

	accessToken, err = s.jwtService.GenerateAccessToken(claims.UserID, claims.Role)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Logout revokes a refresh token. The signature is not checked: a token the
// ledger does not hold is simply not found.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrMissingToken
	}

	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	revoked, err := s.ledger.Revoke(ctx, refreshToken)
	if err != nil {
		return unavailable("revoke refresh token", err)
	}
	if !revoked {
		return fmt.Errorf("%w: refresh token", apperrors.ErrNotFound)
	}
	return nil
}

// VerifyAccessToken checks an access token's signature, expiry and kind.
func (s *authService) VerifyAccessToken(token string) (*auth.Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	claims, err := s.jwtService.ValidateAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid access token", apperrors.ErrForbidden)
	}
	return claims, nil
}
