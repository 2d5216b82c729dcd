package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"nutritrack/internal/cache"
	"nutritrack/internal/model"
	"nutritrack/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// UserService exposes user profile and administration operations.
type UserService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	// EnsureAdmin registers the user if needed and grants the admin role.
	EnsureAdmin(ctx context.Context, username, password, email string) (*model.User, error)
}

type userService struct {
	repo    repository.UserRepository
	auth    AuthService
	cache   *cache.Client
	timeout time.Duration
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, auth AuthService, cache *cache.Client, timeout time.Duration) UserService {
	return &userService{repo: repo, auth: auth, cache: cache, timeout: timeout}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id.String())
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr("find user", "user", err)
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

func (s *userService) EnsureAdmin(ctx context.Context, username, password, email string) (*model.User, error) {
	username = strings.TrimSpace(username)
	user, err := s.auth.Register(ctx, username, password, email)
	if errors.Is(err, ErrUserAlreadyExists) {
		lookupCtx, cancel := storageContext(ctx, s.timeout)
		user, err = s.repo.FindByUsername(lookupCtx, username)
		cancel()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The email belongs to someone else.
			return nil, ErrUserAlreadyExists
		}
		if err != nil {
			return nil, unavailable("find user", err)
		}
	} else if err != nil {
		return nil, err
	}

	if user.Role == model.RoleAdmin {
		return user, nil
	}

	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()
	if err := s.repo.UpdateRole(ctx, user.ID, model.RoleAdmin); err != nil {
		return nil, notFoundOr("update role", "user", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(user.ID))
	user.Role = model.RoleAdmin
	return user, nil
}
