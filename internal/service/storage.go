package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "nutritrack/internal/errors"
)

// DefaultStorageTimeout bounds a single store round trip when none is configured.
const DefaultStorageTimeout = 5 * time.Second

// storageContext bounds ctx by d, falling back to DefaultStorageTimeout.
func storageContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultStorageTimeout
	}
	return context.WithTimeout(ctx, d)
}

// unavailable wraps a driver or deadline failure as ErrUnavailable, keeping
// the cause for logs.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperrors.ErrUnavailable, op, err)
}

// notFoundOr maps gorm.ErrRecordNotFound to ErrNotFound and anything else to
// ErrUnavailable.
func notFoundOr(op, what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, what)
	}
	return unavailable(op, err)
}
