package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"nutritrack/internal/auth"
	"nutritrack/internal/model"
)

// RefreshTokenRepository is the SQL-backed token ledger.
type RefreshTokenRepository interface {
	auth.Ledger
}

type refreshTokenRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRefreshTokenRepository creates a GORM-backed token ledger.
func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db, now: time.Now}
}

func (r *refreshTokenRepository) Store(ctx context.Context, tokenID, token string, ttl time.Duration) error {
	rt := &model.RefreshToken{
		ID:        tokenID,
		TokenHash: auth.HashToken(token),
	}
	if ttl > 0 {
		exp := r.now().Add(ttl).UTC()
		rt.ExpiresAt = &exp
	}
	return r.db.WithContext(ctx).Create(rt).Error
}

func (r *refreshTokenRepository) Exists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("token_hash = ?", auth.HashToken(token)).
		Where("expires_at IS NULL OR expires_at > ?", r.now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Revoke is a single DELETE; RowsAffected tells which of two racing
// revocations removed the row.
func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("token_hash = ?", auth.HashToken(token)).
		Delete(&model.RefreshToken{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
