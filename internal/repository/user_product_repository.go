package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"nutritrack/internal/model"
)

// UserProductRepository is the consumption log.
type UserProductRepository interface {
	Create(ctx context.Context, up *model.UserProduct) error
	Update(ctx context.Context, up *model.UserProduct) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.UserProduct, error)
	// FindForUser returns the event only if it belongs to userID.
	FindForUser(ctx context.Context, userID, id uuid.UUID) (*model.UserProduct, error)
	// DeleteForUser reports gorm.ErrRecordNotFound when nothing was removed.
	DeleteForUser(ctx context.Context, userID, id uuid.UUID) error
	// ListByUserBetween returns events with from <= date < to, ordered by date then id.
	ListByUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]model.UserProduct, error)
}

type userProductRepository struct {
	db *gorm.DB
}

// NewUserProductRepository creates a new consumption log repository.
func NewUserProductRepository(db *gorm.DB) UserProductRepository {
	return &userProductRepository{db: db}
}

func (r *userProductRepository) Create(ctx context.Context, up *model.UserProduct) error {
	return r.db.WithContext(ctx).Create(up).Error
}

func (r *userProductRepository) Update(ctx context.Context, up *model.UserProduct) error {
	return r.db.WithContext(ctx).Save(up).Error
}

func (r *userProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.UserProduct, error) {
	var up model.UserProduct
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&up).Error; err != nil {
		return nil, err
	}
	return &up, nil
}

func (r *userProductRepository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*model.UserProduct, error) {
	var up model.UserProduct
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&up).Error; err != nil {
		return nil, err
	}
	return &up, nil
}

func (r *userProductRepository) DeleteForUser(ctx context.Context, userID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.UserProduct{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userProductRepository) ListByUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]model.UserProduct, error) {
	var ups []model.UserProduct
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date < ?", userID, from.UTC(), to.UTC()).
		Order("date ASC").
		Order("id ASC").
		Find(&ups).Error; err != nil {
		return nil, err
	}
	return ups, nil
}
