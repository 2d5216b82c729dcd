package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog entry. Nutrient values are per 100 units of quantity.
type Product struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name" gorm:"size:255;not null;index"`
	Kcal      float64   `json:"kcal" gorm:"not null"`
	Carbs     float64   `json:"carbs" gorm:"not null"`
	Prots     float64   `json:"prots" gorm:"not null"`
	Fats      float64   `json:"fats" gorm:"not null"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// BeforeCreate sets UUID before creating the record.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
