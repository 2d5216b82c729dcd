package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MealType tags a consumption event with the meal it belongs to.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealBrunch    MealType = "brunch"
	MealDinner    MealType = "dinner"
	MealTea       MealType = "tea"
	MealSupper    MealType = "supper"
)

// MealTypes lists the accepted meal types in the order of a day.
var MealTypes = []MealType{MealBreakfast, MealBrunch, MealDinner, MealTea, MealSupper}

// Valid reports whether t is one of MealTypes. The empty type is not valid.
func (t MealType) Valid() bool {
	for _, mt := range MealTypes {
		if t == mt {
			return true
		}
	}
	return false
}

// UserProduct is a consumption event: a user ate Quantity units of a product.
type UserProduct struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:char(36);not null;index:idx_user_products_user_date,priority:1"`
	ProductID uuid.UUID `json:"product_id" gorm:"type:char(36);not null;index"`
	Quantity  float64   `json:"quantity" gorm:"not null"`
	Date      time.Time `json:"date" gorm:"not null;index:idx_user_products_user_date,priority:2"`
	Type      MealType  `json:"type,omitempty" gorm:"type:varchar(20)"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// BeforeCreate sets UUID before creating the record.
func (up *UserProduct) BeforeCreate(tx *gorm.DB) error {
	if up.ID == uuid.Nil {
		up.ID = uuid.New()
	}
	return nil
}
