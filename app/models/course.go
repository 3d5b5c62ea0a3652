package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CourseDraft  = "DRAFT"
	CourseActive = "ACTIVE"
)

func init() {
	// Prices go over the wire as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Course is a purchasable training course. Only ACTIVE courses are listed
// publicly or accepted into carts.
type Course struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	Duration    string          `gorm:"size:100" json:"duration"`
	Status      string          `gorm:"size:10;not null;default:DRAFT;index" json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (c Course) IsActive() bool { return c.Status == CourseActive }
