package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
)

// Enrollment is a submitted enrollment form. It starts PENDING and moves
// once, to COMPLETED or FAILED.
type Enrollment struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	StudentName   string              `gorm:"size:255;not null" json:"studentName"`
	Email         string              `gorm:"size:255;not null;index" json:"email"`
	Phone         string              `gorm:"size:50" json:"phone"`
	Address       string              `gorm:"type:text" json:"address"`
	DateOfBirth   string              `gorm:"size:20" json:"dateOfBirth"`
	FormData      datatypes.JSON      `json:"formData"`
	CourseID      *uint               `gorm:"index" json:"courseId"`
	Course        *Course             `gorm:"constraint:OnDelete:SET NULL" json:"course,omitempty"`
	UserID        *uint               `gorm:"index" json:"userId"`
	User          *User               `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	PaymentStatus string              `gorm:"size:10;not null;default:PENDING;index" json:"paymentStatus"`
	PaymentID     *string             `gorm:"size:255;index" json:"paymentId"`
	PaymentAmount decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"paymentAmount"`
	PaymentDate   *time.Time          `json:"paymentDate"`
	PdfPath       *string             `gorm:"size:255" json:"pdfPath,omitempty"`
	CreatedAt     time.Time           `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// OwnedBy reports whether userID submitted the enrollment.
func (e Enrollment) OwnedBy(userID uint) bool {
	return e.UserID != nil && *e.UserID == userID
}

// CanTransition reports whether status may move from e's current state.
func (e Enrollment) CanTransition(to string) bool {
	return e.PaymentStatus == PaymentPending && (to == PaymentCompleted || to == PaymentFailed)
}
