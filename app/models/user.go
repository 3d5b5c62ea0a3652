package models

import "time"

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"

	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
)

// User is an account holder. Deleted users keep their row (IsDeleted) so
// enrollments and payments stay attributable.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;not null;index" json:"email"`
	Password  string    `gorm:"size:255" json:"-"` // bcrypt; empty for OAuth-only accounts
	Provider  string    `gorm:"size:20;not null;default:credentials" json:"provider"`
	Role      string    `gorm:"size:10;not null;default:USER;index" json:"role"`
	IsDeleted bool      `gorm:"not null;default:false;index" json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
