package seeders

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/config"
	"github.com/carepath-academy/carepath/pkg/auth"
)

// seedAdmin creates the first administrator from ADMIN_EMAIL and
// ADMIN_PASSWORD. An existing account with that e-mail is promoted instead.
func seedAdmin(db *gorm.DB) error {
	email := strings.ToLower(strings.TrimSpace(config.AdminEmail()))
	password := config.Get("ADMIN_PASSWORD", "")
	if email == "" || password == "" {
		return errSkipped
	}

	var u models.User
	err := db.Where("email = ? AND is_deleted = ?", email, false).First(&u).Error
	switch {
	case err == nil:
		return db.Model(&u).Update("role", models.RoleAdmin).Error
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return db.Create(&models.User{
		Name:     "Administrator",
		Email:    email,
		Password: hash,
		Provider: models.ProviderCredentials,
		Role:     models.RoleAdmin,
	}).Error
}
