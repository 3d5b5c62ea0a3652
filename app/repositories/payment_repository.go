package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carepath-academy/carepath/app/models"
)

// ConfirmationRepository stores applied checkout sessions.
type ConfirmationRepository struct {
	db *gorm.DB
}

func NewConfirmationRepository(db *gorm.DB) *ConfirmationRepository {
	return &ConfirmationRepository{db: db}
}

func (r *ConfirmationRepository) WithTx(tx *gorm.DB) *ConfirmationRepository {
	return &ConfirmationRepository{db: tx}
}

// Claim inserts the confirmation unless the session id already exists. It
// reports whether this call inserted the row.
func (r *ConfirmationRepository) Claim(ctx context.Context, c *models.PaymentConfirmation) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_id"}}, DoNothing: true}).
		Create(c)
	return res.RowsAffected == 1, res.Error
}

func (r *ConfirmationRepository) SetCompletedCount(ctx context.Context, id uint, n int) error {
	return r.db.WithContext(ctx).Model(&models.PaymentConfirmation{}).
		Where("id = ?", id).Update("completed_count", n).Error
}

func (r *ConfirmationRepository) FindBySession(ctx context.Context, sessionID string) (models.PaymentConfirmation, error) {
	var c models.PaymentConfirmation
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&c).Error
	return c, err
}

// Recent returns the latest confirmations for the dashboard.
func (r *ConfirmationRepository) Recent(ctx context.Context, limit int) ([]models.PaymentConfirmation, error) {
	var list []models.PaymentConfirmation
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&list).Error
	return list, err
}
