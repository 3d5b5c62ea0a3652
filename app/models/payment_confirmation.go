package models

import "time"

const (
	SourceWebhook     = "webhook"
	SourceSuccessPage = "success_page"
)

// PaymentConfirmation records that a checkout session was applied. The
// unique SessionID makes confirmation idempotent across the webhook and the
// success-page paths.
type PaymentConfirmation struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SessionID      string    `gorm:"size:255;not null;uniqueIndex" json:"sessionId"`
	UserID         uint      `gorm:"not null;index" json:"userId"`
	Source         string    `gorm:"size:20;not null" json:"source"`
	AmountTotal    int64     `gorm:"not null;default:0" json:"amountTotal"`
	CompletedCount int       `gorm:"not null;default:0" json:"completedCount"`
	CreatedAt      time.Time `json:"createdAt"`
}
