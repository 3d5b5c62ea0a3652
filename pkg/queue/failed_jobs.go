package queue

import (
	"context"
	"time"

	"github.com/carepath-academy/carepath/pkg/logger"
)

// FailedJobRecord is the persisted form of a FailedJob.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	JobType  string    `gorm:"size:255;not null;index"`
	Payload  string    `gorm:"type:text;not null"`
	Error    string    `gorm:"type:text"`
	Attempts int       `gorm:"not null;default:0"`
	FailedAt time.Time `gorm:"index"`
}

func (FailedJobRecord) TableName() string { return "failed_jobs" }

func (m *Manager) persistFailed(ctx context.Context, env envelope, lastErr error, attempts int) {
	now := time.Now().UTC()

	m.mu.Lock()
	m.failed = append(m.failed, FailedJob{
		Type: env.Type, Payload: env.Payload, Err: lastErr, FailedAt: now, Attempts: attempts,
	})
	m.mu.Unlock()

	if m.opts.DB == nil {
		return
	}

	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	record := FailedJobRecord{
		JobType:  env.Type,
		Payload:  string(env.Payload),
		Error:    msg,
		Attempts: attempts,
		FailedAt: now,
	}
	if err := m.opts.DB.WithContext(ctx).Create(&record).Error; err != nil {
		logger.Error("queue: persist failed job", "type", env.Type, "error", err)
	}
}

// Retry re-dispatches a persisted failed job and removes its record.
func (m *Manager) Retry(ctx context.Context, id uint) error {
	var rec FailedJobRecord
	if err := m.opts.DB.WithContext(ctx).First(&rec, id).Error; err != nil {
		return err
	}
	raw, err := jsonEnvelope(rec.JobType, rec.Payload)
	if err != nil {
		return err
	}
	if err := m.driver.Push(ctx, raw); err != nil {
		return err
	}
	return m.opts.DB.WithContext(ctx).Delete(&rec).Error
}
