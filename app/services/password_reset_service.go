package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/jobs"
	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/pkg/auth"
	"github.com/carepath-academy/carepath/pkg/cache"
	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/queue"
)

const (
	resetPrefix = "password_reset:"
	// The record outlives the OTP and token so expiry can be reported as
	// such instead of as an unknown code.
	resetRecordTTL = time.Hour
	otpTTL         = 10 * time.Minute
	resetTokenTTL  = 10 * time.Minute
	maxOTPAttempts = 5
)

type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPInput struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp"   validate:"required,otp"`
}

type ResetPasswordInput struct {
	Email       string `json:"email"       validate:"required,email"`
	ResetToken  string `json:"resetToken"  validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

type resetRecord struct {
	CodeHash     string    `json:"codeHash,omitempty"`
	CodeExpires  time.Time `json:"codeExpires"`
	TokenHash    string    `json:"tokenHash,omitempty"`
	TokenExpires time.Time `json:"tokenExpires"`
}

type PasswordResetService struct {
	users *repositories.UserRepository
	kv    cache.Store
	jobs  queue.Dispatcher
	now   func() time.Time
}

func NewPasswordResetService(db *gorm.DB, kv cache.Store, jobs queue.Dispatcher) *PasswordResetService {
	return &PasswordResetService{
		users: repositories.NewUserRepository(db),
		kv:    kv,
		jobs:  jobs,
		now:   time.Now,
	}
}

func resetKey(email string) string {
	return resetPrefix + strings.ToLower(strings.TrimSpace(email))
}

func attemptsKey(email string) string { return resetKey(email) + ":attempts" }

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sameDigest(hash, candidate string) bool {
	return hash != "" && subtle.ConstantTimeCompare([]byte(hash), []byte(digest(candidate))) == 1
}

func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ForgotPassword issues a 6-digit code and queues it for delivery. Unknown
// e-mails return nil as well, so the response does not reveal accounts.
func (s *PasswordResetService) ForgotPassword(ctx context.Context, email string) error {
	log := logger.WithCtx(ctx)
	u, err := s.users.FindActiveByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Info("password reset: unknown email")
		return nil
	}
	if err != nil {
		return internal("Failed to start password reset", err)
	}

	code, err := newOTP()
	if err != nil {
		return internal("Failed to start password reset", err)
	}
	rec := resetRecord{CodeHash: digest(code), CodeExpires: s.now().Add(otpTTL)}
	if err := s.kv.Delete(ctx, attemptsKey(u.Email)); err != nil {
		return internal("Failed to start password reset", err)
	}
	if err := s.kv.Set(ctx, resetKey(u.Email), rec, resetRecordTTL); err != nil {
		return internal("Failed to start password reset", err)
	}

	job := &jobs.SendPasswordOTP{Email: u.Email, Name: u.Name, Code: code, Minutes: int(otpTTL / time.Minute)}
	if err := s.jobs.Dispatch(ctx, job); err != nil {
		return internal("Failed to send reset code", err)
	}
	log.Info("password reset: code issued", "user_id", u.ID)
	return nil
}

// VerifyOTP trades a valid code for a reset token. The code is single use.
// Every guess draws from an atomic counter, so at most maxOTPAttempts
// guesses are checked per issued code.
func (s *PasswordResetService) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	key := resetKey(email)
	var rec resetRecord
	found, err := s.kv.Get(ctx, key, &rec)
	if err != nil {
		return "", internal("Failed to verify OTP", err)
	}
	if !found || rec.CodeHash == "" {
		return "", invalidArg("Invalid OTP")
	}
	if s.now().After(rec.CodeExpires) {
		return "", invalidArg("OTP has expired")
	}

	attempt, err := s.kv.Increment(ctx, attemptsKey(email), resetRecordTTL)
	if err != nil {
		return "", internal("Failed to verify OTP", err)
	}
	if attempt > maxOTPAttempts {
		return "", invalidArg("Invalid OTP")
	}
	if !sameDigest(rec.CodeHash, otp) {
		if attempt == maxOTPAttempts {
			if err := s.kv.Delete(ctx, key); err != nil {
				return "", internal("Failed to verify OTP", err)
			}
			logger.WithCtx(ctx).Warn("password reset: code locked after failed attempts")
		}
		return "", invalidArg("Invalid OTP")
	}

	token := uuid.NewString()
	rec.CodeHash = ""
	rec.TokenHash = digest(token)
	rec.TokenExpires = s.now().Add(resetTokenTTL)
	if err := s.kv.Set(ctx, key, rec, resetRecordTTL); err != nil {
		return "", internal("Failed to verify OTP", err)
	}
	if err := s.kv.Delete(ctx, attemptsKey(email)); err != nil {
		logger.WithCtx(ctx).Warn("password reset: clear attempts failed", "error", err)
	}
	return token, nil
}

// ResetPassword sets a new password for a verified reset token and
// discards the reset record.
func (s *PasswordResetService) ResetPassword(ctx context.Context, email, token, password string) error {
	key := resetKey(email)
	var rec resetRecord
	found, err := s.kv.Get(ctx, key, &rec)
	if err != nil {
		return internal("Failed to reset password", err)
	}
	if !found || rec.TokenHash == "" {
		return invalidArg("Invalid reset token")
	}
	if s.now().After(rec.TokenExpires) {
		return invalidArg("Reset token has expired")
	}
	if !sameDigest(rec.TokenHash, token) {
		return invalidArg("Invalid reset token")
	}

	u, err := s.users.FindActiveByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invalidArg("Invalid reset token")
	}
	if err != nil {
		return internal("Failed to reset password", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return internal("Failed to reset password", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return internal("Failed to reset password", err)
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		logger.WithCtx(ctx).Warn("password reset: delete record failed", "error", err)
	}
	logger.WithCtx(ctx).Info("password reset: completed", "user_id", u.ID)
	return nil
}
