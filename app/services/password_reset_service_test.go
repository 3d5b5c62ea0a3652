package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepath-academy/carepath/app/jobs"
	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/auth"
	"github.com/carepath-academy/carepath/pkg/cache"
	"github.com/carepath-academy/carepath/pkg/testkit"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func sentCode(t *testing.T, d *testkit.RecordingDispatcher) string {
	t.Helper()
	sent := d.Jobs()
	require.NotEmpty(t, sent)
	job, ok := sent[len(sent)-1].(*jobs.SendPasswordOTP)
	require.True(t, ok)
	return job.Code
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestPasswordResetFlow(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "reset@example.com", models.RoleUser)
	d := &testkit.RecordingDispatcher{}
	clk := &clock{t: time.Now()}
	svc := services.NewPasswordResetService(db, cache.NewDBStore(db), d)
	svc.SetClock(clk.now)

	require.NoError(t, svc.ForgotPassword(ctx, "Reset@Example.com"))
	code := sentCode(t, d)
	assert.Len(t, code, 6)

	_, err := svc.VerifyOTP(ctx, u.Email, wrongCode(code))
	assert.ErrorIs(t, err, &services.Error{Kind: services.KindInvalidArgument, Message: "Invalid OTP"})

	token, err := svc.VerifyOTP(ctx, u.Email, code)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = svc.VerifyOTP(ctx, u.Email, code)
	assert.ErrorIs(t, err, &services.Error{Kind: services.KindInvalidArgument, Message: "Invalid OTP"}, "code is single use")

	err = svc.ResetPassword(ctx, u.Email, "not-the-token", "brand-new-pass")
	assert.ErrorIs(t, err, &services.Error{Kind: services.KindInvalidArgument, Message: "Invalid reset token"})

	require.NoError(t, svc.ResetPassword(ctx, u.Email, token, "brand-new-pass"))

	var saved models.User
	require.NoError(t, db.First(&saved, u.ID).Error)
	assert.NoError(t, auth.CheckPassword(saved.Password, "brand-new-pass"))

	err = svc.ResetPassword(ctx, u.Email, token, "another-pass")
	assert.ErrorIs(t, err, &services.Error{Kind: services.KindInvalidArgument, Message: "Invalid reset token"})
}

func TestPasswordResetExpiry(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "reset@example.com", models.RoleUser)
	d := &testkit.RecordingDispatcher{}
	clk := &clock{t: time.Now()}
	svc := services.NewPasswordResetService(db, cache.NewDBStore(db), d)
	svc.SetClock(clk.now)

	require.NoError(t, svc.ForgotPassword(ctx, u.Email))
	clk.advance(11 * time.Minute)
	_, err := svc.VerifyOTP(ctx, u.Email, sentCode(t, d))
	assert.ErrorIs(t, err, &services.Error{Kind: services.KindInvalidArgument, Message: "OTP has expired"})

	require.NoError(t, svc.ForgotPassword(ctx, u.Email))
	token, err := svc.VerifyOTP(ctx, u.Email, sentCode(t, d))
	require.NoError(t, err)

	clk.advance(10*time.Minute + time.Second)
	err = svc.ResetPassword(ctx, u.Email, token, "brand-new-pass")
	assert.ErrorIs(t, err, &services.Error{Kind: services.KindInvalidArgument, Message: "Reset token has expired"})
}

func TestPasswordResetLocksAfterRepeatedFailures(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "reset@example.com", models.RoleUser)
	d := &testkit.RecordingDispatcher{}
	svc := services.NewPasswordResetService(db, cache.NewDBStore(db), d)

	require.NoError(t, svc.ForgotPassword(ctx, u.Email))
	code := sentCode(t, d)
	for i := 0; i < 5; i++ {
		_, err := svc.VerifyOTP(ctx, u.Email, wrongCode(code))
		require.Error(t, err)
	}
	_, err := svc.VerifyOTP(ctx, u.Email, code)
	assert.ErrorIs(t, err, &services.Error{Kind: services.KindInvalidArgument, Message: "Invalid OTP"})
}

func TestPasswordResetLockHoldsUnderConcurrentGuesses(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "reset@example.com", models.RoleUser)
	d := &testkit.RecordingDispatcher{}
	svc := services.NewPasswordResetService(db, cache.NewDBStore(db), d)

	require.NoError(t, svc.ForgotPassword(ctx, u.Email))
	code := sentCode(t, d)

	var wg sync.WaitGroup
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.VerifyOTP(ctx, u.Email, wrongCode(code))
			assert.ErrorIs(t, err, services.ErrInvalidArgument)
		}()
	}
	wg.Wait()

	_, err := svc.VerifyOTP(ctx, u.Email, code)
	assert.ErrorIs(t, err, &services.Error{Kind: services.KindInvalidArgument, Message: "Invalid OTP"})

	// A fresh code starts a fresh allowance.
	require.NoError(t, svc.ForgotPassword(ctx, u.Email))
	token, err := svc.VerifyOTP(ctx, u.Email, sentCode(t, d))
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	db := testkit.NewDB(t)
	d := &testkit.RecordingDispatcher{}
	svc := services.NewPasswordResetService(db, cache.NewDBStore(db), d)

	require.NoError(t, svc.ForgotPassword(context.Background(), "ghost@example.com"))
	assert.Empty(t, d.Jobs())
}
