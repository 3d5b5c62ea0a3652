package app_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/pkg/app"
	"github.com/carepath-academy/carepath/pkg/auth"
	"github.com/carepath-academy/carepath/pkg/cache"
	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/mail"
	"github.com/carepath-academy/carepath/pkg/oauth"
	"github.com/carepath-academy/carepath/pkg/payment"
	"github.com/carepath-academy/carepath/pkg/queue"
	"github.com/carepath-academy/carepath/pkg/storage"
	"github.com/carepath-academy/carepath/pkg/testkit"
)

type fixture struct {
	app     *app.Application
	db      *gorm.DB
	handler http.Handler
	pay     *testkit.FakePayment
	vars    map[string]string
}

// newFixture seeds an admin (1), a user (2) and courses A $500 (1),
// B $300 (2) and a draft (3).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger.SetOutput(io.Discard)

	db := testkit.NewDB(t)
	disk, err := storage.NewLocal(t.TempDir(), "")
	require.NoError(t, err)

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	users := []models.User{
		{Name: "Ada Admin", Email: "admin@carepath.test", Password: hash, Role: models.RoleAdmin},
		{Name: "Uma User", Email: "user@carepath.test", Password: hash, Role: models.RoleUser},
	}
	require.NoError(t, db.Create(&users).Error)
	courses := []models.Course{
		{Name: "CNA Certification", Price: decimal.NewFromInt(500), Status: models.CourseActive},
		{Name: "CPR & First Aid", Price: decimal.NewFromInt(300), Status: models.CourseActive},
		{Name: "Phlebotomy", Price: decimal.NewFromInt(800), Status: models.CourseDraft},
	}
	require.NoError(t, db.Create(&courses).Error)

	pay := testkit.NewFakePayment()
	a, err := app.New(app.Options{
		DB:          db,
		KV:          cache.NewDBStore(db),
		Disk:        disk,
		Mailer:      mail.NewLog(mail.DefaultFrom()),
		Payment:     pay,
		Google:      oauth.NewGoogle("", "", ""),
		QueueDriver: queue.NewMemoryDriver(0),
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return &fixture{
		app:     a,
		db:      db,
		handler: a.Handler(),
		pay:     pay,
		vars: map[string]string{
			"ADMIN_TOKEN": testkit.Token(t, users[0].ID, models.RoleAdmin, users[0].Email),
			"USER_TOKEN":  testkit.Token(t, users[1].ID, models.RoleUser, users[1].Email),
		},
	}
}

func TestAPIScenarios(t *testing.T) {
	f := newFixture(t)
	testkit.RunDir(t, f.handler, "testdata/api", f.vars)
}

func TestPaidCheckoutCompletesEnrollmentOnce(t *testing.T) {
	f := newFixture(t)
	token := f.vars["USER_TOKEN"]

	rec := testkit.Serve(f.handler, testkit.Request(t, http.MethodPost, "/api/enrollments", map[string]any{
		"studentName": "Uma User",
		"email":       "user@carepath.test",
		"phone":       "555-0100",
		"address":     "1 Main St",
		"dateOfBirth": "1990-01-01",
		"courseId":    1,
	}, token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var enrollment models.Enrollment
	testkit.Decode(t, rec, &enrollment)
	require.NotNil(t, enrollment.UserID)

	rec = testkit.Serve(f.handler, testkit.Request(t, http.MethodPost, "/api/cart", map[string]any{"courseId": 1}, token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = testkit.Serve(f.handler, testkit.Request(t, http.MethodPost, "/api/checkout", nil, token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var checkout struct {
		SessionID string `json:"sessionId"`
	}
	testkit.Decode(t, rec, &checkout)
	require.Len(t, f.pay.Requests, 1)
	assert.EqualValues(t, 50000, f.pay.Requests[0].LineItems[0].UnitAmount)

	f.pay.MarkPaid(checkout.SessionID)
	session, err := f.pay.GetSession(context.Background(), checkout.SessionID)
	require.NoError(t, err)
	body := testkit.WebhookBody(payment.EventSessionCompleted, session)

	for range 2 {
		req := testkit.Request(t, http.MethodPost, "/api/webhooks/stripe", nil, "")
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.Header.Set("Stripe-Signature", f.pay.Sign(body))
		rec = testkit.Serve(f.handler, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	}

	var stored models.Enrollment
	require.NoError(t, f.db.First(&stored, enrollment.ID).Error)
	assert.Equal(t, models.PaymentCompleted, stored.PaymentStatus)
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, checkout.SessionID, *stored.PaymentID)

	var confirmations int64
	require.NoError(t, f.db.Model(&models.PaymentConfirmation{}).Count(&confirmations).Error)
	assert.EqualValues(t, 1, confirmations)

	rec = testkit.Serve(f.handler, testkit.Request(t, http.MethodGet, "/api/cart", nil, token))
	var cart struct {
		Items []models.CartItem `json:"items"`
	}
	testkit.Decode(t, rec, &cart)
	assert.Empty(t, cart.Items)

	rec = testkit.Serve(f.handler, testkit.Request(t, http.MethodGet, "/api/checkout/verify?session_id="+checkout.SessionID, nil, token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var verified struct {
		AlreadyProcessed bool `json:"alreadyProcessed"`
	}
	testkit.Decode(t, rec, &verified)
	assert.True(t, verified.AlreadyProcessed)
}

func TestViewPDFIsOwnerOrAdmin(t *testing.T) {
	f := newFixture(t)

	rec := testkit.Serve(f.handler, testkit.Request(t, http.MethodPost, "/api/enrollments", map[string]any{
		"studentName": "Uma User",
		"email":       "user@carepath.test",
		"phone":       "555-0100",
		"address":     "1 Main St",
		"dateOfBirth": "1990-01-01",
	}, f.vars["USER_TOKEN"]))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e models.Enrollment
	testkit.Decode(t, rec, &e)

	path := "/api/view-pdf/" + strconv.FormatUint(uint64(e.ID), 10)
	for _, token := range []string{f.vars["USER_TOKEN"], f.vars["ADMIN_TOKEN"]} {
		rec = testkit.Serve(f.handler, testkit.Request(t, http.MethodGet, path, nil, token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "inline")
		assert.True(t, len(rec.Body.Bytes()) > 4 && string(rec.Body.Bytes()[:4]) == "%PDF")
	}

	stranger := testkit.Token(t, 99, models.RoleUser, "stranger@carepath.test")
	require.NoError(t, f.db.Create(&models.User{ID: 99, Name: "Stranger", Email: "stranger@carepath.test", Role: models.RoleUser}).Error)
	rec = testkit.Serve(f.handler, testkit.Request(t, http.MethodGet, path, nil, stranger))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeletedAccountTokenIsRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", 2).Update("is_deleted", true).Error)

	rec := testkit.Serve(f.handler, testkit.Request(t, http.MethodGet, "/api/auth/me", nil, f.vars["USER_TOKEN"]))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordResetQueuesOTPMail(t *testing.T) {
	f := newFixture(t)
	sent := make(chan struct{})
	mailer := &testkit.MockMailer{}
	mailer.On("Send", mock.MatchedBy(func(m *mail.Message) bool {
		return slices.Contains(m.To, "user@carepath.test")
	})).Return(nil).Once().Run(func(mock.Arguments) { close(sent) })

	// Rebuild on a mailer the test controls, with workers running.
	a, err := app.New(app.Options{DB: f.db, Disk: f.app.Disk, Mailer: mailer, Payment: f.pay, Google: oauth.NewGoogle("", "", "")})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.RunWorkers(ctx)
	}()

	rec := testkit.Serve(a.Handler(), testkit.Request(t, http.MethodPost, "/api/auth/forgot-password", map[string]any{"email": "user@carepath.test"}, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	select {
	case <-sent:
	case <-time.After(5 * time.Second):
		t.Fatal("OTP mail was not sent")
	}
	cancel()
	<-done
	a.Close()
	mailer.AssertExpectations(t)
}

func TestHousekeeping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.app.KV.Set(ctx, "stale", "x", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, f.app.PurgeExpiredKeys(ctx))
	var entries int64
	require.NoError(t, f.db.Model(&cache.Entry{}).Count(&entries).Error)
	assert.Zero(t, entries)

	old := queue.FailedJobRecord{JobType: "old", Payload: "{}", FailedAt: time.Now().AddDate(0, 0, -60)}
	recent := queue.FailedJobRecord{JobType: "recent", Payload: "{}", FailedAt: time.Now()}
	require.NoError(t, f.db.Create(&old).Error)
	require.NoError(t, f.db.Create(&recent).Error)
	require.NoError(t, f.app.PruneFailedJobs(ctx))

	var left []queue.FailedJobRecord
	require.NoError(t, f.db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "recent", left[0].JobType)

	names := []string{}
	for _, e := range f.app.Scheduler.Entries() {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"kv:purge", "failed_jobs:prune"}, names)
}

func TestRouteTable(t *testing.T) {
	byName := map[string]string{}
	for _, ri := range app.RouteTable() {
		byName[ri.Name] = ri.Method + " " + ri.Path
	}
	assert.Equal(t, "POST /api/webhooks/stripe", byName["webhooks.stripe"])
	assert.Equal(t, "GET /api/view-pdf/{id}", byName["enrollments.pdf"])
	assert.Equal(t, "DELETE /api/cart/all", byName["cart.clear"])
	assert.Equal(t, "GET /api/admin/enrollments/export", byName["admin.enrollments.export"])
	assert.Equal(t, "GET /healthz", byName["health"])
}

func TestNewRequiresDatabaseAndDisk(t *testing.T) {
	_, err := app.New(app.Options{})
	assert.Error(t, err)
	_, err = app.New(app.Options{DB: testkit.NewDB(t)})
	assert.Error(t, err)
}
