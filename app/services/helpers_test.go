package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/pkg/auth"
)

func seedUser(t *testing.T, db *gorm.DB, email, role string) models.User {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	u := models.User{Name: "Test " + role, Email: email, Password: hash, Provider: models.ProviderCredentials, Role: role}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedCourse(t *testing.T, db *gorm.DB, name, price, status string) models.Course {
	t.Helper()
	c := models.Course{Name: name, Price: decimal.RequireFromString(price), Duration: "4 weeks", Status: status}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func seedPending(t *testing.T, db *gorm.DB, userID, courseID uint) models.Enrollment {
	t.Helper()
	e := models.Enrollment{
		StudentName:   "Sam Student",
		Email:         "sam@example.com",
		Phone:         "555-0100",
		Address:       "1 Main St",
		DateOfBirth:   "1990-01-01",
		CourseID:      &courseID,
		UserID:        &userID,
		PaymentStatus: models.PaymentPending,
	}
	require.NoError(t, db.Create(&e).Error)
	return e
}

func reload(t *testing.T, db *gorm.DB, id uint) models.Enrollment {
	t.Helper()
	var e models.Enrollment
	require.NoError(t, db.First(&e, id).Error)
	return e
}

type firedEvent struct {
	Name    string
	Payload any
}

// recordingNotifier captures events synchronously.
type recordingNotifier struct {
	mu     sync.Mutex
	events []firedEvent
}

func (n *recordingNotifier) FireAsync(_ context.Context, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, firedEvent{event, payload})
}
