package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/testkit"
)

func TestGetCartConcurrentFirstAccessCreatesOneCart(t *testing.T) {
	db := testkit.NewDB(t)
	u := seedUser(t, db, "cart@example.com", models.RoleUser)
	svc := services.NewCartService(db)

	var wg sync.WaitGroup
	ids := make([]uint, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := svc.GetCart(context.Background(), u.ID)
			errs[i] = err
			if err == nil {
				ids[i] = v.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	var n int64
	require.NoError(t, db.Model(&models.Cart{}).Where("user_id = ?", u.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestAddItemIncrementsAndTotals(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "buyer@example.com", models.RoleUser)
	a := seedCourse(t, db, "First Aid", "500.00", models.CourseActive)
	b := seedCourse(t, db, "CPR", "300.00", models.CourseActive)
	svc := services.NewCartService(db)

	_, created, err := svc.AddItem(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = svc.AddItem(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)
	item, created, err := svc.AddItem(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, item.Quantity)

	view, err := svc.GetCart(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, "1100.00", view.Total.StringFixed(2))
}

func TestAddItemRejectsDraftAndMissingCourses(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "buyer@example.com", models.RoleUser)
	draft := seedCourse(t, db, "Coming soon", "10.00", models.CourseDraft)
	svc := services.NewCartService(db)

	_, _, err := svc.AddItem(ctx, u.ID, draft.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
	_, _, err = svc.AddItem(ctx, u.ID, 9999)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestUpdateQuantity(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "buyer@example.com", models.RoleUser)
	other := seedUser(t, db, "other@example.com", models.RoleUser)
	c := seedCourse(t, db, "First Aid", "50.00", models.CourseActive)
	seedPending(t, db, u.ID, c.ID)
	svc := services.NewCartService(db)

	item, _, err := svc.AddItem(ctx, u.ID, c.ID)
	require.NoError(t, err)

	_, _, err = svc.UpdateQuantity(ctx, u.ID, item.ID, -1)
	assert.ErrorIs(t, err, services.ErrInvalidArgument)

	_, _, err = svc.UpdateQuantity(ctx, other.ID, item.ID, 3)
	assert.ErrorIs(t, err, services.ErrNotFound)

	got, removed, err := svc.UpdateQuantity(ctx, u.ID, item.ID, 3)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 3, got.Quantity)

	_, removed, err = svc.UpdateQuantity(ctx, u.ID, item.ID, 0)
	require.NoError(t, err)
	assert.True(t, removed)

	view, err := svc.GetCart(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	var pending int64
	require.NoError(t, db.Model(&models.Enrollment{}).Where("payment_status = ?", models.PaymentPending).Count(&pending).Error)
	assert.Zero(t, pending, "removing an item drops its pending enrollment")
}

func TestClearCartKeepsCompletedEnrollments(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "buyer@example.com", models.RoleUser)
	c := seedCourse(t, db, "First Aid", "50.00", models.CourseActive)
	svc := services.NewCartService(db)

	done := seedPending(t, db, u.ID, c.ID)
	require.NoError(t, db.Model(&done).Update("payment_status", models.PaymentCompleted).Error)
	seedPending(t, db, u.ID, c.ID)

	_, _, err := svc.AddItem(ctx, u.ID, c.ID)
	require.NoError(t, err)
	require.NoError(t, svc.ClearCart(ctx, u.ID))

	view, err := svc.GetCart(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	var statuses []string
	require.NoError(t, db.Model(&models.Enrollment{}).Pluck("payment_status", &statuses).Error)
	assert.Equal(t, []string{models.PaymentCompleted}, statuses)
}
