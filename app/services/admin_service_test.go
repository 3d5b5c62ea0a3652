package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/orm"
	"github.com/carepath-academy/carepath/pkg/testkit"
)

func TestAdminUserManagement(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	svc := services.NewAdminService(db)
	admin := seedUser(t, db, "admin@example.com", models.RoleAdmin)
	u := seedUser(t, db, "user@example.com", models.RoleUser)

	_, err := svc.SetRole(ctx, admin.ID, admin.ID, models.RoleUser)
	assert.ErrorIs(t, err, services.ErrInvalidState)
	assert.ErrorIs(t, svc.DeleteUser(ctx, admin.ID, admin.ID), services.ErrInvalidState)
	_, err = svc.SetRole(ctx, admin.ID, u.ID, "ROOT")
	assert.ErrorIs(t, err, services.ErrInvalidArgument)

	promoted, err := svc.SetRole(ctx, admin.ID, u.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	require.NoError(t, svc.DeleteUser(ctx, admin.ID, u.ID))
	assert.ErrorIs(t, svc.DeleteUser(ctx, admin.ID, u.ID), services.ErrNotFound)

	live, _, err := svc.Users(ctx, repositories.UserFilter{}, orm.Page{Number: 1, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, live, 1)

	all, _, err := svc.Users(ctx, repositories.UserFilter{IncludeDeleted: true, Search: "USER@"}, orm.Page{Number: 1, Limit: 20})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDeleted)
}

func TestAdminStats(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()
	svc := services.NewAdminService(db)
	seedUser(t, db, "admin@example.com", models.RoleAdmin)
	u := seedUser(t, db, "user@example.com", models.RoleUser)
	c := seedCourse(t, db, "CPR", "300.00", models.CourseActive)
	seedCourse(t, db, "Draft", "1.00", models.CourseDraft)
	seedPending(t, db, u.ID, c.ID)
	paid := seedPending(t, db, u.ID, c.ID)
	require.NoError(t, db.Model(&paid).Updates(map[string]any{
		"payment_status": models.PaymentCompleted,
		"payment_amount": decimal.RequireFromString("300.00"),
	}).Error)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Users)
	assert.EqualValues(t, 1, st.Admins)
	assert.EqualValues(t, 1, st.Courses[models.CourseActive])
	assert.EqualValues(t, 1, st.Courses[models.CourseDraft])
	assert.EqualValues(t, 1, st.Enrollments[models.PaymentPending])
	assert.EqualValues(t, 1, st.Enrollments[models.PaymentCompleted])
	assert.Equal(t, "300.00", st.Revenue.StringFixed(2))
}
