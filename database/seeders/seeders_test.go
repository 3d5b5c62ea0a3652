package seeders

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/config"
	"github.com/carepath-academy/carepath/pkg/testkit"
)

func TestRunAllIsIdempotent(t *testing.T) {
	db := testkit.NewDB(t)
	config.Override(map[string]string{"ADMIN_EMAIL": "Ops@CarePath.test", "ADMIN_PASSWORD": "s3cret-pass"})
	t.Cleanup(func() { config.Override(map[string]string{"ADMIN_EMAIL": "", "ADMIN_PASSWORD": ""}) })

	var out bytes.Buffer
	require.NoError(t, RunAll(context.Background(), db, &out))
	require.NoError(t, RunAll(context.Background(), db, &out))

	var courses int64
	require.NoError(t, db.Model(&models.Course{}).Count(&courses).Error)
	assert.EqualValues(t, len(starterCourses), courses)

	var admin models.User
	require.NoError(t, db.Where("email = ?", "ops@carepath.test").First(&admin).Error)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Contains(t, out.String(), "done")
}

func TestAdminSeederSkipsWithoutCredentials(t *testing.T) {
	db := testkit.NewDB(t)
	config.Override(map[string]string{"ADMIN_EMAIL": "", "ADMIN_PASSWORD": ""})

	var out bytes.Buffer
	require.NoError(t, RunAll(context.Background(), db, &out))
	assert.Contains(t, out.String(), "skipped")

	var admins int64
	require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error)
	assert.Zero(t, admins)
}
