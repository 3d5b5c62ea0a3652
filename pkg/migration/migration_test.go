package migration

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/pkg/database"
)

type widget struct {
	ID   uint
	Name string
}

func withRegistry(t *testing.T, entries map[string]Migration) {
	regMu.Lock()
	saved := registry
	registry = entries
	regMu.Unlock()
	t.Cleanup(func() {
		regMu.Lock()
		registry = saved
		regMu.Unlock()
	})
}

func openDB(t *testing.T) *gorm.DB {
	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	return db
}

func TestRunRollbackStatus(t *testing.T) {
	withRegistry(t, map[string]Migration{
		"20260301000001_add_index": Funcs{
			UpFn:   func(db *gorm.DB) error { return db.Exec("CREATE INDEX idx_widgets_name ON widgets(name)").Error },
			DownFn: func(db *gorm.DB) error { return db.Exec("DROP INDEX idx_widgets_name").Error },
		},
		"20260301000000_create_widgets": Funcs{
			UpFn:   func(db *gorm.DB) error { return db.AutoMigrate(&widget{}) },
			DownFn: func(db *gorm.DB) error { return db.Migrator().DropTable(&widget{}) },
		},
	})
	db := openDB(t)
	r := New(db, nil)
	ctx := context.Background()

	applied, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260301000000_create_widgets", "20260301000001_add_index"}, applied, "lexical order")
	assert.True(t, db.Migrator().HasTable(&widget{}))

	again, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)

	status, err := r.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.True(t, status[0].Ran)
	assert.Equal(t, 1, status[1].Batch)

	reverted, err := r.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260301000001_add_index", "20260301000000_create_widgets"}, reverted)
	assert.False(t, db.Migrator().HasTable(&widget{}))
}

func TestFailedMigrationIsNotRecorded(t *testing.T) {
	withRegistry(t, map[string]Migration{
		"20260301000000_broken": Funcs{UpFn: func(*gorm.DB) error { return errors.New("syntax error") }},
	})
	r := New(openDB(t), nil)

	_, err := r.Run(context.Background())
	assert.ErrorContains(t, err, "syntax error")

	status, err := r.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status[0].Ran)
}
