package orm

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepath-academy/carepath/pkg/database"
)

type row struct {
	ID   uint
	Kind string
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, Page{Number: 1, Limit: DefaultLimit}, ParsePage("", ""))
	assert.Equal(t, Page{Number: 3, Limit: 10}, ParsePage("3", "10"))
	assert.Equal(t, Page{Number: 1, Limit: MaxLimit}, ParsePage("-2", "5000"))
	assert.Equal(t, 20, ParsePage("3", "10").Offset())
}

func TestPaginate(t *testing.T) {
	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "orm.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&row{}))
	for i := 0; i < 7; i++ {
		kind := "a"
		if i%2 == 1 {
			kind = "b"
		}
		require.NoError(t, db.Create(&row{Kind: kind}).Error)
	}

	var rows []row
	meta, err := Paginate(db.Model(&row{}).Where("kind = ?", "a").Order("id"), Page{Number: 2, Limit: 3}, &rows)
	require.NoError(t, err)

	assert.Equal(t, Pagination{Page: 2, Limit: 3, Total: 4, TotalPages: 2}, meta)
	require.Len(t, rows, 1, fmt.Sprint(rows))
	assert.EqualValues(t, 7, rows[0].ID)
}
