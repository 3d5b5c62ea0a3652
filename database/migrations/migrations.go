// Package migrations contains all database migrations. Each file registers
// its migrations from init(); importing the package (cmd/carepath, testkit)
// makes the full set available to migration.Run.
package migrations

import (
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/pkg/migration"
)

// table builds the common create/drop pair for a single model.
func table(model any, name string) migration.Funcs {
	return migration.Funcs{
		UpFn:   func(db *gorm.DB) error { return db.AutoMigrate(model) },
		DownFn: func(db *gorm.DB) error { return db.Migrator().DropTable(name) },
	}
}
