package migrations

import (
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/pkg/migration"
)

// A deleted account keeps its row, so email is unique only among live
// users. MySQL has no partial indexes; a generated column that is NULL for
// deleted rows gives the same effect.
func init() {
	migration.Register("20260301000006_add_users_active_email_index", migration.Funcs{
		UpFn: func(db *gorm.DB) error {
			switch db.Dialector.Name() {
			case "mysql":
				if err := db.Exec("ALTER TABLE users ADD COLUMN active_email VARCHAR(255) AS (IF(is_deleted, NULL, email)) STORED").Error; err != nil {
					return err
				}
				return db.Exec("CREATE UNIQUE INDEX idx_users_active_email ON users (active_email)").Error
			case "sqlserver":
				return db.Exec("CREATE UNIQUE INDEX idx_users_active_email ON users (email) WHERE is_deleted = 0").Error
			default:
				return db.Exec("CREATE UNIQUE INDEX idx_users_active_email ON users (email) WHERE NOT is_deleted").Error
			}
		},
		DownFn: func(db *gorm.DB) error {
			switch db.Dialector.Name() {
			case "mysql":
				if err := db.Exec("DROP INDEX idx_users_active_email ON users").Error; err != nil {
					return err
				}
				return db.Exec("ALTER TABLE users DROP COLUMN active_email").Error
			case "sqlserver":
				return db.Exec("DROP INDEX idx_users_active_email ON users").Error
			default:
				return db.Exec("DROP INDEX idx_users_active_email").Error
			}
		},
	})
}
