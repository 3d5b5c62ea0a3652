package migrations

import (
	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/pkg/migration"
)

func init() {
	migration.Register("20260301000000_create_users_table", table(&models.User{}, "users"))
	migration.Register("20260301000001_create_courses_table", table(&models.Course{}, "courses"))
	migration.Register("20260301000002_create_carts_table", table(&models.Cart{}, "carts"))
	migration.Register("20260301000003_create_cart_items_table", table(&models.CartItem{}, "cart_items"))
	migration.Register("20260301000004_create_enrollments_table", table(&models.Enrollment{}, "enrollments"))
	migration.Register("20260301000005_create_payment_confirmations_table", table(&models.PaymentConfirmation{}, "payment_confirmations"))
}
