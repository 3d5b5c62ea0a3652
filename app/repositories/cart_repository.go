package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carepath-academy/carepath/app/models"
)

type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) WithTx(tx *gorm.DB) *CartRepository {
	return &CartRepository{db: tx}
}

// Ensure returns the user's cart id, inserting the row if absent. The
// unique user_id index makes concurrent callers converge on one row.
func (r *CartRepository) Ensure(ctx context.Context, userID uint) (uint, error) {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.Cart{UserID: userID}).Error
	if err != nil {
		return 0, err
	}

	var cart models.Cart
	if err := db.Select("id").Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return 0, err
	}
	return cart.ID, nil
}

// FindByUser loads the cart with items and their courses.
func (r *CartRepository) FindByUser(ctx context.Context, userID uint) (models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("cart_items.id ASC") }).
		Preload("Items.Course").
		Where("user_id = ?", userID).
		First(&cart).Error
	return cart, err
}

// Increment adds one unit of course to the cart. created reports whether a
// new line was inserted.
func (r *CartRepository) Increment(ctx context.Context, cartID, courseID uint) (item models.CartItem, created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND course_id = ?", cartID, courseID).
			Update("quantity", gorm.Expr("quantity + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent insert between the update and here turns into
			// an increment through the unique (cart_id, course_id) index.
			ins := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "cart_id"}, {Name: "course_id"}},
				DoUpdates: clause.Assignments(map[string]any{"quantity": gorm.Expr("cart_items.quantity + 1")}),
			}).Create(&models.CartItem{CartID: cartID, CourseID: courseID, Quantity: 1})
			if ins.Error != nil {
				return ins.Error
			}
			created = true
		}
		return tx.Preload("Course").
			Where("cart_id = ? AND course_id = ?", cartID, courseID).
			First(&item).Error
	})
	return item, created, err
}

// FindItem returns an item only if it belongs to the user's cart.
func (r *CartRepository) FindItem(ctx context.Context, userID, itemID uint) (models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("cart_items.id = ? AND carts.user_id = ?", itemID, userID).
		Preload("Course").
		First(&item).Error
	return item, err
}

func (r *CartRepository) SetQuantity(ctx context.Context, itemID uint, qty int) error {
	return r.db.WithContext(ctx).Model(&models.CartItem{}).Where("id = ?", itemID).Update("quantity", qty).Error
}

func (r *CartRepository) DeleteItem(ctx context.Context, itemID uint) error {
	return r.db.WithContext(ctx).Delete(&models.CartItem{}, itemID).Error
}

// CourseIDs lists the distinct courses in the user's cart.
func (r *CartRepository) CourseIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.CartItem{}).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID).
		Distinct().Pluck("cart_items.course_id", &ids).Error
	return ids, err
}

// ClearUser deletes every item in the user's cart.
func (r *CartRepository) ClearUser(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id IN (?)", r.db.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
