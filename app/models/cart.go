package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is created lazily, at most one per user.
type Cart struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;uniqueIndex" json:"userId"`
	Items     []CartItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CartItem holds one course line. (CartID, CourseID) is unique so repeated
// adds increment Quantity instead of duplicating the line.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_course" json:"cartId"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_course;index" json:"courseId"`
	Quantity  int       `gorm:"not null;default:1;check:chk_cart_items_quantity,quantity >= 0" json:"quantity"`
	Course    Course    `gorm:"constraint:OnDelete:CASCADE" json:"course"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Unavailable marks a line whose course was unpublished after it was
	// added. Such lines are not counted or sold.
	Unavailable bool `gorm:"-" json:"unavailable,omitempty"`
}

// Purchasable reports whether the line's course is still on sale.
func (i CartItem) Purchasable() bool { return i.Course.IsActive() }

// Subtotal is price × quantity, zero for lines that cannot be bought.
func (i CartItem) Subtotal() decimal.Decimal {
	if !i.Purchasable() {
		return decimal.Zero
	}
	return i.Course.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CourseIDs lists the distinct courses in the cart, in item order.
func (c Cart) CourseIDs() []uint {
	seen := make(map[uint]bool, len(c.Items))
	ids := make([]uint, 0, len(c.Items))
	for _, it := range c.Items {
		if !seen[it.CourseID] {
			seen[it.CourseID] = true
			ids = append(ids, it.CourseID)
		}
	}
	return ids
}
