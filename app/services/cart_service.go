package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/pkg/logger"
)

// CartView is a cart with its computed total.
type CartView struct {
	ID    uint              `json:"id"`
	Items []models.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

type CartService struct {
	db          *gorm.DB
	carts       *repositories.CartRepository
	courses     *repositories.CourseRepository
	enrollments *repositories.EnrollmentRepository
}

func NewCartService(db *gorm.DB) *CartService {
	return &CartService{
		db:          db,
		carts:       repositories.NewCartRepository(db),
		courses:     repositories.NewCourseRepository(db),
		enrollments: repositories.NewEnrollmentRepository(db),
	}
}

// Total is Σ price × quantity over purchasable lines. An empty cart totals
// zero.
func Total(cart models.Cart) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range cart.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// Load returns the user's cart, creating an empty one on first access.
func (s *CartService) Load(ctx context.Context, userID uint) (models.Cart, error) {
	if _, err := s.carts.Ensure(ctx, userID); err != nil {
		return models.Cart{}, internal("Failed to load cart", err)
	}
	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return models.Cart{}, internal("Failed to load cart", err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	for i := range cart.Items {
		cart.Items[i].Unavailable = !cart.Items[i].Purchasable()
	}
	return cart, nil
}

// GetCart returns the cart with items, courses and total. Lines whose
// course is no longer ACTIVE are kept but flagged Unavailable.
func (s *CartService) GetCart(ctx context.Context, userID uint) (*CartView, error) {
	cart, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CartView{ID: cart.ID, Items: cart.Items, Total: Total(cart)}, nil
}

// AddItem puts one unit of an ACTIVE course in the cart. created is false
// when an existing line was incremented.
func (s *CartService) AddItem(ctx context.Context, userID, courseID uint) (item models.CartItem, created bool, err error) {
	if _, err := s.courses.FindActive(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return item, false, notFound("Course not found")
		}
		return item, false, internal("Failed to add to cart", err)
	}

	cartID, err := s.carts.Ensure(ctx, userID)
	if err != nil {
		return item, false, internal("Failed to add to cart", err)
	}
	item, created, err = s.carts.Increment(ctx, cartID, courseID)
	if err != nil {
		return item, false, internal("Failed to add to cart", err)
	}
	return item, created, nil
}

// UpdateQuantity sets an item's quantity. Zero removes the item exactly as
// RemoveItem does; removed reports that case.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID uint, quantity int) (item *models.CartItem, removed bool, err error) {
	if quantity < 0 {
		return nil, false, invalidArg("Quantity must be zero or greater")
	}
	if quantity == 0 {
		return nil, true, s.RemoveItem(ctx, userID, itemID)
	}

	it, err := s.findItem(ctx, userID, itemID)
	if err != nil {
		return nil, false, err
	}
	if err := s.carts.SetQuantity(ctx, it.ID, quantity); err != nil {
		return nil, false, internal("Failed to update cart", err)
	}
	it.Quantity = quantity
	return &it, false, nil
}

// RemoveItem deletes the line and, in the same transaction, the user's
// PENDING enrollments for that course.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uint) error {
	it, err := s.findItem(ctx, userID, itemID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.carts.WithTx(tx).DeleteItem(ctx, it.ID); err != nil {
			return err
		}
		n, err := s.enrollments.WithTx(tx).DeletePending(ctx, userID, []uint{it.CourseID})
		if err != nil {
			return err
		}
		if n > 0 {
			logger.WithCtx(ctx).Info("cart: removed pending enrollments", "user_id", userID, "course_id", it.CourseID, "count", n)
		}
		return nil
	})
	if err != nil {
		return internal("Failed to remove item", err)
	}
	return nil
}

// ClearCart empties the cart and drops the PENDING enrollments for every
// course it held, atomically.
func (s *CartService) ClearCart(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		courseIDs, err := carts.CourseIDs(ctx, userID)
		if err != nil {
			return err
		}
		if _, err := carts.ClearUser(ctx, userID); err != nil {
			return err
		}
		_, err = s.enrollments.WithTx(tx).DeletePending(ctx, userID, courseIDs)
		return err
	})
	if err != nil {
		return internal("Failed to clear cart", err)
	}
	return nil
}

func (s *CartService) findItem(ctx context.Context, userID, itemID uint) (models.CartItem, error) {
	it, err := s.carts.FindItem(ctx, userID, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return it, notFound("Cart item not found")
	}
	if err != nil {
		return it, internal("Failed to load cart item", err)
	}
	return it, nil
}
