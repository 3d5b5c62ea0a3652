package controllers

import (
	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/ctx"
)

type CartController struct {
	carts *services.CartService
}

func NewCartController(carts *services.CartService) *CartController {
	return &CartController{carts: carts}
}

type addItemInput struct {
	CourseID uint `json:"courseId" validate:"required,gt=0"`
}

type updateItemInput struct {
	CartItemID uint `json:"cartItemId" validate:"required,gt=0"`
	Quantity   *int `json:"quantity"   validate:"required"`
}

type removeItemInput struct {
	CartItemID uint `json:"cartItemId" validate:"required,gt=0"`
}

// Show handles GET /api/cart.
func (h *CartController) Show(c *ctx.Context) {
	view, err := h.carts.GetCart(c.Context(), c.UserID())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(view)
}

// Add handles POST /api/cart: 201 for a new line, 200 when incremented.
func (h *CartController) Add(c *ctx.Context) {
	var in addItemInput
	if !c.BindJSON(&in) {
		return
	}
	item, created, err := h.carts.AddItem(c.Context(), c.UserID(), in.CourseID)
	if err != nil {
		fail(c, err)
		return
	}
	if created {
		c.Created(item)
		return
	}
	c.Success(item)
}

// Update handles PUT /api/cart. Quantity 0 removes the line.
func (h *CartController) Update(c *ctx.Context) {
	var in updateItemInput
	if !c.BindJSON(&in) {
		return
	}
	item, removed, err := h.carts.UpdateQuantity(c.Context(), c.UserID(), in.CartItemID, *in.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	if removed {
		c.Success(map[string]any{"success": true, "removed": true})
		return
	}
	c.Success(item)
}

// Remove handles DELETE /api/cart.
func (h *CartController) Remove(c *ctx.Context) {
	var in removeItemInput
	if !c.BindJSON(&in) {
		return
	}
	if err := h.carts.RemoveItem(c.Context(), c.UserID(), in.CartItemID); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]any{"success": true})
}

// Clear handles DELETE /api/cart/all.
func (h *CartController) Clear(c *ctx.Context) {
	if err := h.carts.ClearCart(c.Context(), c.UserID()); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]any{"success": true})
}
