// Package routes maps the HTTP API onto controllers.
package routes

import (
	"net/http"
	"time"

	"github.com/carepath-academy/carepath/app/controllers"
	"github.com/carepath-academy/carepath/config"
	"github.com/carepath-academy/carepath/pkg/ctx"
	"github.com/carepath-academy/carepath/pkg/middleware"
	"github.com/carepath-academy/carepath/pkg/rbac"
	"github.com/carepath-academy/carepath/pkg/router"
)

// Handlers is everything RegisterAPI mounts.
type Handlers struct {
	Auth        *controllers.AuthController
	Courses     *controllers.CourseController
	Cart        *controllers.CartController
	Checkout    *controllers.CheckoutController
	Enrollments *controllers.EnrollmentController
	Admin       *controllers.AdminController
	GraphQL     http.HandlerFunc

	// Active rejects tokens of accounts deleted after issue.
	Active middleware.ActiveCheck
}

func RegisterAPI(r *router.Router, h *Handlers) {
	authenticate := middleware.AuthenticateWith(h.Active)
	// Code guessing and credential stuffing targets.
	strict := middleware.RateLimit(config.Int("AUTH_RATE_LIMIT", 10), time.Minute)

	api := r.Group("/api")

	api.Get("/courses", "courses.index", ctx.Wrap(h.Courses.Index))
	api.Get("/courses/{id}", "courses.show", ctx.Wrap(h.Courses.Show))

	authGroup := api.Group("/auth")
	authGroup.Post("/register", "auth.register", ctx.Wrap(h.Auth.Register), strict)
	authGroup.Post("/login", "auth.login", ctx.Wrap(h.Auth.Login), strict)
	authGroup.Get("/google", "auth.google", ctx.Wrap(h.Auth.Google))
	authGroup.Get("/google/callback", "auth.google.callback", ctx.Wrap(h.Auth.GoogleCallback))
	authGroup.Post("/forgot-password", "auth.forgot", ctx.Wrap(h.Auth.ForgotPassword), strict)
	authGroup.Post("/verify-otp", "auth.verify_otp", ctx.Wrap(h.Auth.VerifyOTP), strict)
	authGroup.Post("/reset-password", "auth.reset", ctx.Wrap(h.Auth.ResetPassword), strict)
	authGroup.Get("/me", "auth.me", ctx.Wrap(h.Auth.Me), authenticate)

	// Authenticated by signature, not by token.
	api.Post("/webhooks/stripe", "webhooks.stripe", ctx.Wrap(h.Checkout.Webhook))

	api.Post("/enrollments", "enrollments.submit", ctx.Wrap(h.Enrollments.Submit), middleware.OptionalAuth)

	user := api.Group("", authenticate)
	user.Get("/cart", "cart.show", ctx.Wrap(h.Cart.Show))
	user.Post("/cart", "cart.add", ctx.Wrap(h.Cart.Add))
	user.Put("/cart", "cart.update", ctx.Wrap(h.Cart.Update))
	user.Delete("/cart", "cart.remove", ctx.Wrap(h.Cart.Remove))
	user.Delete("/cart/all", "cart.clear", ctx.Wrap(h.Cart.Clear))
	user.Post("/checkout", "checkout.create", ctx.Wrap(h.Checkout.Create))
	user.Get("/checkout/verify", "checkout.verify", ctx.Wrap(h.Checkout.Verify))
	user.Get("/enrollments", "enrollments.mine", ctx.Wrap(h.Enrollments.Mine))
	user.Get("/view-pdf/{id}", "enrollments.pdf", ctx.Wrap(h.Enrollments.ViewPDF))

	admin := api.Group("/admin", authenticate, rbac.Admin)
	admin.Get("/stats", "admin.stats", ctx.Wrap(h.Admin.Stats))
	admin.Post("/graphql", "admin.graphql", h.GraphQL)
	admin.Get("/ws", "admin.ws", ctx.Wrap(h.Admin.Feed))
	admin.Get("/events", "admin.events", ctx.Wrap(h.Admin.Events))

	admin.Get("/courses", "admin.courses.index", ctx.Wrap(h.Admin.Courses))
	admin.Post("/courses", "admin.courses.create", ctx.Wrap(h.Admin.CreateCourse))
	admin.Get("/courses/{id}", "admin.courses.show", ctx.Wrap(h.Admin.Course))
	admin.Put("/courses/{id}", "admin.courses.update", ctx.Wrap(h.Admin.UpdateCourse))
	admin.Patch("/courses/{id}/status", "admin.courses.status", ctx.Wrap(h.Admin.CourseStatus))
	admin.Delete("/courses/{id}", "admin.courses.delete", ctx.Wrap(h.Admin.DeleteCourse))

	admin.Get("/users", "admin.users.index", ctx.Wrap(h.Admin.Users))
	admin.Patch("/users/{id}/role", "admin.users.role", ctx.Wrap(h.Admin.UserRole))
	admin.Delete("/users/{id}", "admin.users.delete", ctx.Wrap(h.Admin.DeleteUser))

	admin.Get("/enrollments", "admin.enrollments.index", ctx.Wrap(h.Admin.Enrollments))
	admin.Get("/enrollments/export", "admin.enrollments.export", ctx.Wrap(h.Admin.Export))
	admin.Get("/enrollments/{id}", "admin.enrollments.show", ctx.Wrap(h.Admin.Enrollment))
	admin.Put("/enrollments/{id}", "admin.enrollments.update", ctx.Wrap(h.Admin.UpdateEnrollment))
	admin.Patch("/enrollments/{id}/status", "admin.enrollments.status", ctx.Wrap(h.Admin.EnrollmentStatus))
	admin.Delete("/enrollments/{id}", "admin.enrollments.delete", ctx.Wrap(h.Admin.DeleteEnrollment))
}
