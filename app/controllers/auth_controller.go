package controllers

import (
	"net/http"

	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/ctx"
)

type AuthController struct {
	auth   *services.AuthService
	resets *services.PasswordResetService
}

func NewAuthController(auth *services.AuthService, resets *services.PasswordResetService) *AuthController {
	return &AuthController{auth: auth, resets: resets}
}

// Register handles POST /api/auth/register.
func (h *AuthController) Register(c *ctx.Context) {
	var in services.RegisterInput
	if !c.BindJSON(&in) {
		return
	}
	res, err := h.auth.Register(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(res)
}

// Login handles POST /api/auth/login.
func (h *AuthController) Login(c *ctx.Context) {
	var in services.LoginInput
	if !c.BindJSON(&in) {
		return
	}
	res, err := h.auth.Login(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(res)
}

// Me handles GET /api/auth/me.
func (h *AuthController) Me(c *ctx.Context) {
	u, err := h.auth.Me(c.Context(), c.UserID())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(u)
}

// Google handles GET /api/auth/google by redirecting to the consent page.
func (h *AuthController) Google(c *ctx.Context) {
	url, err := h.auth.GoogleAuthURL(c.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback handles GET /api/auth/google/callback.
func (h *AuthController) GoogleCallback(c *ctx.Context) {
	if e := c.Query("error"); e != "" {
		c.Error(http.StatusUnauthorized, "Google sign-in was cancelled")
		return
	}
	res, err := h.auth.GoogleCallback(c.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(res)
}

// ForgotPassword handles POST /api/auth/forgot-password. The reply is the
// same whether or not the account exists.
func (h *AuthController) ForgotPassword(c *ctx.Context) {
	var in services.ForgotPasswordInput
	if !c.BindJSON(&in) {
		return
	}
	if err := h.resets.ForgotPassword(c.Context(), in.Email); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]any{"message": "If the email is registered, a reset code has been sent"})
}

// VerifyOTP handles POST /api/auth/verify-otp.
func (h *AuthController) VerifyOTP(c *ctx.Context) {
	var in services.VerifyOTPInput
	if !c.BindJSON(&in) {
		return
	}
	token, err := h.resets.VerifyOTP(c.Context(), in.Email, in.OTP)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]any{"resetToken": token})
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *AuthController) ResetPassword(c *ctx.Context) {
	var in services.ResetPasswordInput
	if !c.BindJSON(&in) {
		return
	}
	if err := h.resets.ResetPassword(c.Context(), in.Email, in.ResetToken, in.NewPassword); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]any{"success": true})
}
