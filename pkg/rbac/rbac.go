// Package rbac provides role-based access control middleware.
package rbac

import (
	"net/http"

	"github.com/carepath-academy/carepath/pkg/middleware"
	"github.com/carepath-academy/carepath/pkg/response"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// HasRole returns middleware that allows access only to users with one of
// the given roles. middleware.Authenticate must run first.
func HasRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := middleware.UserIDFromCtx(r); !ok {
				response.Unauthorized(w)
				return
			}
			role, _ := middleware.RoleFromCtx(r)
			if !allowed[role] {
				response.Forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Admin guards the /api/admin tree.
var Admin = HasRole(RoleAdmin)

// IsAdmin reports whether the authenticated caller is an administrator.
func IsAdmin(r *http.Request) bool {
	role, ok := middleware.RoleFromCtx(r)
	return ok && role == RoleAdmin
}
