package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/carepath-academy/carepath/pkg/auth"
	"github.com/carepath-academy/carepath/pkg/response"
)

type claimsKey struct{}

// ActiveCheck reports an error when the token's user may no longer sign in
// (deleted account, etc).
type ActiveCheck func(ctx context.Context, userID uint) error

// Authenticate rejects requests without a valid bearer token.
var Authenticate = AuthenticateWith(nil)

// AuthenticateWith is Authenticate plus a per-request account check.
func AuthenticateWith(check ActiveCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r)
			if token == "" {
				response.Unauthorized(w)
				return
			}

			claims, err := auth.ValidateToken(token)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			if check != nil {
				if err := check(r.Context(), claims.UserID); err != nil {
					response.Unauthorized(w)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches claims when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearer(r); token != "" {
			if claims, err := auth.ValidateToken(token); err == nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// bearer reads the Authorization header, falling back to ?token= for
// WebSocket and EventSource connections, where browsers cannot set headers.
func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFromCtx(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok && c != nil
}

func UserIDFromCtx(r *http.Request) (uint, bool) {
	c, ok := ClaimsFromCtx(r.Context())
	if !ok {
		return 0, false
	}
	return c.UserID, true
}

func RoleFromCtx(r *http.Request) (string, bool) {
	c, ok := ClaimsFromCtx(r.Context())
	if !ok {
		return "", false
	}
	return c.Role, true
}
