// Package ctx provides a request context for CarePath handlers.
//
// Instead of accepting (http.ResponseWriter, *http.Request), a handler
// receives a single *Context with helpers for params, binding, the caller's
// identity and the JSON envelope:
//
//	func (h *CourseController) Show(c *ctx.Context) {
//	    id, ok := c.ParamUint("id")
//	    if !ok {
//	        return // 400 already sent
//	    }
//	    ...
//	    c.Success(course)
//	}
//
//	api.Get("/courses/{id}", "courses.show", ctx.Wrap(h.Show))
package ctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/carepath-academy/carepath/pkg/auth"
	"github.com/carepath-academy/carepath/pkg/bind"
	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/middleware"
	"github.com/carepath-academy/carepath/pkg/orm"
	"github.com/carepath-academy/carepath/pkg/response"
	"github.com/carepath-academy/carepath/pkg/validate"
)

// HandlerFunc is the context-aware handler signature.
type HandlerFunc func(c *Context)

// Wrap converts a HandlerFunc to a standard http.HandlerFunc.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// ─── Context ──────────────────────────────────────────────────────────────────

// Context wraps a request/response pair.
type Context struct {
	W      http.ResponseWriter
	R      *http.Request
	mu     sync.RWMutex
	store  map[string]any
	status int // written status code (0 = not written yet)
}

var pool = sync.Pool{
	New: func() any { return &Context{store: make(map[string]any)} },
}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	c.W = w
	c.R = r
	c.status = 0
	clear(c.store)
	return c
}

func release(c *Context) {
	c.W = nil
	c.R = nil
	pool.Put(c)
}

// ─── Request helpers ──────────────────────────────────────────────────────────

// Param returns a URL path parameter.
func (c *Context) Param(key string) string {
	return chi.URLParam(c.R, key)
}

// ParamUint parses a numeric path parameter. On failure it sends a 400 and
// returns false.
func (c *Context) ParamUint(key string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil || n == 0 {
		c.Error(http.StatusBadRequest, fmt.Sprintf("Invalid %s", key))
		return 0, false
	}
	return uint(n), true
}

func (c *Context) Query(key string) string {
	return c.R.URL.Query().Get(key)
}

// DefaultQuery returns a query-string value, or def if it is empty.
func (c *Context) DefaultQuery(key, def string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return def
}

// Page reads ?page= and ?limit=.
func (c *Context) Page() orm.Page {
	return orm.ParsePage(c.Query("page"), c.Query("limit"))
}

func (c *Context) Header(key string) string {
	return c.R.Header.Get(key)
}

// Body reads and returns the raw request body bytes. The body can only be
// read once; webhook handlers need it unparsed for signature checks.
func (c *Context) Body(limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(c.R.Body, limit))
}

func (c *Context) ClientIP() string { return middleware.ClientIP(c.R) }

// Context returns the underlying request context.
func (c *Context) Context() context.Context { return c.R.Context() }

// Logger returns the request-scoped logger.
func (c *Context) Logger() *slog.Logger { return logger.WithCtx(c.R.Context()) }

// ─── Identity ─────────────────────────────────────────────────────────────────

// Claims returns the authenticated caller, if any.
func (c *Context) Claims() (*auth.Claims, bool) {
	return middleware.ClaimsFromCtx(c.R.Context())
}

// UserID returns the caller's id, or 0 for anonymous requests.
func (c *Context) UserID() uint {
	id, _ := middleware.UserIDFromCtx(c.R)
	return id
}

func (c *Context) IsAdmin() bool {
	role, ok := middleware.RoleFromCtx(c.R)
	return ok && role == "ADMIN"
}

// ─── Per-request store ────────────────────────────────────────────────────────

func (c *Context) Set(key string, val any) {
	c.mu.Lock()
	c.store[key] = val
	c.mu.Unlock()
}

func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	v, ok := c.store[key]
	c.mu.RUnlock()
	return v, ok
}

// ─── Binding / Validation ─────────────────────────────────────────────────────

// BindJSON decodes the JSON body into dest and validates it. On failure the
// 400 response has already been written and BindJSON returns false.
//
//	var in AddItemInput
//	if !c.BindJSON(&in) {
//	    return
//	}
func (c *Context) BindJSON(dest any) bool {
	errs, err := bind.JSON(c.R, dest)
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return false
	}
	if validate.HasErrors(errs) {
		c.ValidationError(errs)
		return false
	}
	return true
}

// ─── Response helpers ─────────────────────────────────────────────────────────

func (c *Context) SetHeader(key, value string) {
	c.W.Header().Set(key, value)
}

// Status writes just the HTTP status code with an empty body.
func (c *Context) Status(code int) {
	c.status = code
	c.W.WriteHeader(code)
}

// JSON writes v verbatim (no envelope).
func (c *Context) JSON(code int, v any) {
	c.status = code
	response.JSON(c.W, code, v)
}

// Success sends {"status":200,"data":...}.
func (c *Context) Success(data any) {
	c.JSON(http.StatusOK, response.Envelope{Status: http.StatusOK, Data: data})
}

// Created sends a 201 envelope.
func (c *Context) Created(data any) {
	c.JSON(http.StatusCreated, response.Envelope{Status: http.StatusCreated, Data: data})
}

// Paginated sends a page of items with its metadata.
func (c *Context) Paginated(items any, p orm.Pagination) {
	c.Success(map[string]any{"items": items, "pagination": p})
}

// Error sends {"status":code,"error":message}.
func (c *Context) Error(code int, message string) {
	c.JSON(code, response.Envelope{Status: code, Error: message})
}

// ValidationError sends a 400 with field-level errors.
func (c *Context) ValidationError(errs map[string]string) {
	c.JSON(http.StatusBadRequest, response.Envelope{
		Status: http.StatusBadRequest,
		Error:  "Validation failed",
		Errors: errs,
	})
}

func (c *Context) Unauthorized() { c.Error(http.StatusUnauthorized, "Unauthorized") }
func (c *Context) Forbidden()    { c.Error(http.StatusForbidden, "Forbidden") }
func (c *Context) NotFound()     { c.Error(http.StatusNotFound, "Not found") }

// Data writes a binary body (PDF, XLSX) with the given content type.
func (c *Context) Data(code int, contentType string, body []byte) {
	c.W.Header().Set("Content-Type", contentType)
	c.W.Header().Set("Content-Length", strconv.Itoa(len(body)))
	c.Status(code)
	c.W.Write(body) //nolint:errcheck
}

// Redirect sends an HTTP redirect response.
func (c *Context) Redirect(code int, url string) {
	c.status = code
	http.Redirect(c.W, c.R, url, code)
}

// WrittenStatus returns the status written so far, or 0.
func (c *Context) WrittenStatus() int { return c.status }
