// Package response writes the JSON envelope used by every endpoint:
//
//	{"status":200,"data":{...}}
//	{"status":400,"error":"Cart is empty"}
//	{"status":400,"error":"Validation failed","errors":{"email":"..."}}
package response

import (
	"encoding/json"
	"net/http"

	"github.com/carepath-academy/carepath/pkg/orm"
)

// Envelope is exported so tests can decode responses.
type Envelope struct {
	Status int               `json:"status"`
	Data   any               `json:"data,omitempty"`
	Error  string            `json:"error,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// JSON writes v verbatim with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// Success sends a 200 JSON response with data.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Status: http.StatusOK, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{Status: http.StatusCreated, Data: data})
}

// Error sends a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Status: status, Error: message})
}

// ValidationError sends a 400 with a field-level error map.
func ValidationError(w http.ResponseWriter, errs map[string]string) {
	JSON(w, http.StatusBadRequest, Envelope{
		Status: http.StatusBadRequest,
		Error:  "Validation failed",
		Errors: errs,
	})
}

// Paginated sends a 200 response with items and pagination metadata.
func Paginated(w http.ResponseWriter, items any, p orm.Pagination) {
	Success(w, map[string]any{
		"items":      items,
		"pagination": p,
	})
}

func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(w http.ResponseWriter) {
	Error(w, http.StatusForbidden, "Forbidden")
}

func NotFound(w http.ResponseWriter) {
	Error(w, http.StatusNotFound, "Not found")
}
