package testkit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carepath-academy/carepath/pkg/auth"
)

// Token issues an access token for the given identity.
func Token(t testing.TB, userID uint, role, email string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, role, email)
	if err != nil {
		t.Fatalf("testkit: generate token: %v", err)
	}
	return tok
}

// Request builds a request with body encoded as JSON (nil for none) and an
// optional bearer token.
func Request(t testing.TB, method, target string, body any, token string) *http.Request {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("testkit: encode body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// Serve runs req through h and returns the recorder.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// Envelope mirrors the JSON response envelope with Data left raw.
type Envelope struct {
	Status int               `json:"status"`
	Data   json.RawMessage   `json:"data"`
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors"`
}

// Decode parses the envelope and, when dest is non-nil, its data.
func Decode(t testing.TB, rec *httptest.ResponseRecorder, dest any) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("testkit: decode response %q: %v", rec.Body.String(), err)
	}
	if dest != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			t.Fatalf("testkit: decode data %s: %v", env.Data, err)
		}
	}
	return env
}
