package reqid_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/carepath-academy/carepath/pkg/reqid"
)

func serve(header string) (seen string, rec *httptest.ResponseRecorder) {
	h := reqid.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqid.FromCtx(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(reqid.Header, header)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec
}

func TestGeneratesUUID(t *testing.T) {
	seen, rec := serve("")
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(reqid.Header))
}

func TestReusesUpstreamID(t *testing.T) {
	seen, _ := serve("edge-123")
	assert.Equal(t, "edge-123", seen)
}

func TestRejectsOversizedUpstreamID(t *testing.T) {
	seen, _ := serve(strings.Repeat("x", 200))
	assert.NotEqual(t, strings.Repeat("x", 200), seen)
	assert.Len(t, seen, 36)
}
