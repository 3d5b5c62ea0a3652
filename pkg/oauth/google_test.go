package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"g-1","email":"kim@example.com","email_verified":true,"name":"Kim Lee"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthCodeURLCarriesState(t *testing.T) {
	g := NewGoogle("client", "secret", "http://app.test/api/auth/google/callback")
	u, err := url.Parse(g.AuthCodeURL("st-1"))
	require.NoError(t, err)
	assert.Equal(t, "st-1", u.Query().Get("state"))
	assert.Equal(t, "client", u.Query().Get("client_id"))
	assert.Contains(t, u.Query().Get("scope"), "email")
}

func TestExchange(t *testing.T) {
	srv := fakeGoogle(t)
	g := NewGoogle("client", "secret", "http://app.test/cb",
		WithEndpoints(srv.URL+"/auth", srv.URL+"/token", srv.URL+"/userinfo"))

	u, err := g.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "kim@example.com", u.Email)
	assert.Equal(t, "Kim Lee", u.Name)

	_, err = g.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestExchangeRequiresCredentials(t *testing.T) {
	_, err := NewGoogle("", "", "").Exchange(context.Background(), "code")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
