package testkit

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/healthz":
		w.Write([]byte(`{"status":"ok","uptime":12}`))
	case "/echo":
		var body any
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"auth": r.Header.Get("Authorization"), "body": body})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
})

func TestRunDir(t *testing.T) {
	RunDir(t, testHandler, "testdata", map[string]string{"TOKEN": "abc"})
}

func TestLoadScenarioAlias(t *testing.T) {
	s, err := LoadScenario("testdata/02_echo_token.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, s.ExpectedCode)
	assert.Equal(t, "POST", s.RequestMethod)
}

func TestDiffJSONSubset(t *testing.T) {
	var exp, act any
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":{"c":"x"}}`), &exp))
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":{"c":"x","d":true},"e":[]}`), &act))
	assert.Empty(t, DiffJSON("", exp, act))

	require.NoError(t, json.Unmarshal([]byte(`{"a":2}`), &act))
	diffs := DiffJSON("", exp, act)
	assert.Len(t, diffs, 2)
}

func TestNewDBIsMigrated(t *testing.T) {
	db := NewDB(t)
	for _, table := range []string{"users", "courses", "carts", "cart_items", "enrollments", "payment_confirmations", "kv_entries", "failed_jobs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
