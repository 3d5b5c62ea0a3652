package testkit

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

// Run executes a single scenario file against handler.
func Run(t *testing.T, handler http.Handler, scenarioPath string, vars map[string]string) {
	t.Helper()

	s, err := LoadScenario(scenarioPath)
	if err != nil {
		t.Fatalf("testkit: load scenario %q: %v", scenarioPath, err)
	}
	t.Run(s.Name, func(t *testing.T) {
		runScenario(t, handler, s, vars)
	})
}

// RunDir runs every scenario in dir as a subtest, in file-name order, so
// later files may rely on state left by earlier ones.
func RunDir(t *testing.T, handler http.Handler, dir string, vars map[string]string) {
	t.Helper()

	scenarios, errs := LoadAllFromDir(dir)
	for _, err := range errs {
		t.Errorf("%v", err)
	}
	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			runScenario(t, handler, s, vars)
		})
	}
}

func runScenario(t *testing.T, handler http.Handler, s *Scenario, vars map[string]string) {
	t.Helper()
	expand := func(in string) string {
		return os.Expand(in, func(k string) string { return vars[k] })
	}

	raw, err := s.requestBody()
	if err != nil {
		t.Fatalf("[%s] read request body: %v", s.Name, err)
	}
	var body io.Reader
	if len(raw) > 0 {
		body = bytes.NewReader([]byte(expand(string(raw))))
	}

	req := httptest.NewRequest(strings.ToUpper(s.RequestMethod), expand(s.RequestURL), body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.Headers {
		req.Header.Set(k, expand(v))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	AssertStatusCode(t, s, rec.Code)

	expected, err := s.expectedBody()
	if err != nil {
		t.Errorf("[%s] read expected body: %v", s.Name, err)
		return
	}
	AssertJSONBody(t, s, []byte(expand(string(expected))), rec.Body.Bytes())
}
