package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/gridflow/pkg/cache"
	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/pipeline"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, Options{})
}

func newTestServerWith(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := pipeline.NewRunner(fc, nil, nil)
	t.Cleanup(func() { _ = runner.Close() })
	srv := httptest.NewServer(New(runner, opts))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/layout", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestStrategies(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/v1/strategies")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Strategies []string `json:"strategies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"stack", "masonry", "lua"} {
		found := false
		for _, s := range body.Strategies {
			found = found || s == want
		}
		if !found {
			t.Errorf("strategy %q not listed in %v", want, body.Strategies)
		}
	}
}

func TestLayout(t *testing.T) {
	srv := newTestServer(t)
	req := `{"markup": "<div><div>a</div><div>b</div><div>c</div></div>", "gap": 2}`

	resp := post(t, srv, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body LayoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Stats.Items != 3 || len(body.Status.Items) != 3 {
		t.Errorf("items = %d/%d, want 3", body.Stats.Items, len(body.Status.Items))
	}
	if !strings.Contains(body.HTML, "height: 58px") {
		t.Errorf("html = %s", body.HTML)
	}
	if body.RequestID == "" || body.Cache.StatusHit {
		t.Errorf("request_id = %q, status_hit = %v", body.RequestID, body.Cache.StatusHit)
	}

	again := post(t, srv, req)
	var cached LayoutResponse
	if err := json.NewDecoder(again.Body).Decode(&cached); err != nil {
		t.Fatal(err)
	}
	if !cached.Cache.StatusHit || cached.HTML != body.HTML {
		t.Errorf("second request should restore the cached status")
	}
}

func TestLayoutErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   errors.Code
	}{
		{"malformed json", `{"markup":`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"unknown field", `{"markup": "<div></div>", "colour": "red"}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"missing markup", `{}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"unknown strategy", `{"markup": "<div></div>", "strategy": "justified"}`, http.StatusBadRequest, errors.ErrCodeInvalidStrategy},
		{"negative gap", `{"markup": "<div></div>", "gap": -3}`, http.StatusBadRequest, errors.ErrCodeInvalidOption},
		{"lua script file", `{"markup": "<div><div>a</div></div>", "strategy": "lua", "strategy_params": {"file": "/etc/hostname"}}`, http.StatusBadRequest, errors.ErrCodeInvalidStrategy},
	}
	srv := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var body errorBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Error.Code != tt.code {
				t.Errorf("code = %s, want %s", body.Error.Code, tt.code)
			}
		})
	}
}

func TestLayoutRejectsLocalFiles(t *testing.T) {
	srv := newTestServer(t)
	resp := post(t, srv, `{"markup": "<div><div><img src=\"/etc/hostname\"></div><div>b</div></div>", "lazy": "wait"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body LayoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Stats.Pending != 0 {
		t.Errorf("pending = %d, want the local image to fail fast", body.Stats.Pending)
	}
}

func TestLayoutAbortsRunawayScript(t *testing.T) {
	srv := newTestServerWith(t, Options{Timeout: 200 * time.Millisecond})
	body := `{"markup": "<div><div>a</div><div>b</div></div>", "strategy": "lua",
		"strategy_params": {"script": "function layout(i, d, o, e) while true do end end"}}`

	done := make(chan *http.Response, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/v1/layout", "application/json", strings.NewReader(body))
		if err != nil {
			done <- nil
			return
		}
		done <- resp
	}()
	select {
	case resp := <-done:
		if resp == nil {
			t.Fatal("request failed")
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200 with the fallback layout", resp.StatusCode)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("layout request did not finish")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeInvalidProperty, http.StatusBadRequest},
		{errors.ErrCodeContent, http.StatusUnprocessableEntity},
		{errors.ErrCodeNotFound, http.StatusNotFound},
		{errors.ErrCodeNetwork, http.StatusBadGateway},
		{errors.ErrCodeTimeout, http.StatusGatewayTimeout},
		{errors.ErrCodeDestroyed, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := httpStatus(tt.code); got != tt.want {
			t.Errorf("httpStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
