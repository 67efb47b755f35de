package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/eigenbahn/dynix/pkg/metrics"
)

func TestMetricsRecordsRequests(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stats" {
			w.Write([]byte("{}"))
			return
		}
		http.NotFound(w, r)
	}))

	for _, path := range []string{"/stats", "/stats", "/wp-admin", "/.env"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/stats", "200")); got != 2 {
		t.Errorf("expected 2 /stats requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "other", "404")); got != 2 {
		t.Errorf("expected unknown paths folded into other, got %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsInFlight); got != 0 {
		t.Errorf("expected no requests in flight, got %v", got)
	}
}

func TestDeadline(t *testing.T) {
	var hasDeadline bool
	h := Deadline(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if !hasDeadline {
		t.Fatal("expected the request context to carry a deadline")
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := CORS([]string{"https://dash.example.org"})(next)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantCode   int
		wantHeader string
	}{
		{name: "no origin", method: http.MethodGet, wantCode: http.StatusOK},
		{name: "allowed", method: http.MethodGet, origin: "https://dash.example.org", wantCode: http.StatusOK, wantHeader: "https://dash.example.org"},
		{name: "preflight", method: http.MethodOptions, origin: "https://dash.example.org", wantCode: http.StatusNoContent, wantHeader: "https://dash.example.org"},
		{name: "foreign", method: http.MethodGet, origin: "https://evil.example.com", wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/stats", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("expected allow origin %q, got %q", tt.wantHeader, got)
			}
		})
	}
}

func TestRateLimitPerClient(t *testing.T) {
	l := NewLimiter(1, 2)
	h := RateLimit(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	get := func(path, addr string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := get("/stats", "10.0.0.1:5000"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := get("/stats", "10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 once the burst is spent, got %d", code)
	}
	if code := get("/stats", "10.0.0.2:5000"); code != http.StatusOK {
		t.Errorf("expected another client to be served, got %d", code)
	}
	if code := get("/health/ready", "10.0.0.1:5000"); code != http.StatusOK {
		t.Errorf("expected health probes to bypass the limit, got %d", code)
	}
}

func TestLimiterPrune(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(1, 1)
	l.now = func() time.Time { return now }
	l.Allow("a")
	now = now.Add(time.Minute)
	l.Allow("b")

	now = now.Add(idleAfter - 30*time.Second)
	if n := l.Prune(); n != 1 {
		t.Fatalf("expected 1 idle client pruned, got %d", n)
	}
	if _, ok := l.clients["b"]; !ok {
		t.Error("recent client was pruned")
	}
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/stats/{window}", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/stats/day", "/stats/week", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/stats/{window}", "200")); got != 2 {
		t.Errorf("expected 2 requests under the route pattern, got %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "other", "404")); got != 1 {
		t.Errorf("expected the unrouted path folded into other, got %v", got)
	}
}
