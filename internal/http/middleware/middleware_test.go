package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/flowkey/flowkey-booking/internal/session"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("burst should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("third request within the same instant should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("other IPs have their own bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("bucket should refill after one second")
	}

	now = now.Add(11 * time.Minute)
	if removed := rl.Evict(); removed != 2 {
		t.Fatalf("expected 2 idle visitors evicted, got %d", removed)
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(0.5, 1)
	h := rl.Middleware(okHandler(nil))

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/public/splash/services", nil)
	req.RemoteAddr = "192.0.2.7:5123"
	h.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", second.Code)
	}
	if got := second.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q", got)
	}
	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &body); err != nil || body.Error.Kind != "rate_limited" {
		t.Fatalf("unexpected body %s (%v)", second.Body.String(), err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 50; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d limited with limiting disabled", i)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5123"
	if got := clientIP(req); got != "192.0.2.7" {
		t.Fatalf("clientIP = %q", got)
	}
	req.Header.Set("X-Real-Ip", "203.0.113.9")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("clientIP = %q", got)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithOptions(logging.Options{Level: "info", Output: &buf})
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("X-Request-ID = %q", got)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log is not JSON: %v (%s)", err, buf.String())
	}
	if entry["status"] != float64(http.StatusTeapot) || entry["request_id"] != "req-123" {
		t.Fatalf("unexpected log entry %v", entry)
	}
}

func TestRequestLogger_UsesChiRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithOptions(logging.Options{Level: "info", Output: &buf})
	h := RequestLogger(logger)(okHandler(nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req = req.WithContext(context.WithValue(req.Context(), chimw.RequestIDKey, "chi-7"))
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "chi-7" {
		t.Fatalf("X-Request-ID = %q", got)
	}
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestStaffSession(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var got *session.Session
	h := StaffSession(func() time.Time { return now })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = session.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"expired", "Bearer " + signedToken(t, jwt.MapClaims{"user_id": 1, "exp": now.Add(-time.Minute).Unix()}), http.StatusUnauthorized},
		{"valid", "Bearer " + signedToken(t, jwt.MapClaims{"user_id": 1, "business_id": "7", "exp": now.Add(time.Hour).Unix()}), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/staff/booking-requests", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK {
				if got == nil || got.BusinessID != "7" {
					t.Fatalf("session not stored: %+v", got)
				}
			} else if !strings.Contains(rec.Body.String(), `"unauthorized"`) {
				t.Fatalf("unexpected body %s", rec.Body.String())
			}
		})
	}
}

func TestBusinessSlug(t *testing.T) {
	var slug string
	r := chi.NewRouter()
	r.Route("/public/{slug}", func(r chi.Router) {
		r.Use(BusinessSlug)
		r.Get("/services", func(w http.ResponseWriter, r *http.Request) {
			slug, _ = BusinessSlugFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public/Splash-Swim/services", nil))
	if rec.Code != http.StatusOK || slug != "splash-swim" {
		t.Fatalf("status = %d slug = %q", rec.Code, slug)
	}
}

func TestBusinessSlugFromContext_EmptyOrMissing(t *testing.T) {
	if _, ok := BusinessSlugFromContext(context.Background()); ok {
		t.Fatalf("expected missing slug to return false")
	}
	if _, ok := BusinessSlugFromContext(WithBusinessSlug(context.Background(), "")); ok {
		t.Fatalf("expected empty slug to return false")
	}
	got, ok := BusinessSlugFromContext(WithBusinessSlug(context.Background(), "splash-swim"))
	if !ok || got != "splash-swim" {
		t.Fatalf("got %q, %v", got, ok)
	}
}
