package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flowkey/flowkey-booking/internal/booking"
	appconfig "github.com/flowkey/flowkey-booking/internal/config"
	"github.com/flowkey/flowkey-booking/internal/flow"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.New("error"), false); client != nil {
		t.Fatalf("expected nil client without redis addr")
	}
}

func TestBuildRedisClientVerifyFailureReturnsNil(t *testing.T) {
	cfg := &appconfig.Config{RedisAddr: "127.0.0.1:1"}
	if client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildFlowStoreDefaultsToMemory(t *testing.T) {
	store := BuildFlowStore(context.Background(), &appconfig.Config{FlowStore: "memory"}, logging.New("error"))
	if store.Memory == nil || store.Redis != nil {
		t.Fatalf("expected memory store, got %+v", store)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestBuildFlowStoreUsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{FlowStore: "redis", RedisAddr: mr.Addr(), FlowTTL: time.Minute}

	store := BuildFlowStore(context.Background(), cfg, logging.New("error"))
	defer store.Close()
	if store.Redis == nil || store.Memory != nil {
		t.Fatalf("expected redis store")
	}

	f := flow.New("flow-1", booking.Business{Slug: "splash"}, time.Now())
	if err := store.Save(context.Background(), f); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("flowkey:flow:flow-1") {
		t.Fatalf("expected draft key in redis")
	}
}

func TestBuildFlowStoreFallsBackWhenRedisDown(t *testing.T) {
	cfg := &appconfig.Config{FlowStore: "redis", RedisAddr: "127.0.0.1:1"}
	store := BuildFlowStore(context.Background(), cfg, logging.New("error"))
	if store.Memory == nil {
		t.Fatalf("expected memory fallback")
	}
}

func TestBuildAPIRequiresConfig(t *testing.T) {
	if _, err := BuildAPI(context.Background(), nil, logging.New("error"), prometheus.NewRegistry()); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildAPIServesHealthAndMetrics(t *testing.T) {
	cfg := &appconfig.Config{
		FlowKeyAPIBaseURL:    "http://127.0.0.1:1",
		FlowKeyAPITimeout:    time.Second,
		FlowStore:            "memory",
		PublicRateLimitRPS:   10,
		PublicRateLimitBurst: 10,
	}
	api, err := BuildAPI(context.Background(), cfg, logging.New("error"), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("build api: %v", err)
	}

	rr := httptest.NewRecorder()
	api.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", rr.Code)
	}

	// An unreachable upstream surfaces as a 502 and is counted.
	rr = httptest.NewRecorder()
	api.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/public/splash/services", nil))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for unreachable upstream, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	api.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), `flowkey_upstream_requests_total{operation="list_services",outcome="transport"} 1`) {
		t.Fatalf("expected transport outcome in metrics:\n%s", rr.Body.String())
	}

	tasks := api.JanitorTasks()
	if _, ok := tasks["flow_drafts"]; !ok {
		t.Fatalf("expected flow draft sweep task")
	}
	if _, ok := tasks["rate_limiter"]; !ok {
		t.Fatalf("expected rate limiter eviction task")
	}
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 8)
	done := make(chan struct{})
	go func() {
		RunJanitor(ctx, 5*time.Millisecond, logging.New("error"), map[string]func() int{
			"sweep": func() int {
				select {
				case calls <- struct{}{}:
				default:
				}
				return 1
			},
		})
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatalf("janitor task never ran")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("janitor did not stop")
	}
}
