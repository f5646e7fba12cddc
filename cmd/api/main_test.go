package main

import (
	"net/http"
	"testing"
	"time"

	appconfig "github.com/flowkey/flowkey-booking/internal/config"
)

func TestNewServerTimeouts(t *testing.T) {
	cfg := &appconfig.Config{Port: "9090", FlowKeyAPITimeout: 10 * time.Second}
	srv := newServer(cfg, http.NotFoundHandler())

	if srv.Addr != ":9090" {
		t.Fatalf("expected addr :9090, got %q", srv.Addr)
	}
	if srv.WriteTimeout <= cfg.FlowKeyAPITimeout {
		t.Fatalf("write timeout %s must exceed upstream timeout %s", srv.WriteTimeout, cfg.FlowKeyAPITimeout)
	}
	if srv.ReadHeaderTimeout == 0 {
		t.Fatalf("expected read header timeout")
	}
}
