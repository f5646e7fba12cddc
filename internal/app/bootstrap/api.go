package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowkey/flowkey-booking/internal/api/router"
	"github.com/flowkey/flowkey-booking/internal/availability"
	appconfig "github.com/flowkey/flowkey-booking/internal/config"
	"github.com/flowkey/flowkey-booking/internal/flow"
	"github.com/flowkey/flowkey-booking/internal/flowkey"
	"github.com/flowkey/flowkey-booking/internal/http/handlers"
	httpmiddleware "github.com/flowkey/flowkey-booking/internal/http/middleware"
	"github.com/flowkey/flowkey-booking/internal/lifecycle"
	"github.com/flowkey/flowkey-booking/internal/notify"
	"github.com/flowkey/flowkey-booking/internal/observability/metrics"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

// API is the wired booking BFF.
type API struct {
	Handler     http.Handler
	Client      *flowkey.Client
	Flows       *flow.Service
	Lifecycle   *lifecycle.Manager
	Feed        *notify.Feed
	FlowStore   *FlowStore
	RateLimiter *httpmiddleware.RateLimiter
}

// BuildAPI wires the FlowKey client, the booking services and the router.
// A nil registerer uses the prometheus default registry.
func BuildAPI(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg prometheus.Registerer) (*API, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	bookingMetrics := metrics.NewBookingMetrics(reg)

	client := flowkey.New(cfg.FlowKeyAPIBaseURL, logger,
		flowkey.WithTimeout(cfg.FlowKeyAPITimeout),
		flowkey.WithMetrics(bookingMetrics),
	)
	resolver := availability.NewResolver(client, cfg.AvailabilityMaxRangeDay, logger)
	store := BuildFlowStore(ctx, cfg, logger)
	flows := flow.NewService(client, resolver, store, logger, flow.WithMetrics(bookingMetrics))
	feed := notify.NewFeed(client, logger)
	manager := lifecycle.NewManager(client, logger,
		lifecycle.WithNotifier(feed),
		lifecycle.WithMetrics(bookingMetrics),
	)
	limiter := httpmiddleware.NewRateLimiter(cfg.PublicRateLimitRPS, cfg.PublicRateLimitBurst)

	handler := router.New(&router.Config{
		Logger:             logger,
		Public:             handlers.NewPublicHandler(flows, resolver, client, logger),
		StaffRequests:      handlers.NewStaffRequestsHandler(manager, logger),
		StaffNotifications: handlers.NewStaffNotificationsHandler(feed, logger),
		RateLimiter:        limiter,
		MetricsHandler:     promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return &API{
		Handler:     handler,
		Client:      client,
		Flows:       flows,
		Lifecycle:   manager,
		Feed:        feed,
		FlowStore:   store,
		RateLimiter: limiter,
	}, nil
}

// JanitorTasks lists the periodic evictions the process needs.
func (a *API) JanitorTasks() map[string]func() int {
	tasks := map[string]func() int{"rate_limiter": a.RateLimiter.Evict}
	if a.FlowStore != nil && a.FlowStore.Memory != nil {
		tasks["flow_drafts"] = a.FlowStore.Memory.Sweep
	}
	return tasks
}
