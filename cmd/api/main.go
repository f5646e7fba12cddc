package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/flowkey/flowkey-booking/internal/app/bootstrap"
	appconfig "github.com/flowkey/flowkey-booking/internal/config"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

const janitorInterval = time.Minute

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting flowkey booking API",
		"env", cfg.Env,
		"port", cfg.Port,
		"flowkey_api", cfg.FlowKeyAPIBaseURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := bootstrap.BuildAPI(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("failed to build api", "error", err)
		os.Exit(1)
	}
	defer api.FlowStore.Close()

	go bootstrap.RunJanitor(ctx, janitorInterval, logger, api.JanitorTasks())

	srv := newServer(cfg, api.Handler)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// submissions wait on the FlowKey API
		WriteTimeout: cfg.FlowKeyAPITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
