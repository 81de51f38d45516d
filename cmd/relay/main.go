// Package main runs the websocket relay: authenticated clients connect to
// /ws and receive every event published on the broadcast channel.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/webapp-api/internal/config"
	"github.com/phrazzld/webapp-api/internal/metrics"
	"github.com/phrazzld/webapp-api/internal/platform/logger"
	platformredis "github.com/phrazzld/webapp-api/internal/platform/redis"
	"github.com/phrazzld/webapp-api/internal/relay"
	"github.com/phrazzld/webapp-api/internal/service/auth"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("relay exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	client, err := platformredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error("Error closing redis connection", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	sink := metrics.NewPrometheusSink(registry)

	events := platformredis.NewSubscriber(client, cfg.Redis.EventsChannel)
	subscriber := relay.SubscriberFunc(func(ctx context.Context) (relay.Subscription, error) {
		sub, err := events.Subscribe(ctx)
		if err != nil {
			return nil, err
		}
		return sub, nil
	})

	ws := relay.NewHandler(subscriber, jwtService, sink, log, relay.Options{
		CookieName:     cfg.Auth.CookieName,
		ReceiveTimeout: cfg.Relay.ReceiveTimeout,
		WriteTimeout:   cfg.Relay.WriteTimeout,
		CheckOrigin:    originChecker(cfg.Server.CORSAllowedOrigins),
	})

	var metricsPath string
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Relay.Port),
		Handler:           relay.NewRouter(ws, metricsPath, metricsHandler),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting relay", "port", cfg.Relay.Port, "channel", cfg.Redis.EventsChannel)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("relay server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down relay...")

		// Shutdown does not wait for hijacked websocket connections; their
		// watchers exit once the process closes the sockets.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// originChecker allows same-origin handshakes, plus the configured CORS
// origins when there are any.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		return "http://"+r.Host == origin || "https://"+r.Host == origin
	}
}
