package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phrazzld/webapp-api/internal/api"
	apiMiddleware "github.com/phrazzld/webapp-api/internal/api/middleware"
	"github.com/phrazzld/webapp-api/internal/timegate"
)

const requestTimeout = 30 * time.Second

// setupRouter creates the API handlers from the application dependencies and
// mounts them on the router.
func (app *application) setupRouter() (http.Handler, error) {
	gate, err := timegate.NewBusinessHours(app.config.Gate)
	if err != nil {
		return nil, err
	}

	deps := api.RouterDeps{
		Logger:         app.logger,
		AuthMiddleware: apiMiddleware.NewAuthMiddleware(app.jwtService, app.config.Auth.CookieName),
		AuthHandler:    api.NewAuthHandler(app.userService, app.jwtService, app.config.Auth),
		ReportHandler:  api.NewReportHandler(app.reports, app.reportQuery),
		EventHandler:   api.NewEventHandler(app.dispatcher),
		Health: api.NewHealthHandler(map[string]api.Pinger{
			"postgres": app.db,
			"redis": api.PingFunc(func(ctx context.Context) error {
				return app.redis.Ping(ctx).Err()
			}),
		}),
		Gate:               gate.Allowed,
		GateMessage:        app.config.Gate.Message,
		Metrics:            app.metrics,
		CORSAllowedOrigins: app.config.Server.CORSAllowedOrigins,
		RequestTimeout:     requestTimeout,
	}
	if app.config.Metrics.Enabled {
		deps.MetricsPath = app.config.Metrics.Path
		deps.MetricsHandler = promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})
	}

	return api.NewRouter(deps), nil
}
