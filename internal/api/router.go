package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/phrazzld/webapp-api/internal/api/middleware"
	"github.com/phrazzld/webapp-api/internal/metrics"
	"github.com/phrazzld/webapp-api/internal/timegate"
)

// RouterDeps holds everything NewRouter wires together.
type RouterDeps struct {
	Logger         *slog.Logger
	AuthMiddleware *middleware.AuthMiddleware
	AuthHandler    *AuthHandler
	ReportHandler  *ReportHandler
	EventHandler   *EventHandler
	Health         http.Handler

	// Gate guards the event endpoints.
	Gate        timegate.Predicate
	GateClock   timegate.Clock
	GateMessage string

	Metrics        metrics.Sink
	MetricsPath    string
	MetricsHandler http.Handler

	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
}

// NewRouter builds the API's chi router.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewTraceMiddleware(d.Logger))
	r.Use(middleware.AppHeaders)
	r.Use(chimw.Recoverer)
	if d.RequestTimeout > 0 {
		r.Use(chimw.Timeout(d.RequestTimeout))
	}
	if len(d.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   d.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{middleware.RequestIDHeader, middleware.UserIDHeader},
			AllowCredentials: true,
		}).Handler)
	}

	if d.Health != nil {
		r.Method(http.MethodGet, "/health", d.Health)
	}
	if d.MetricsPath != "" && d.MetricsHandler != nil {
		r.Method(http.MethodGet, d.MetricsPath, d.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", d.AuthHandler.Register)
		r.Post("/login", d.AuthHandler.Login)
		r.Post("/logout", d.AuthHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(d.AuthMiddleware.Authenticate)

		r.Post("/report", d.ReportHandler.SubmitReport)
		r.Get("/report/{id}", d.ReportHandler.GetReport)
		r.Get("/reports", d.ReportHandler.ListReports)

		r.Group(func(r chi.Router) {
			gate := d.Gate
			if gate == nil {
				gate = timegate.Always
			}
			r.Use(middleware.TimeGate(gate, d.GateClock, d.GateMessage, d.Metrics))

			r.Post("/redis-pubsub-event", d.EventHandler.PublishBroadcast)
			r.Post("/rabbitmq-event", d.EventHandler.PublishDurable)
		})
	})

	return r
}
