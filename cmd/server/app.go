package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/webapp-api/internal/config"
	"github.com/phrazzld/webapp-api/internal/events"
	"github.com/phrazzld/webapp-api/internal/metrics"
	"github.com/phrazzld/webapp-api/internal/platform/postgres"
	"github.com/phrazzld/webapp-api/internal/platform/rabbitmq"
	platformredis "github.com/phrazzld/webapp-api/internal/platform/redis"
	"github.com/phrazzld/webapp-api/internal/service"
	"github.com/phrazzld/webapp-api/internal/service/auth"
	"github.com/phrazzld/webapp-api/internal/store"
	"github.com/phrazzld/webapp-api/internal/task"
)

// stopTimeout bounds how long cleanup waits for in-flight reports.
const stopTimeout = 30 * time.Second

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Clients
	db       *sql.DB
	redis    *goredis.Client
	amqp     *rabbitmq.Connector
	channels *rabbitmq.ChannelPool

	registry *prometheus.Registry
	metrics  metrics.Sink

	userStore   store.UserStore
	reportStore store.ReportStore

	jwtService  auth.JWTService
	userService service.UserService
	reportQuery service.ReportQuery
	dispatcher  *events.Dispatcher

	taskRunner *task.Runner
	reports    *task.ReportExecutor
}

// newApplication creates a new application instance with all dependencies initialized.
// The database connection is established and migrated by the caller; on
// failure everything opened so far, the database included, is closed.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (_ *application, err error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.NewPrometheusSink(app.registry)

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.userStore = postgres.NewPostgresUserStore(db, cfg.Auth.BcryptCost)
	app.reportStore = postgres.NewPostgresReportStore(db)
	app.userService = service.NewUserService(app.userStore, auth.NewBcryptVerifier(), logger)
	app.reportQuery = service.NewReportQueryService(app.reportStore, logger)

	if err := app.setupEventBackends(ctx); err != nil {
		return nil, err
	}

	app.taskRunner = task.NewRunner(task.RunnerConfig{
		WorkerCount: cfg.Task.WorkerCount,
		QueueSize:   cfg.Task.QueueSize,
	}, logger)
	app.taskRunner.Start()

	app.reports = task.NewReportExecutor(
		app.reportStore,
		app.taskRunner,
		task.SimulatedReportBuilder{Delay: cfg.Task.ReportDelay},
		app.metrics,
		cfg.Task.TimeLimit,
		logger,
	)
	if err := app.reports.Recover(ctx); err != nil {
		return nil, fmt.Errorf("failed to recover unfinished reports: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupEventBackends connects both event backends, provisions the durable
// topology and registers one publisher per backend.
func (app *application) setupEventBackends(ctx context.Context) error {
	cfg := app.config

	var err error
	app.redis, err = platformredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.logger.Info("Redis connection established", "channel", cfg.Redis.EventsChannel)

	app.amqp, err = rabbitmq.NewConnector(cfg.RabbitMQ.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	app.channels = rabbitmq.NewChannelPool(app.amqp.Channel, cfg.RabbitMQ.ChannelPoolSize, app.logger)

	if err := rabbitmq.SetupTopology(ctx, app.channels, cfg.RabbitMQ.Exchange, events.KnownTypes()); err != nil {
		return fmt.Errorf("failed to declare rabbitmq topology: %w", err)
	}
	app.logger.Info("RabbitMQ topology declared", "exchange", cfg.RabbitMQ.Exchange)

	app.dispatcher = events.NewDispatcher(app.metrics, app.logger)
	app.dispatcher.Register(events.BackendBroadcast,
		platformredis.NewBroadcastPublisher(app.redis, cfg.Redis.EventsChannel))
	app.dispatcher.Register(events.BackendDurable,
		rabbitmq.NewDurablePublisher(app.channels, cfg.RabbitMQ.Exchange))
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		if err := app.taskRunner.Stop(ctx); err != nil {
			app.logger.Warn("Task runner did not stop cleanly", "error", err)
		}
		cancel()
	}

	if app.channels != nil {
		if err := app.channels.Close(); err != nil {
			app.logger.Error("Error closing rabbitmq channels", "error", err)
		}
	}
	if app.amqp != nil {
		if err := app.amqp.Close(); err != nil {
			app.logger.Error("Error closing rabbitmq connection", "error", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("Error closing redis connection", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
