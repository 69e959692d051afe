package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/preetsinghmakkar/workshops/internal/config"
	"github.com/preetsinghmakkar/workshops/internal/handlers"
	"github.com/preetsinghmakkar/workshops/internal/media"
	"github.com/preetsinghmakkar/workshops/internal/notifications"
	"github.com/preetsinghmakkar/workshops/internal/repositories"
	"github.com/preetsinghmakkar/workshops/internal/routes"
	"github.com/preetsinghmakkar/workshops/internal/scheduler"
	"github.com/preetsinghmakkar/workshops/internal/services"
	ws "github.com/preetsinghmakkar/workshops/internal/websocket"
	"github.com/preetsinghmakkar/workshops/internal/workshop"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App owns every long-lived component of workshopd.
type App struct {
	cfg    *config.Config
	logger zerolog.Logger

	db        *sql.DB
	workshops *repositories.WorkshopRepository
	series    *repositories.SeriesRepository
	hub       *ws.Hub
	registry  *workshop.Registry

	jobs   map[string]scheduler.Job
	runner *scheduler.Runner
	server *http.Server
}

// New validates cfg, connects to Postgres and assembles the application.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	db, err := repositories.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	a, err := assemble(cfg, logger, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// assemble wires the components in dependency order:
// store, transport, coordinators, gateway, notifications, service, HTTP, jobs.
func assemble(cfg *config.Config, logger zerolog.Logger, db *sql.DB) (*App, error) {
	a := &App{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		workshops: repositories.NewWorkshopRepository(db),
		series:    repositories.NewSeriesRepository(db),
		hub:       ws.NewHub(logger),
	}
	a.registry = workshop.NewRegistry(a.workshops, a.hub, logger, workshop.RegistryConfig{
		MailboxSize: cfg.CoordinatorMailbox,
	})

	gateway, err := media.NewGateway(media.Config{
		URL:       cfg.Media.URL,
		APIKey:    cfg.Media.APIKey,
		APISecret: cfg.Media.APISecret,
		TokenTTL:  cfg.Media.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("media gateway: %w", err)
	}
	notifier := notifications.NewPostgresSink(db, logger)
	service := services.NewWorkshopService(a.workshops, a.registry, gateway, notifier, logger)

	a.server = &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      a.router(service),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	reminders := scheduler.NewReminderJob(a.workshops, notifier, scheduler.SystemClock,
		scheduler.ReminderTolerance(cfg.Scheduler.ReminderInterval), logger)
	noShow := scheduler.NewNoShowJob(a.workshops, a.registry, notifier, scheduler.SystemClock,
		cfg.Scheduler.NoShowGrace, logger)
	series := scheduler.NewSeriesJob(a.series, a.workshops, scheduler.SystemClock,
		cfg.Scheduler.SeriesLookahead, cfg.Scheduler.SeriesHorizon, logger)
	a.jobs = map[string]scheduler.Job{
		reminders.Name(): reminders,
		noShow.Name():    noShow,
		series.Name():    series,
	}
	a.runner, err = scheduler.NewRunner(reminders, noShow, series, scheduler.RunnerConfig{
		ReminderInterval: cfg.Scheduler.ReminderInterval,
		NoShowInterval:   cfg.Scheduler.NoShowInterval,
		SeriesRunAt:      cfg.Scheduler.SeriesRunAt,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return a, nil
}

func (a *App) router(service *services.WorkshopService) *gin.Engine {
	if !a.cfg.Log.Pretty {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(a.cfg.HTTP.CORSOrigins, a.logger)

	pump := ws.PumpConfig{
		PingInterval:   a.cfg.WebSocket.PingInterval,
		ReadTimeout:    a.cfg.WebSocket.ReadTimeout,
		WriteTimeout:   a.cfg.WebSocket.WriteTimeout,
		MaxMessageSize: ws.DefaultPumpConfig().MaxMessageSize,
	}
	healthHandler := handlers.NewHealthHandler(a.registry)
	webSocketHandler := handlers.NewWebSocketHandler(a.hub, a.registry, service, pump,
		a.cfg.WebSocket.SendBuffer, a.cfg.HTTP.CORSOrigins, a.logger)
	workshopHandler := handlers.NewWorkshopHandler(service, a.logger)

	routes.RegisterPublicEndpoints(router, healthHandler, webSocketHandler, a.workshops, a.cfg.Auth.JWTSecret, a.logger)
	routes.RegisterProtectedEndpoints(router, workshopHandler, a.cfg.Auth.JWTSecret, a.logger)
	return router
}

// Migrate applies the embedded schema.
func (a *App) Migrate(ctx context.Context) error {
	return repositories.EnsureSchema(ctx, a.db)
}

// Series exposes the series store to operator commands.
func (a *App) Series() *repositories.SeriesRepository {
	return a.series
}

// Job looks up a scheduler job by name.
func (a *App) Job(name string) (scheduler.Job, bool) {
	job, ok := a.jobs[name]
	return job, ok
}

func (a *App) JobNames() []string {
	names := make([]string, 0, len(a.jobs))
	for name := range a.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run serves HTTP and drives the scheduler until ctx ends, then drains
// connections and coordinators.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.runner.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info().Msg("shutting down")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("http shutdown")
		}
		a.hub.CloseAll()
		a.registry.Close()
		return nil
	})
	return g.Wait()
}

// Close releases the database pool.
func (a *App) Close() error {
	return a.db.Close()
}
