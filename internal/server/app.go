// Package server wires the ridehail backend together: configuration,
// database and migrations, the auth workflow, services, and the HTTP and
// gRPC listeners with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/ridehail/internal/logging"
	"github.com/dmitrijs2005/ridehail/internal/server/auth"
	"github.com/dmitrijs2005/ridehail/internal/server/config"
	"github.com/dmitrijs2005/ridehail/internal/server/fare"
	"github.com/dmitrijs2005/ridehail/internal/server/httpapi"
	"github.com/dmitrijs2005/ridehail/internal/server/metrics"
	"github.com/dmitrijs2005/ridehail/internal/server/ratelimit"
	"github.com/dmitrijs2005/ridehail/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/ridehail/internal/server/services"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/ridehail/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	metrics *metrics.Metrics
	http    *httpapi.Server
	grpc    *gs.GRPCServer
}

// NewApp validates the configuration, connects to Postgres, applies
// migrations and builds every component. A missing token secret is a
// startup error.
func NewApp(ctx context.Context, c *config.Config, version string) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	app, err := newApp(c, db, rm, logger, version)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(c *config.Config, db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger, version string) (*App, error) {
	issuer, err := auth.NewIssuer([]byte(c.SecretKey), c.AccessTokenValidityDuration, auth.WithIssuer(c.TokenIssuer))
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewVerifier([]byte(c.SecretKey), auth.WithIssuer(c.TokenIssuer))
	if err != nil {
		return nil, err
	}
	hasher := auth.NewHasher(c.BcryptCost)
	resolver := auth.NewResolver(verifier, rm.Users(db), c.SessionLookupTimeout, logger)

	m := metrics.New()

	users, err := services.NewUserService(db, rm, hasher, issuer, logger)
	if err != nil {
		return nil, err
	}
	users.SetObserver(m)
	rides := services.NewRideService(db, rm, fare.Default(), logger)
	drivers := services.NewDriverService(db, rm, logger)
	admin := services.NewAdminService(db, rm, logger)

	app := &App{config: c, logger: logger, db: db, metrics: m}

	limiter, err := app.newLimiter()
	if err != nil {
		return nil, err
	}

	app.http = httpapi.NewServer(c.HTTPAddr, httpapi.Deps{
		Users:      users,
		Rides:      rides,
		Drivers:    drivers,
		Admin:      admin,
		Auth:       resolver,
		Limiter:    limiter,
		Metrics:    m,
		Logger:     logger,
		CORSOrigin: c.CORSOrigin,
		Version:    version,
	})
	app.grpc = gs.NewGRPCServer(c.GRPCAddr, logger, resolver, m)

	return app, nil
}

// newLimiter picks Redis when configured and falls back to process memory.
// A zero request budget disables limiting.
func (app *App) newLimiter() (ratelimit.Limiter, error) {
	c := app.config
	if c.RateLimitRequests == 0 {
		return nil, nil
	}
	if c.RedisURL == "" {
		return ratelimit.NewMemory(c.RateLimitRequests, c.RateLimitWindow), nil
	}
	client, err := ratelimit.ParseURL(c.RedisURL)
	if err != nil {
		return nil, err
	}
	app.redis = client
	return ratelimit.NewRedis(client, "ridehail:ratelimit:", c.RateLimitRequests, c.RateLimitWindow), nil
}

// Handler exposes the HTTP routes, mainly for tests.
func (app *App) Handler() http.Handler {
	return app.http.Routes()
}

// Run serves HTTP and gRPC until ctx is cancelled, a termination signal
// arrives or either listener fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.http.Run(ctx, app.config.ShutdownTimeout)
	})
	g.Go(func() error {
		app.grpc.SetServing(true)
		return app.grpc.Run(ctx)
	})

	err := g.Wait()
	app.close(ctx)
	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "closing redis", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn(ctx, "closing database", "error", err)
		}
	}
}
