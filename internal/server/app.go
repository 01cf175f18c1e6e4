// Package server wires configuration, storage and services together and
// runs the HTTP API, the gRPC health service and the expired-token pruner
// until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/waonpad/benkyo-1/internal/logging"
	"github.com/waonpad/benkyo-1/internal/server/config"
	"github.com/waonpad/benkyo-1/internal/server/httpapi"
	"github.com/waonpad/benkyo-1/internal/server/observability"
	"github.com/waonpad/benkyo-1/internal/server/photos"
	"github.com/waonpad/benkyo-1/internal/server/repositories/repomanager"
	"github.com/waonpad/benkyo-1/internal/server/services"
	"github.com/waonpad/benkyo-1/internal/server/throttle"
	"github.com/waonpad/benkyo-1/internal/server/validation"

	gs "github.com/waonpad/benkyo-1/internal/server/grpc"
)

const (
	pruneInterval    = time.Hour
	migrationTimeout = time.Minute
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	closers        []io.Closer
	authService    *services.AuthService
	profileService *services.ProfileService
	limiter        throttle.Limiter
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	app := &App{config: c, logger: logger, db: db, closers: []io.Closer{db}}

	ctx, cancel := context.WithTimeout(context.Background(), migrationTimeout)
	defer cancel()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := photos.NewS3Store(ctx, c)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("photo store init error: %w", err)
	}

	app.limiter, err = app.newLimiter(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	v := validation.New(c.MaxPhotoSize)
	app.authService = services.NewAuthService(db, rm, v, c, logger)
	app.profileService = services.NewProfileService(db, rm, v, store, logger)

	return app, nil
}

// newLimiter picks the Redis store when a URL is configured, the in-process
// store otherwise. Zero max attempts turns throttling off.
func (app *App) newLimiter(ctx context.Context) (throttle.Limiter, error) {
	c := app.config
	if c.ThrottleMaxAttempts <= 0 {
		return throttle.Nop{}, nil
	}
	if c.RedisURL == "" {
		return throttle.NewMemory(c.ThrottleMaxAttempts, c.ThrottleWindow), nil
	}

	rdb, err := throttle.NewRedisClient(ctx, c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	app.closers = append(app.closers, rdb)
	return throttle.NewRedis(rdb, c.ThrottleMaxAttempts, c.ThrottleWindow), nil
}

// Close releases the database pool and the Redis client, newest first.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config, app.logger, app.authService, app.profileService, app.limiter, app.db)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// startTokenPruner deletes expired tokens periodically. Without a token TTL
// nothing ever expires, so it does not run.
func (app *App) startTokenPruner(ctx context.Context) {
	if app.config.TokenValidityDuration <= 0 {
		return
	}

	t := time.NewTicker(pruneInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := app.authService.PruneExpiredTokens(ctx)
			if err != nil {
				app.logger.Warn(ctx, "pruning expired tokens failed", "error", err)
				continue
			}
			observability.PrunedTokensTotal.Add(float64(n))
			if n > 0 {
				app.logger.Info(ctx, "pruned expired tokens", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startTokenPruner(ctx)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
}
