// Package server wires configuration, storage, notification delivery and the
// HTTP and gRPC listeners into one runnable process.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Satyam1603/GoTogether/internal/dbx"
	"github.com/Satyam1603/GoTogether/internal/logging"
	"github.com/Satyam1603/GoTogether/internal/server/config"
	gs "github.com/Satyam1603/GoTogether/internal/server/grpc"
	"github.com/Satyam1603/GoTogether/internal/server/httpapi"
	"github.com/Satyam1603/GoTogether/internal/server/metrics"
	"github.com/Satyam1603/GoTogether/internal/server/notify"
	"github.com/Satyam1603/GoTogether/internal/server/repositories/repomanager"
	"github.com/Satyam1603/GoTogether/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	nc      *nats.Conn
	metrics *metrics.Metrics

	users        *services.UserService
	tokens       *services.TokenService
	verification *services.VerificationService
	images       *services.ImageService
}

// NewApp opens the database, applies migrations and builds the services.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := dbx.Open(ctx, repomanager.DriverName, c.DatabaseDSN, dbx.DefaultPool)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, metrics: metrics.New()}

	var notifier notify.Notifier
	if c.NATSURL == "" {
		logger.Warn(ctx, "no NATS url configured, verification codes are only logged")
		notifier = notify.NewLogNotifier(logger)
	} else {
		n, nc, err := notify.Connect(c.NATSURL, nats.Name("gotogether-auth"))
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		app.nc = nc
		notifier = n
	}

	app.tokens = services.NewTokenService(db, rm, c, app.metrics)
	app.verification = services.NewVerificationService(db, rm, c, notifier, logger, app.metrics)
	app.users = services.NewUserService(db, rm, app.tokens, app.verification, logger, app.metrics)
	app.images = services.NewImageService(db, rm, c)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpapi.NewRouter(httpapi.Deps{
		Users:        app.users,
		Tokens:       app.tokens,
		Verification: app.verification,
		Images:       app.images,
		DB:           app.db,
		Metrics:      app.metrics,
		Logger:       app.logger,
		BasePath:     app.config.BasePath,
		CORSOrigins:  app.config.CORSAllowedOrigins,
	})

	if err := httpapi.NewServer(app.config.HTTPAddr, router, app.logger).Run(ctx); err != nil {
		app.logger.Error(ctx, "http server", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCAddr, app.logger, app.db, 0)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server", "error", err)
		cancelFunc()
	}
}

// Run starts every listener plus the janitor and blocks until a signal
// arrives or one of them fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "http", app.config.HTTPAddr, "grpc", app.config.GRPCAddr)
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	for _, run := range []func(context.Context, context.CancelFunc){
		app.startHTTPServer,
		app.startGRPCServer,
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx, cancelFunc)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		newJanitor(app.config.CleanupInterval, app.logger, app.tokens, app.verification).Run(ctx)
	}()

	wg.Wait()
	app.close()
}

func (app *App) close() {
	if app.nc != nil {
		if err := app.nc.Drain(); err != nil {
			app.logger.Warn(context.Background(), "nats drain", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(context.Background(), "db close", "error", err)
	}
}

// expirer is implemented by every service that owns rows with an expiry.
type expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// janitor periodically purges expired refresh tokens and challenges.
type janitor struct {
	interval time.Duration
	logger   logging.Logger
	targets  []expirer
}

func newJanitor(interval time.Duration, l logging.Logger, targets ...expirer) *janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &janitor{interval: interval, logger: l.With("module", "janitor"), targets: targets}
}

func (j *janitor) Run(ctx context.Context) {
	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.sweep(ctx)
		}
	}
}

func (j *janitor) sweep(ctx context.Context) {
	for _, target := range j.targets {
		n, err := target.DeleteExpired(ctx)
		if err != nil {
			j.logger.Error(ctx, "delete expired", "error", err)
			continue
		}
		if n > 0 {
			j.logger.Info(ctx, "deleted expired rows", "count", n)
		}
	}
}
