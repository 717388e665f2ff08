package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/taskbay/taskbay/internal/api"
	"github.com/taskbay/taskbay/internal/app/platform"
	"github.com/taskbay/taskbay/internal/domain"
	"github.com/taskbay/taskbay/internal/health"
	"github.com/taskbay/taskbay/internal/infra/sqlite"
	"github.com/taskbay/taskbay/internal/security"
)

// Daemon is the taskbay runtime. It wires together all services.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Engine *platform.Engine
	Server *api.Server
	Health *health.Checker
	Log    *slog.Logger
	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	logger := NewLogger(cfg.Logging.Level, os.Stderr)

	db, engine, err := OpenEngine(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	srv := api.NewServer(engine, logger)
	srv.SetCORSOrigins(cfg.API.CORSOrigins)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	checker := health.NewChecker(db, engine.CheckSolvency, cfg.Store.Dir,
		parseDuration(cfg.Health.Interval, health.DefaultInterval), logger)
	srv.SetHealth(checker)

	return &Daemon{
		Config: cfg,
		DB:     db,
		Engine: engine,
		Server: srv,
		Health: checker,
		Log:    logger.With("component", "daemon"),
	}, nil
}

// OpenEngine opens the store and restores the engine from it, signing audit
// records with the operator key kept beside the store. The caller owns the
// returned database and must close it.
func OpenEngine(ctx context.Context, cfg Config, logger *slog.Logger) (*sqlite.DB, *platform.Engine, error) {
	dir := cfg.Store.Dir
	if dir == "" {
		dir = taskbayHome()
	}
	keys, err := security.LoadOrCreateKeypair(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("operator key: %w", err)
	}
	db, err := sqlite.Open(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	engine, err := platform.New(ctx, platform.Options{
		Owner:         domain.Address(cfg.Platform.Owner),
		FeePercentage: cfg.Platform.FeePercentage,
		Store:         db,
		Logger:        logger,
		Signer:        keys,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("start engine: %w", err)
	}
	return db, engine, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	addr := net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-sigCh:
			d.Log.Info("shutting down", "signal", sig.String())
		case <-ctx.Done():
			d.Log.Info("shutting down", "reason", ctx.Err())
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.DB.Close()
	}()

	d.Log.Info("serving", "addr", "http://"+addr,
		"owner", d.Engine.Owner(), "fee_percentage", d.Engine.FeePercentage())
	if d.Config.Telemetry.Prometheus {
		d.Log.Info("metrics enabled", "url", "http://"+addr+"/metrics")
	}

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-done
		return err
	}
	<-done
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

// NewLogger builds the process logger: a text handler at the given level.
// Unknown levels fall back to info.
func NewLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
