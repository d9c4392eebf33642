package vaultd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hustletexas/cyber-arcade-verse-rally/config"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/app"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/host"
	"github.com/hustletexas/cyber-arcade-verse-rally/observability"
	"github.com/hustletexas/cyber-arcade-verse-rally/observability/logging"
	telemetry "github.com/hustletexas/cyber-arcade-verse-rally/observability/otel"
	"github.com/hustletexas/cyber-arcade-verse-rally/services/vaultd/audit"
	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

// Version is stamped at build time with -ldflags "-X ...vaultd.Version=...".
var Version = "dev"

// Main initialises and runs the vault daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/vaultd/config.yaml", "path to vaultd configuration")
	flag.Parse()

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env := cfg.Environment
	if env == "" {
		env = strings.TrimSpace(os.Getenv("ARCADE_ENV"))
	}
	logOpts := []logging.Option{logging.WithLevel(cfg.Log.Level)}
	if cfg.Log.File != "" {
		logOpts = append(logOpts, logging.WithFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays))
	}
	logger := logging.Setup("vaultd", env, logOpts...)

	genesis, err := config.Load(cfg.GenesisPath)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	resolved, err := genesis.Validate()
	if err != nil {
		return fmt.Errorf("validate genesis: %w", err)
	}

	providers, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:  "vaultd",
		Version:      Version,
		Environment:  env,
		TokenSymbol:  resolved.Symbol,
		Endpoint:     cfg.Telemetry.Endpoint,
		Insecure:     cfg.Telemetry.Insecure,
		Headers:      telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Timeout:      cfg.Telemetry.Timeout.Duration,
		Gzip:         cfg.Telemetry.Gzip,
		Metrics:      cfg.Telemetry.Metrics,
		Traces:       cfg.Telemetry.Traces,
		SampleRatio:  cfg.Telemetry.SampleRatio,
		PushInterval: cfg.Telemetry.PushInterval.Duration,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()

	auditDB, err := audit.Open(cfg.Audit.Driver, cfg.Audit.DSN)
	if err != nil {
		return err
	}
	auditStore, err := audit.New(auditDB, audit.WithLogger(logger))
	if err != nil {
		return err
	}
	checked, err := auditStore.VerifyChain()
	if err != nil {
		return fmt.Errorf("audit chain: %w", err)
	}
	logger.Info("audit chain verified", slog.Uint64("records", checked),
		slog.String("driver", cfg.Audit.Driver), logging.MaskField("dsn", cfg.Audit.DSN))

	hub := NewHub()
	defer hub.Close()
	runtime := host.New(db,
		host.WithEmitter(events.NewFanout(auditStore, hub, observability.Events())),
		host.WithLogger(logger),
		host.WithTracer(telemetry.Tracer()),
		host.WithMetrics(observability.Protocol()),
	)
	arcade, err := app.New(runtime, resolved)
	if err != nil {
		return err
	}
	if err := ensureGenesis(context.Background(), arcade, logger); err != nil {
		return err
	}

	tokens, err := NewTokenAuthenticator(cfg.Auth, logger)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	api, err := NewServer(ServerConfig{
		App:         arcade,
		Hub:         hub,
		Auth:        tokens,
		RateLimiter: NewRateLimiter(cfg.RateLimit),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	bearer, err := NewBearerAuthenticator(cfg.Admin.BearerToken)
	if err != nil {
		return err
	}
	admin := NewAdminServer(arcade, auditStore, hub, bearer, logger)

	servers := []*http.Server{
		{
			Addr:         cfg.ListenAddress,
			Handler:      api,
			ReadTimeout:  cfg.Timeouts.Read.Duration,
			WriteTimeout: cfg.Timeouts.Write.Duration,
			IdleTimeout:  cfg.Timeouts.Idle.Duration,
		},
		{
			Addr:         cfg.Admin.ListenAddress,
			Handler:      admin,
			ReadTimeout:  cfg.Timeouts.Read.Duration,
			WriteTimeout: cfg.Timeouts.Write.Duration,
			IdleTimeout:  cfg.Timeouts.Idle.Duration,
		},
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		go func() {
			logger.Info("vaultd listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
	}

	var runErr error
	select {
	case <-stopCtx.Done():
		logger.Info("shutdown requested")
	case runErr = <-errs:
		logger.Error("server failed", slog.String("error", runErr.Error()))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown.Duration)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
	}
	return runErr
}

func ensureGenesis(ctx context.Context, arcade *app.App, logger *slog.Logger) error {
	ready, err := arcade.Initialized(ctx)
	if err != nil {
		return fmt.Errorf("check genesis: %w", err)
	}
	if ready {
		return nil
	}
	if err := arcade.InitGenesis(ctx); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("genesis applied", slog.String("token", arcade.Symbol()))
	return nil
}
