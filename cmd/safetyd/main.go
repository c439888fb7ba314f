package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"safetymodule/config"
	"safetymodule/native/common"
	"safetymodule/observability/logging"
	telemetry "safetymodule/observability/otel"
	"safetymodule/rpc"
	"safetymodule/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./safetyd.toml", "path to safetyd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	out, closeLog := logging.Output(cfg.Observability.LogFile, cfg.Observability.LogMaxSizeMB, cfg.Observability.LogMaxBackups)
	defer func() { _ = closeLog() }()
	logger := logging.SetupWriter(out, "safetyd", cfg.Environment, logging.ParseLevel(cfg.Observability.LogLevel))

	providers, err := telemetry.Start(context.Background(), telemetry.Identity{
		Service:     "safetyd",
		Environment: cfg.Environment,
		Modules:     hostedModules,
	}, cfg.Observability)
	if err != nil {
		logger.Error("init telemetry", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()
	logger.Info("telemetry ready", slog.Bool("traces", providers.Tracing()), slog.Bool("metrics", providers.Metering()))

	if err := run(cfg, logger); err != nil {
		logger.Error("safetyd stopped", slog.Any("error", err))
		_ = closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	accts, err := resolveAccounts(cfg.Accounts)
	if err != nil {
		return err
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	n := newNode(db, accts, common.SystemClock{}, logger)
	if err := n.bootstrap(cfg); err != nil {
		return err
	}

	var keeper *cron.Cron
	if cfg.Keeper.Enabled {
		keeper = cron.New(
			cron.WithParser(config.KeeperParser()),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
		if _, err := keeper.AddFunc(cfg.Keeper.Schedule, n.sweep); err != nil {
			return err
		}
		keeper.Start()
		logger.Info("keeper started", slog.String("schedule", cfg.Keeper.Schedule))
	}

	api := rpc.NewServer(rpc.Config{
		RateLimit: rpc.RateLimit{RequestsPerSecond: cfg.RPC.RateLimitPerSecond, Burst: cfg.RPC.Burst},
		Lock:      &n.mu,
	}, n.backends())
	srv := &http.Server{
		Addr:              cfg.RPC.Address,
		Handler:           otelhttp.NewHandler(api.Handler(), "safetyd"),
		ReadHeaderTimeout: time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.RPC.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("safetyd listening", slog.String("address", cfg.RPC.Address))
		serverErr <- srv.ListenAndServe()
	}()

	var result error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			result = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forcing server stop", slog.Any("error", err))
	}
	if keeper != nil {
		<-keeper.Stop().Done()
	}
	return result
}
