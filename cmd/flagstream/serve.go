package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/flagstream-dev/flagstream/internal/config"
	"github.com/flagstream-dev/flagstream/internal/errors"
	"github.com/flagstream-dev/flagstream/pkg/archive"
	"github.com/flagstream-dev/flagstream/pkg/flags"
	"github.com/flagstream-dev/flagstream/pkg/middleware"
	"github.com/flagstream-dev/flagstream/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		addr       string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the flag service",
		Long: `Run the flag service.

The service loads the initial mapping from flagstream.json, exposes
it over REST and a live WebSocket feed, and archives snapshots to S3
when an archive bucket is configured.

Examples:
  flagstream serve
  flagstream serve --addr=:9000
  flagstream serve --config=./deploy/flagstream.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, configPath)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from flagstream.json)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to flagstream.json")

	return cmd
}

func runServe(addr, configPath string) error {
	cfg, err := loadServeConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Disabled {
		// Degraded mode: the flag layer is off. Accessors in this
		// process see an empty mapping and nothing starts.
		flags.SetShared(flags.Noop())
		warn("flag layer disabled in %s, not starting the service", config.ConfigFileName)
		return nil
	}

	if addr != "" {
		cfg.Service.Addr = addr
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	store := flags.NewStore(cfg.Flags)
	flags.SetShared(store)

	metricsOpts := []middleware.MetricsOption{}
	if cfg.Metrics.Namespace != "" {
		metricsOpts = append(metricsOpts, middleware.WithNamespace(cfg.Metrics.Namespace))
	}
	if cfg.Metrics.Subsystem != "" {
		metricsOpts = append(metricsOpts, middleware.WithSubsystem(cfg.Metrics.Subsystem))
	}
	metricsMw := middleware.Metrics(metricsOpts...)
	middleware.InstrumentStore(store)

	srv := server.New(store, server.Config{
		Addr:              cfg.Service.Addr,
		ReadTimeout:       cfg.ReadTimeout(),
		WriteTimeout:      cfg.WriteTimeout(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
		SendBuffer:        cfg.Service.SendBuffer,
	}, logger)
	srv.Use(metricsMw)
	srv.Use(middleware.OpenTelemetry())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HasArchive() {
		arch, err := startArchiver(ctx, cfg, store, logger)
		if err != nil {
			return err
		}
		defer arch.Stop()
	}

	httpSrv := &http.Server{
		Addr:    cfg.Service.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("flag service listening", "addr", cfg.Service.Addr, "flags", store.Len())
		errCh <- httpSrv.ListenAndServe()
	}()

	printBanner()
	success("flag service on %s", cfg.Service.Addr)
	if cfg.Name != "" {
		info("project: %s", cfg.Name)
	}
	info("flags loaded: %d", store.Len())

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.New("E201").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// loadServeConfig resolves the config file, falling back to defaults when
// no flagstream.json exists.
func loadServeConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}

	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		var fe *errors.FlagstreamError
		if stderrors.As(err, &fe) && fe.Code == "E101" {
			warn("no %s found, using defaults", config.ConfigFileName)
			return config.New(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// startArchiver wires the S3 snapshot archiver and its retention pruning.
func startArchiver(ctx context.Context, cfg *config.Config, store *flags.Store, logger *slog.Logger) (*archive.Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.New("E302").Wrap(err).
			WithSuggestion("Check AWS credentials and region configuration")
	}

	arch := archive.New(s3.NewFromConfig(awsCfg), store, archive.Config{
		Bucket:   cfg.Archive.Bucket,
		Prefix:   cfg.Archive.Prefix,
		Debounce: cfg.ArchiveDebounce(),
	}, logger)
	arch.Start()
	info("archiving snapshots to s3://%s/%s", cfg.Archive.Bucket, cfg.Archive.Prefix)

	if retention := cfg.ArchiveRetention(); retention > 0 {
		go pruneLoop(ctx, arch, retention, logger)
	}

	return arch, nil
}

// pruneLoop prunes expired snapshots hourly until the context ends.
func pruneLoop(ctx context.Context, arch *archive.Archiver, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		if _, err := arch.Prune(ctx, retention); err != nil {
			logger.Error("snapshot prune failed", "error", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
