package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"neurolearn/internal/blob"
	"neurolearn/internal/config"
	"neurolearn/internal/core"
	"neurolearn/internal/httpapi"
	"neurolearn/internal/summarize"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Long: `Start the HTTP API. Settings come from an optional YAML config file;
NEUROLEARN_* environment variables override file values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	return cmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger, err := cfg.BuildLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	engine := core.NewDefaultRulesEngine()
	store, err := core.OpenStorage(core.StorageDriver(cfg.Storage.Driver), cfg.Storage.SQLitePath, cfg.Storage.PostgresDSN, engine)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeIfCloser(store, logger, "storage")

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	svc := core.NewService(store,
		core.WithLogger(logger.Named("core")),
		core.WithMetricsRecorder(core.NewPrometheusMetricsRecorder("neurolearn", nil)),
	)

	worker := summarize.NewWorker(svc, blobs, buildSummarizer(cfg),
		summarize.WithQueueSize(cfg.Summarizer.QueueSize),
		summarize.WithWorkerLogger(logger.Named("summarize")),
	)
	worker.Start()

	server := httpapi.NewServer(svc, blobs, worker, logger.Named("http"),
		httpapi.WithBatchConcurrency(cfg.Summarizer.Concurrency))

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("blob", cfg.Blob.Driver))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		logger.Warn("worker shutdown", zap.Error(err))
	}
	return nil
}

func openBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch blob.Driver(cfg.Blob.Driver) {
	case blob.DriverFilesystem:
		return blob.NewFilesystem(cfg.Blob.FSRoot)
	case blob.DriverS3:
		return blob.NewS3(ctx, blob.S3Config{
			Bucket:    cfg.Blob.S3Bucket,
			Region:    cfg.Blob.S3Region,
			Endpoint:  cfg.Blob.S3Endpoint,
			PathStyle: cfg.Blob.S3PathStyle,
		})
	case blob.DriverMemory:
		return blob.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Blob.Driver)
	}
}

func buildSummarizer(cfg config.Config) summarize.Summarizer {
	if cfg.Summarizer.Endpoint != "" {
		return summarize.NewHTTPSummarizer(cfg.Summarizer.Endpoint, nil)
	}
	return &summarize.ExtractiveSummarizer{}
}

func closeIfCloser(v any, logger *zap.Logger, name string) {
	if closer, ok := v.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("close "+name, zap.Error(err))
		}
	}
}
