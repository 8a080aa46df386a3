package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crawlkit/crawlkit/internal/api"
	clocksystem "github.com/crawlkit/crawlkit/internal/clock/system"
	"github.com/crawlkit/crawlkit/internal/dispatcher"
	iduuid "github.com/crawlkit/crawlkit/internal/id/uuid"
	"github.com/crawlkit/crawlkit/internal/progress"
	"github.com/crawlkit/crawlkit/internal/progress/sinks"
	memoryqueue "github.com/crawlkit/crawlkit/internal/queue/memory"
	"github.com/crawlkit/crawlkit/internal/telemetry"
	"github.com/crawlkit/crawlkit/internal/worker"
)

// newServeCmd creates the 'serve' subcommand, which runs the HTTP service.
func newServeCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl HTTP service",
		Long: `Starts the HTTP API: synchronous crawls via POST /crawl, asynchronous
tasks via POST /crawl/job, task inspection and cancelation, health and
Prometheus metrics. Tasks are executed by a background worker pool.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeCommand(cmd, workers)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "worker pool size (default: crawler concurrency)")
	return cmd
}

func runServeCommand(cmd *cobra.Command, workerCount int) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.Init()

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := engine.Close(context.Background()); cerr != nil {
			logger.Warn("close engine failed", zap.Error(cerr))
		}
	}()

	taskStore, closeStore, err := buildTaskStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	blobStore, closeBlob, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBlob()

	publisher, closePub, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePub()

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register progress metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger), promSink)
	defer hub.Close()

	queue := memoryqueue.NewQueue(cfg.Crawler.QueueDepth)
	defer queue.Close()

	cancels := worker.NewCancelRegistry()
	clock := clocksystem.New()

	if workerCount <= 0 {
		workerCount = cfg.Crawler.Concurrency
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	pool := make([]*worker.Worker, 0, workerCount)
	for range workerCount {
		pool = append(pool, worker.New(
			queue, taskStore, blobStore, publisher, engine, clock, hub, cancels,
			worker.Config{
				ContentType: cfg.Storage.ContentType,
				BlobPrefix:  cfg.Storage.Prefix,
				Topic:       cfg.PubSub.TopicName,
			},
			logger,
		))
	}
	disp := dispatcher.New(queue, pool)
	go disp.Run(ctx)

	server := api.NewServer(engine, disp, taskStore, cancels, iduuid.New(), clock, cfg, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}
