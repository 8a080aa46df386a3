package cmd

import (
	"context"
	"errors"
	"fmt"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/crawlkit/crawlkit/internal/cache"
	clocksystem "github.com/crawlkit/crawlkit/internal/clock/system"
	"github.com/crawlkit/crawlkit/internal/config"
	"github.com/crawlkit/crawlkit/internal/crawler"
	"github.com/crawlkit/crawlkit/internal/extract"
	hashsha256 "github.com/crawlkit/crawlkit/internal/hash/sha256"
	memorystore "github.com/crawlkit/crawlkit/internal/store/memory"
	postgresstore "github.com/crawlkit/crawlkit/internal/store/postgres"
	"github.com/crawlkit/crawlkit/internal/storage"
	gcsstorage "github.com/crawlkit/crawlkit/internal/storage/gcs"
	localstorage "github.com/crawlkit/crawlkit/internal/storage/local"
	memorypub "github.com/crawlkit/crawlkit/internal/publisher/memory"
	pubsubpub "github.com/crawlkit/crawlkit/internal/publisher/pubsub"
)

// buildEngine assembles the crawl pipeline from configuration.
func buildEngine(cfg config.Config, logger *zap.Logger) (*crawler.Engine, error) {
	fetcher, err := crawler.NewCollyFetcher(crawler.FetcherConfig{
		UserAgent:          cfg.Crawler.UserAgent,
		Concurrency:        cfg.Crawler.Concurrency,
		RateLimitPerDomain: cfg.Crawler.RateLimitPerDomain,
		RequestTimeout:     cfg.Crawler.RequestTimeout,
		MaxBodyBytes:       cfg.Crawler.MaxBodyBytes,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	renderer, err := buildRenderer(cfg, logger)
	if err != nil {
		return nil, err
	}

	detector := crawler.NewHeuristicDetector(
		cfg.Browser.DetectorMinHTMLBytes,
		cfg.Browser.DetectorSelectors,
		cfg.Browser.DetectorKeywords,
	)
	robots := crawler.NewRobotsEnforcer(cfg.Crawler.RespectRobots, cfg.Crawler.UserAgent, logger)

	var resultCache crawler.Cache
	if cfg.Cache.Enabled {
		fsCache, err := cache.New(cfg.Cache.Dir, logger)
		if err != nil {
			return nil, fmt.Errorf("init result cache: %w", err)
		}
		resultCache = fsCache
	}

	engine := crawler.NewEngine(
		crawler.EngineConfig{
			UserAgent:          cfg.Crawler.UserAgent,
			Defaults:           cfg.Run.ToRunConfig(),
			BrowserEnabled:     renderer != nil,
			BlockedDomains:     cfg.Crawler.BlockedDomains,
			ForbiddenThreshold: cfg.Crawler.ForbiddenThreshold,
		},
		fetcher,
		renderer,
		detector,
		robots,
		resultCache,
		extract.NewProcessor(),
		hashsha256.New(),
		clocksystem.New(),
		crawler.NewExponentialRetryPolicy(),
		logger,
	)
	return engine, nil
}

func buildRenderer(cfg config.Config, logger *zap.Logger) (crawler.Renderer, error) {
	if !cfg.Browser.Enabled || cfg.Browser.MaxConcurrency <= 0 {
		return nil, nil
	}
	renderer, err := crawler.NewChromedpRenderer(crawler.RendererConfig{
		UserAgent:      cfg.Crawler.UserAgent,
		ExecPath:       cfg.Browser.ExecPath,
		Timeout:        cfg.Browser.NavTimeout,
		MaxConcurrency: cfg.Browser.MaxConcurrency,
		DomainQPS:      cfg.Browser.DomainQPS,
		Headless:       cfg.Browser.Headless,
	}, logger)
	switch {
	case err == nil:
		return renderer, nil
	case errors.Is(err, crawler.ErrRendererDisabled):
		logger.Warn("browser rendering unavailable; using plain HTTP only")
		return nil, nil
	default:
		return nil, fmt.Errorf("init renderer: %w", err)
	}
}

// buildTaskStore selects the task store backend.
func buildTaskStore(ctx context.Context, cfg config.Config) (crawler.TaskStore, func(), error) {
	switch cfg.DB.Provider {
	case "", "memory":
		return memorystore.New(), func() {}, nil
	case "postgres":
		store, err := postgresstore.New(ctx, postgresstore.Config{DSN: cfg.DB.DSN})
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown db provider %q", cfg.DB.Provider)
	}
}

// buildBlobStore selects the raw HTML persistence backend.
func buildBlobStore(ctx context.Context, cfg config.Config) (crawler.BlobStore, func(), error) {
	switch cfg.Storage.Provider {
	case "", "noop":
		return storage.NoOp{}, func() {}, nil
	case "local":
		store, err := localstorage.New(cfg.Storage.BaseDir)
		if err != nil {
			return nil, nil, fmt.Errorf("init local blob store: %w", err)
		}
		return store, func() {}, nil
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		return store, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

// buildPublisher selects the completion notification backend. A nil publisher
// disables notifications.
func buildPublisher(ctx context.Context, cfg config.Config) (crawler.Publisher, func(), error) {
	switch cfg.PubSub.Provider {
	case "", "noop":
		return nil, func() {}, nil
	case "memory":
		return memorypub.New(), func() {}, nil
	case "pubsub":
		pub, err := pubsubpub.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			return nil, nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		return pub, func() { _ = pub.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown pubsub provider %q", cfg.PubSub.Provider)
	}
}
