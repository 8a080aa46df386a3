package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/crawlkit/crawlkit/internal/telemetry"
)

// EngineConfig carries crawl-wide settings that are not per-request knobs.
type EngineConfig struct {
	UserAgent          string
	Defaults           RunConfig
	BrowserEnabled     bool
	BlockedDomains     []string
	ForbiddenThreshold int
}

// PageProcessor turns a raw fetched page into extraction output. It is
// satisfied by the extract/markdown pipeline; tests swap in fakes.
type PageProcessor interface {
	Process(page Page, run RunConfig) (ProcessedPage, error)
}

// ProcessedPage is what a PageProcessor derives from one raw page.
type ProcessedPage struct {
	Metadata      Metadata
	Links         []Link
	ExternalLinks []Link
	Media         []Image
	CleanedHTML   string
	Markdown      string
	FitMarkdown   string
}

// Engine orchestrates the crawl pipeline for one or more URLs: cache lookup,
// robots check, plain fetch, optional browser promotion, extraction, and
// cache write-back.
type Engine struct {
	cfg       EngineConfig
	fetcher   Fetcher
	renderer  Renderer
	detector  Detector
	robots    RobotsPolicy
	cache     Cache
	processor PageProcessor
	hasher    Hasher
	clock     Clock
	retry     RetryPolicy
	logger    *zap.Logger

	blocklist *domainPatternBlocklist
	blocker   domainBlocker
	pauser    pauseController
}

// NewEngine constructs an Engine. The renderer and cache may be nil, in which
// case browser promotion and caching are skipped.
func NewEngine(
	cfg EngineConfig,
	fetcher Fetcher,
	renderer Renderer,
	detector Detector,
	robots RobotsPolicy,
	cache Cache,
	processor PageProcessor,
	hasher Hasher,
	clock Clock,
	retry RetryPolicy,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		fetcher:   fetcher,
		renderer:  renderer,
		detector:  detector,
		robots:    robots,
		cache:     cache,
		processor: processor,
		hasher:    hasher,
		clock:     clock,
		retry:     retry,
		logger:    logger,
		blocklist: newDomainPatternBlocklist(cfg.BlockedDomains),
		blocker:   newThresholdDomainBlocker(cfg.ForbiddenThreshold),
		pauser:    &timerPauseController{},
	}
}

// Close releases the renderer when one is attached.
func (e *Engine) Close(ctx context.Context) error {
	if e.renderer == nil {
		return nil
	}
	return e.renderer.Close(ctx)
}

// Crawl fetches and processes a single URL.
func (e *Engine) Crawl(ctx context.Context, rawURL string, run RunConfig) (Result, error) {
	run = e.applyDefaults(run)

	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("normalize url: %w", err)
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return Result{}, fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(parsed.Hostname())

	if e.blocklist.IsBlocked(host) || e.blocker.IsBlocked(host) {
		return e.failure(normalized, 0, "domain blocked"), nil
	}

	if e.cache != nil && run.CacheMode.ReadsCache() {
		cached, ok, cerr := e.cache.Get(ctx, normalized)
		if cerr != nil {
			e.logger.Warn("cache read failed", zap.String("url", normalized), zap.Error(cerr))
		} else if ok {
			cached.FromCache = true
			return cached, nil
		}
	}

	if e.robots != nil && !e.robots.Allowed(ctx, normalized) {
		return e.failure(normalized, 0, "disallowed by robots.txt"), nil
	}

	crawlCtx := ctx
	if run.Timeout > 0 {
		var cancel context.CancelFunc
		crawlCtx, cancel = context.WithTimeout(ctx, run.Timeout)
		defer cancel()
	}

	page, err := e.fetchWithRetry(crawlCtx, normalized)
	if err != nil {
		telemetry.ObserveCrawl(host, "error", 0)
		return e.failure(normalized, page.StatusCode, err.Error()), nil
	}
	e.noteStatus(host, page.StatusCode)

	page = e.maybePromote(crawlCtx, page, run)

	result, err := e.buildResult(normalized, page, run)
	if err != nil {
		return Result{}, err
	}

	if e.cache != nil && run.CacheMode.WritesCache() && result.Success {
		if cerr := e.cache.Put(ctx, normalized, result); cerr != nil {
			e.logger.Warn("cache write failed", zap.String("url", normalized), zap.Error(cerr))
		}
	}

	telemetry.ObserveCrawl(host, fmt.Sprintf("%d", page.StatusCode), len(page.Body))
	return result, nil
}

// CrawlMany processes the seed URLs, following same-host links breadth-first
// when the run config allows depth. Results are returned in visit order.
func (e *Engine) CrawlMany(ctx context.Context, seeds []string, run RunConfig) ([]Result, error) {
	run = e.applyDefaults(run)
	tracker := newConcurrentVisitTracker()

	type frontierItem struct {
		url   string
		depth int
	}
	frontier := make([]frontierItem, 0, len(seeds))
	for _, s := range seeds {
		frontier = append(frontier, frontierItem{url: s})
	}

	maxPages := run.MaxPages
	if maxPages <= 0 {
		maxPages = len(seeds)
	}

	var results []Result
	for len(frontier) > 0 && len(results) < maxPages {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		item := frontier[0]
		frontier = frontier[1:]

		normalized, err := NormalizeURL(item.url)
		if err != nil || !tracker.MarkIfNew(normalized) {
			continue
		}

		result, err := e.Crawl(ctx, normalized, run)
		if err != nil {
			return results, err
		}
		results = append(results, result)

		if item.depth >= run.MaxDepth || !result.Success {
			continue
		}
		for _, link := range result.Links {
			frontier = append(frontier, frontierItem{url: link.URL, depth: item.depth + 1})
		}
	}
	return results, nil
}

func (e *Engine) applyDefaults(run RunConfig) RunConfig {
	d := e.cfg.Defaults
	if run.WordCountThreshold <= 0 {
		run.WordCountThreshold = d.WordCountThreshold
	}
	if len(run.ExcludedTags) == 0 {
		run.ExcludedTags = d.ExcludedTags
	}
	if run.CacheMode == "" {
		run.CacheMode = d.CacheMode
	}
	if run.Timeout <= 0 {
		run.Timeout = d.Timeout
	}
	if run.MaxPages <= 0 {
		run.MaxPages = d.MaxPages
	}
	return run
}

func (e *Engine) fetchWithRetry(ctx context.Context, rawURL string) (Page, error) {
	var lastErr error
	var lastPage Page
	for attempt := 0; ; attempt++ {
		page, err := e.fetcher.Fetch(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		lastPage = page
		if e.retry == nil || !e.retry.ShouldRetry(err, attempt) {
			break
		}
		delay := e.retry.Backoff(attempt)
		e.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
		)
		e.pauser.Pause(ctx, delay)
		if ctx.Err() != nil {
			break
		}
	}
	return lastPage, fmt.Errorf("fetch %s: %w", rawURL, lastErr)
}

func (e *Engine) maybePromote(ctx context.Context, page Page, run RunConfig) Page {
	browserWanted := run.UseBrowser || e.cfg.BrowserEnabled
	if !browserWanted || e.renderer == nil || e.detector == nil {
		return page
	}
	if !e.detector.NeedsJS(ctx, page) {
		return page
	}
	rendered, err := e.renderer.Render(ctx, page.URL)
	if err != nil {
		e.logger.Warn("browser promotion failed; keeping plain fetch",
			zap.String("url", page.URL), zap.Error(err))
		return page
	}
	telemetry.ObserveBrowserPromotion()
	if rendered.StatusCode == 0 {
		rendered.StatusCode = page.StatusCode
	}
	return rendered
}

func (e *Engine) buildResult(normalized string, page Page, run RunConfig) (Result, error) {
	result := Result{
		URL:         normalized,
		FinalURL:    page.FinalURL,
		StatusCode:  page.StatusCode,
		FetchedAt:   e.clock.Now(),
		UsedBrowser: page.UsedJS,
		DurationMs:  page.Duration.Milliseconds(),
	}
	if page.StatusCode >= 400 || len(page.Body) == 0 {
		result.ErrorMessage = fmt.Sprintf("unusable response (status %d, %d bytes)", page.StatusCode, len(page.Body))
		return result, nil
	}

	processed, err := e.processor.Process(page, run)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("process page: %v", err)
		return result, nil
	}

	hash, err := e.hasher.Hash(page.Body)
	if err != nil {
		return Result{}, fmt.Errorf("hash body: %w", err)
	}

	result.Success = true
	result.HTML = string(page.Body)
	result.CleanedHTML = processed.CleanedHTML
	result.Markdown = processed.Markdown
	result.FitMarkdown = processed.FitMarkdown
	result.Metadata = processed.Metadata
	result.Links = processed.Links
	result.ExternalLinks = processed.ExternalLinks
	result.Media = processed.Media
	result.ContentHash = hash
	return result, nil
}

func (e *Engine) noteStatus(host string, status int) {
	switch status {
	case 403:
		if e.blocker.MarkForbidden(host) {
			e.logger.Warn("host blocked after repeated 403s", zap.String("host", host))
		}
	case 429:
		e.logger.Warn("rate limited by host", zap.String("host", host))
	}
}

func (e *Engine) failure(url string, status int, msg string) Result {
	return Result{
		URL:          url,
		StatusCode:   status,
		ErrorMessage: msg,
		FetchedAt:    e.clock.Now(),
	}
}
