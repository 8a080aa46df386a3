package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]Page
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		return Page{URL: rawURL}, err
	}
	page, ok := f.pages[rawURL]
	if !ok {
		return Page{URL: rawURL}, fmt.Errorf("no page for %s", rawURL)
	}
	return page, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRenderer struct {
	page   Page
	err    error
	called bool
}

func (r *fakeRenderer) Render(_ context.Context, rawURL string) (Page, error) {
	r.called = true
	if r.err != nil {
		return Page{}, r.err
	}
	page := r.page
	page.URL = rawURL
	page.UsedJS = true
	return page, nil
}

func (r *fakeRenderer) Close(context.Context) error { return nil }

type fakeDetector struct{ needsJS bool }

func (d *fakeDetector) NeedsJS(context.Context, Page) bool { return d.needsJS }

type denyPolicy struct{ denied map[string]bool }

func (p *denyPolicy) Allowed(_ context.Context, rawURL string) bool { return !p.denied[rawURL] }

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]Result
	puts    int
}

func (c *fakeCache) Get(_ context.Context, rawURL string) (Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[rawURL]
	return res, ok, nil
}

func (c *fakeCache) Put(_ context.Context, rawURL string, result Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]Result)
	}
	c.entries[rawURL] = result
	c.puts++
	return nil
}

type fakeProcessor struct {
	err   error
	links []Link
}

func (p *fakeProcessor) Process(page Page, _ RunConfig) (ProcessedPage, error) {
	if p.err != nil {
		return ProcessedPage{}, p.err
	}
	return ProcessedPage{
		Markdown:    "# converted " + page.URL,
		CleanedHTML: string(page.Body),
		Links:       p.links,
	}, nil
}

type fakeHasher struct{ hash string }

func (h *fakeHasher) Hash([]byte) (string, error) { return h.hash, nil }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type noRetryPolicy struct{}

func (noRetryPolicy) ShouldRetry(error, int) bool { return false }
func (noRetryPolicy) Backoff(int) time.Duration   { return 0 }

type countingRetryPolicy struct{ allowed int }

func (p *countingRetryPolicy) ShouldRetry(err error, attempt int) bool {
	return err != nil && attempt < p.allowed
}
func (p *countingRetryPolicy) Backoff(int) time.Duration { return time.Millisecond }

func newTestEngine(cfg EngineConfig, fetcher Fetcher, opts ...func(*Engine)) *Engine {
	engine := NewEngine(
		cfg,
		fetcher,
		nil,
		&fakeDetector{},
		&denyPolicy{},
		nil,
		&fakeProcessor{},
		&fakeHasher{hash: "hash-1"},
		&fakeClock{now: time.Unix(1700000000, 0)},
		noRetryPolicy{},
		zap.NewNop(),
	)
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func okPage(url string, body string) Page {
	return Page{
		URL:        url,
		FinalURL:   url,
		StatusCode: 200,
		Body:       []byte(body),
		Duration:   25 * time.Millisecond,
	}
}

func TestEngine_Crawl_Success(t *testing.T) {
	t.Parallel()

	const target = "https://example.com/"
	fetcher := &fakeFetcher{pages: map[string]Page{
		target: okPage(target, "<html><body>hello world</body></html>"),
	}}
	engine := newTestEngine(EngineConfig{UserAgent: "test"}, fetcher)

	result, err := engine.Crawl(context.Background(), "https://Example.com", RunConfig{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, target, result.URL)
	require.Equal(t, 200, result.StatusCode)
	require.Equal(t, "# converted "+target, result.Markdown)
	require.Equal(t, "hash-1", result.ContentHash)
	require.False(t, result.FromCache)
	require.Equal(t, int64(25), result.DurationMs)
}

func TestEngine_Crawl_FetchErrorProducesFailedResult(t *testing.T) {
	t.Parallel()

	const target = "https://example.com/"
	fetcher := &fakeFetcher{errs: map[string]error{target: errors.New("connection refused")}}
	engine := newTestEngine(EngineConfig{}, fetcher)

	result, err := engine.Crawl(context.Background(), target, RunConfig{})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.ErrorMessage, "connection refused")
}

func TestEngine_Crawl_RetriesOnTransientError(t *testing.T) {
	t.Parallel()

	const target = "https://example.com/"
	fetcher := &fakeFetcher{errs: map[string]error{target: errors.New("boom")}}
	engine := newTestEngine(EngineConfig{}, fetcher, func(e *Engine) {
		e.retry = &countingRetryPolicy{allowed: 2}
	})

	result, err := engine.Crawl(context.Background(), target, RunConfig{})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, 3, fetcher.callCount())
}

func TestEngine_Crawl_RobotsDisallow(t *testing.T) {
	t.Parallel()

	const target = "https://example.com/private"
	fetcher := &fakeFetcher{}
	engine := newTestEngine(EngineConfig{}, fetcher, func(e *Engine) {
		e.robots = &denyPolicy{denied: map[string]bool{target: true}}
	})

	result, err := engine.Crawl(context.Background(), target, RunConfig{})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.ErrorMessage, "robots")
	require.Zero(t, fetcher.callCount())
}

func TestEngine_Crawl_BlockedDomain(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	engine := newTestEngine(EngineConfig{BlockedDomains: []string{"blocked.example.com"}}, fetcher)

	result, err := engine.Crawl(context.Background(), "https://blocked.example.com/x", RunConfig{})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.ErrorMessage, "blocked")
	require.Zero(t, fetcher.callCount())
}

func TestEngine_Crawl_CacheHitSkipsFetch(t *testing.T) {
	t.Parallel()

	const target = "https://example.com/"
	fetcher := &fakeFetcher{}
	cached := Result{URL: target, Success: true, Markdown: "# cached"}
	engine := newTestEngine(EngineConfig{}, fetcher, func(e *Engine) {
		e.cache = &fakeCache{entries: map[string]Result{target: cached}}
	})

	result, err := engine.Crawl(context.Background(), target, RunConfig{CacheMode: CacheEnabled})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.True(t, result.FromCache)
	require.Equal(t, "# cached", result.Markdown)
	require.Zero(t, fetcher.callCount())
}

func TestEngine_Crawl_BypassModeRefetchesButWrites(t *testing.T) {
	t.Parallel()

	const target = "https://example.com/"
	fetcher := &fakeFetcher{pages: map[string]Page{
		target: okPage(target, "<html><body>fresh</body></html>"),
	}}
	cache := &fakeCache{entries: map[string]Result{target: {URL: target, Markdown: "# stale"}}}
	engine := newTestEngine(EngineConfig{}, fetcher, func(e *Engine) {
		e.cache = cache
	})

	result, err := engine.Crawl(context.Background(), target, RunConfig{CacheMode: CacheBypass})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.False(t, result.FromCache)
	require.Equal(t, 1, fetcher.callCount())
	require.Equal(t, 1, cache.puts)
	require.Equal(t, "# converted "+target, cache.entries[target].Markdown)
}

func TestEngine_Crawl_DisabledModeNeverTouchesCache(t *testing.T) {
	t.Parallel()

	const target = "https://example.com/"
	fetcher := &fakeFetcher{pages: map[string]Page{
		target: okPage(target, "<html><body>fresh</body></html>"),
	}}
	cache := &fakeCache{entries: map[string]Result{target: {URL: target, Markdown: "# stale"}}}
	engine := newTestEngine(EngineConfig{}, fetcher, func(e *Engine) {
		e.cache = cache
	})

	result, err := engine.Crawl(context.Background(), target, RunConfig{CacheMode: CacheDisabled})
	require.NoError(t, err)
	require.False(t, result.FromCache)
	require.Zero(t, cache.puts)
}

func TestEngine_Crawl_BrowserPromotion(t *testing.T) {
	t.Parallel()

	const target = "https://example.com/"
	fetcher := &fakeFetcher{pages: map[string]Page{
		target: okPage(target, `<div id="root"></div>`),
	}}
	renderer := &fakeRenderer{page: okPage(target, "<html><body>rendered content</body></html>")}
	engine := newTestEngine(EngineConfig{BrowserEnabled: true}, fetcher, func(e *Engine) {
		e.renderer = renderer
		e.detector = &fakeDetector{needsJS: true}
	})

	result, err := engine.Crawl(context.Background(), target, RunConfig{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.True(t, renderer.called)
	require.True(t, result.UsedBrowser)
	require.Equal(t, "<html><body>rendered content</body></html>", result.CleanedHTML)
}

func TestEngine_Crawl_PromotionFailureKeepsPlainFetch(t *testing.T) {
	t.Parallel()

	const target = "https://example.com/"
	fetcher := &fakeFetcher{pages: map[string]Page{
		target: okPage(target, "<html><body>plain</body></html>"),
	}}
	renderer := &fakeRenderer{err: errors.New("browser crashed")}
	engine := newTestEngine(EngineConfig{BrowserEnabled: true}, fetcher, func(e *Engine) {
		e.renderer = renderer
		e.detector = &fakeDetector{needsJS: true}
	})

	result, err := engine.Crawl(context.Background(), target, RunConfig{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.False(t, result.UsedBrowser)
}

func TestEngine_Crawl_ForbiddenThresholdBlocksDomain(t *testing.T) {
	t.Parallel()

	const target = "https://hostile.example.com/"
	fetcher := &fakeFetcher{pages: map[string]Page{
		target: {URL: target, StatusCode: 403, Body: []byte("forbidden")},
	}}
	engine := newTestEngine(EngineConfig{ForbiddenThreshold: 2}, fetcher)

	for range 2 {
		result, err := engine.Crawl(context.Background(), target, RunConfig{})
		require.NoError(t, err)
		require.False(t, result.Success)
	}

	// Third attempt is refused before fetching.
	result, err := engine.Crawl(context.Background(), target, RunConfig{})
	require.NoError(t, err)
	require.Contains(t, result.ErrorMessage, "blocked")
	require.Equal(t, 2, fetcher.callCount())
}

func TestEngine_CrawlMany_FollowsLinksWithinLimits(t *testing.T) {
	t.Parallel()

	const (
		seed  = "https://example.com/"
		page2 = "https://example.com/two"
		page3 = "https://example.com/three"
	)
	fetcher := &fakeFetcher{pages: map[string]Page{
		seed:  okPage(seed, "<html><body>one</body></html>"),
		page2: okPage(page2, "<html><body>two</body></html>"),
		page3: okPage(page3, "<html><body>three</body></html>"),
	}}
	engine := newTestEngine(EngineConfig{}, fetcher, func(e *Engine) {
		e.processor = &fakeProcessor{links: []Link{{URL: page2}, {URL: page3}}}
	})

	results, err := engine.CrawlMany(context.Background(), []string{seed}, RunConfig{MaxDepth: 1, MaxPages: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, seed, results[0].URL)
	require.Equal(t, page2, results[1].URL)
}

func TestEngine_CrawlMany_DeduplicatesSeeds(t *testing.T) {
	t.Parallel()

	const seed = "https://example.com/"
	fetcher := &fakeFetcher{pages: map[string]Page{
		seed: okPage(seed, "<html><body>one</body></html>"),
	}}
	engine := newTestEngine(EngineConfig{}, fetcher)

	results, err := engine.CrawlMany(
		context.Background(),
		[]string{seed, "https://EXAMPLE.com/", seed},
		RunConfig{MaxPages: 10},
	)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 1, fetcher.callCount())
}

func TestEngine_CrawlMany_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := newTestEngine(EngineConfig{}, &fakeFetcher{})
	results, err := engine.CrawlMany(ctx, []string{"https://example.com/"}, RunConfig{})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, results)
}

func TestEngine_ApplyDefaults(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(EngineConfig{Defaults: RunConfig{
		WordCountThreshold: 5,
		ExcludedTags:       []string{"nav"},
		CacheMode:          CacheEnabled,
		Timeout:            30 * time.Second,
		MaxPages:           10,
	}}, &fakeFetcher{})

	run := engine.applyDefaults(RunConfig{})
	require.Equal(t, 5, run.WordCountThreshold)
	require.Equal(t, []string{"nav"}, run.ExcludedTags)
	require.Equal(t, CacheEnabled, run.CacheMode)
	require.Equal(t, 30*time.Second, run.Timeout)
	require.Equal(t, 10, run.MaxPages)

	custom := engine.applyDefaults(RunConfig{WordCountThreshold: 1, CacheMode: CacheBypass})
	require.Equal(t, 1, custom.WordCountThreshold)
	require.Equal(t, CacheBypass, custom.CacheMode)
}
