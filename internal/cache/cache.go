// Package cache persists crawl results on the local filesystem so repeat
// requests for the same URL can be served without refetching.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/crawlkit/crawlkit/internal/crawler"
)

// FSCache implements crawler.Cache with one JSON file per URL, keyed by the
// SHA-256 of the normalized URL.
type FSCache struct {
	dir    string
	logger *zap.Logger
}

// New creates the cache directory if needed and returns a ready FSCache.
func New(dir string, logger *zap.Logger) (*FSCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FSCache{dir: dir, logger: logger}, nil
}

// Get returns the cached result for rawURL, if present.
func (c *FSCache) Get(_ context.Context, rawURL string) (crawler.Result, bool, error) {
	data, err := os.ReadFile(c.path(rawURL))
	if err != nil {
		if os.IsNotExist(err) {
			return crawler.Result{}, false, nil
		}
		return crawler.Result{}, false, fmt.Errorf("read cache entry: %w", err)
	}
	var result crawler.Result
	if err := json.Unmarshal(data, &result); err != nil {
		// A corrupt entry is treated as a miss; it will be rewritten.
		c.logger.Warn("discarding corrupt cache entry", zap.String("url", rawURL), zap.Error(err))
		return crawler.Result{}, false, nil
	}
	return result, true, nil
}

// Put stores the result for rawURL, replacing any previous entry. The write
// goes through a temp file and rename so readers never see partial JSON.
func (c *FSCache) Put(_ context.Context, rawURL string, result crawler.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	target := c.path(rawURL)
	tmp, err := os.CreateTemp(c.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

// Clear removes every cached entry.
func (c *FSCache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return fmt.Errorf("remove cache entry: %w", err)
		}
	}
	return nil
}

func (c *FSCache) path(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}
