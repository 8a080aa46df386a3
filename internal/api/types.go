package api

import (
	"errors"
	"time"

	"github.com/crawlkit/crawlkit/internal/crawler"
)

// crawlRequest is the JSON body accepted by POST /crawl and POST /crawl/job.
// Pointer fields distinguish "absent" from zero so server defaults apply.
type crawlRequest struct {
	URLs                 []string `json:"urls"`
	WordCountThreshold   *int     `json:"word_count_threshold"`
	ExcludedTags         []string `json:"excluded_tags"`
	ExcludeExternalLinks *bool    `json:"exclude_external_links"`
	CacheMode            string   `json:"cache_mode"`
	UseBrowser           *bool    `json:"use_browser"`
	TimeoutSeconds       *int     `json:"timeout_seconds"`
	MaxDepth             *int     `json:"max_depth"`
	MaxPages             *int     `json:"max_pages"`
}

func (req crawlRequest) validate() error {
	if len(req.URLs) == 0 {
		return errors.New("urls required")
	}
	switch crawler.CacheMode(req.CacheMode) {
	case "", crawler.CacheEnabled, crawler.CacheBypass, crawler.CacheDisabled,
		crawler.CacheWriteOnly, crawler.CacheReadOnly:
	default:
		return errors.New("unknown cache_mode")
	}
	if req.TimeoutSeconds != nil && *req.TimeoutSeconds <= 0 {
		return errors.New("timeout_seconds must be > 0")
	}
	return nil
}

// toRunConfig merges the request over the configured defaults.
func (req crawlRequest) toRunConfig(defaults crawler.RunConfig) crawler.RunConfig {
	run := defaults
	if req.WordCountThreshold != nil {
		run.WordCountThreshold = *req.WordCountThreshold
	}
	if req.ExcludedTags != nil {
		run.ExcludedTags = append([]string(nil), req.ExcludedTags...)
	}
	if req.ExcludeExternalLinks != nil {
		run.ExcludeExternalLinks = *req.ExcludeExternalLinks
	}
	if req.CacheMode != "" {
		run.CacheMode = crawler.CacheMode(req.CacheMode)
	}
	if req.UseBrowser != nil {
		run.UseBrowser = *req.UseBrowser
	}
	if req.TimeoutSeconds != nil {
		run.Timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}
	if req.MaxDepth != nil {
		run.MaxDepth = *req.MaxDepth
	}
	if req.MaxPages != nil {
		run.MaxPages = *req.MaxPages
	}
	return run
}

// crawlResponse is returned by the synchronous POST /crawl endpoint. Error is
// set when the crawl stopped early with partial results.
type crawlResponse struct {
	Success bool             `json:"success"`
	Results []crawler.Result `json:"results"`
	Error   string           `json:"error,omitempty"`
}

// taskResponse is returned by GET /task/{task_id}.
type taskResponse struct {
	Task    crawler.Task     `json:"task"`
	Results []crawler.Result `json:"results,omitempty"`
}
