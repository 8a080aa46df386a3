// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// CacheMode controls how the engine interacts with the result cache.
type CacheMode string

// Cache modes accepted in run configs and API requests.
const (
	CacheEnabled   CacheMode = "enabled"
	CacheBypass    CacheMode = "bypass"
	CacheDisabled  CacheMode = "disabled"
	CacheWriteOnly CacheMode = "write-only"
	CacheReadOnly  CacheMode = "read-only"
)

// ReadsCache reports whether the mode permits serving cached results.
func (m CacheMode) ReadsCache() bool {
	return m == CacheEnabled || m == CacheReadOnly || m == ""
}

// WritesCache reports whether the mode permits storing fresh results.
func (m CacheMode) WritesCache() bool {
	return m == CacheEnabled || m == CacheWriteOnly || m == CacheBypass || m == ""
}

// RunConfig captures per-crawl knobs requested by the caller. The zero value
// is usable; the engine applies configured defaults for empty fields.
type RunConfig struct {
	WordCountThreshold   int           `json:"word_count_threshold" mapstructure:"word_count_threshold"`
	ExcludedTags         []string      `json:"excluded_tags" mapstructure:"excluded_tags"`
	ExcludeExternalLinks bool          `json:"exclude_external_links" mapstructure:"exclude_external_links"`
	CacheMode            CacheMode     `json:"cache_mode" mapstructure:"cache_mode"`
	UseBrowser           bool          `json:"use_browser" mapstructure:"use_browser"`
	Timeout              time.Duration `json:"-" mapstructure:"timeout"`
	MaxDepth             int           `json:"max_depth" mapstructure:"max_depth"`
	MaxPages             int           `json:"max_pages" mapstructure:"max_pages"`
}

// Link is an anchor discovered on a crawled page.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

// Image describes an image reference discovered on a crawled page.
type Image struct {
	URL   string `json:"url"`
	Alt   string `json:"alt,omitempty"`
	Title string `json:"title,omitempty"`
}

// Metadata holds document-level properties scraped from the page head.
type Metadata struct {
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	Keywords      string `json:"keywords,omitempty"`
	Language      string `json:"language,omitempty"`
	Canonical     string `json:"canonical,omitempty"`
	OgTitle       string `json:"og_title,omitempty"`
	OgDescription string `json:"og_description,omitempty"`
	OgImage       string `json:"og_image,omitempty"`
	OgSiteName    string `json:"og_site_name,omitempty"`
}

// Result is the outcome of crawling a single URL.
type Result struct {
	URL          string    `json:"url"`
	FinalURL     string    `json:"final_url,omitempty"`
	Success      bool      `json:"success"`
	StatusCode   int       `json:"status_code"`
	HTML         string    `json:"html,omitempty"`
	CleanedHTML  string    `json:"cleaned_html,omitempty"`
	Markdown     string    `json:"markdown,omitempty"`
	FitMarkdown  string    `json:"fit_markdown,omitempty"`
	Metadata     Metadata  `json:"metadata"`
	Links        []Link    `json:"links,omitempty"`
	ExternalLinks []Link   `json:"external_links,omitempty"`
	Media        []Image   `json:"media,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
	UsedBrowser  bool      `json:"used_browser"`
	FromCache    bool      `json:"from_cache"`
	ContentHash  string    `json:"content_hash,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
}

// TaskStatus represents the lifecycle state of a crawl task.
type TaskStatus string

// Task status values persisted in the task store.
const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCanceled  TaskStatus = "canceled"
)

// Task represents the metadata persisted for each submitted crawl request.
type Task struct {
	ID        string     `json:"id"`
	Status    TaskStatus `json:"status"`
	URLs      []string   `json:"urls"`
	Config    RunConfig  `json:"config"`
	Submitted time.Time  `json:"submitted_at"`
	Started   *time.Time `json:"started_at,omitempty"`
	Finished  *time.Time `json:"finished_at,omitempty"`
	ErrorText string     `json:"error_text,omitempty"`
	Counters  TaskCounters `json:"counters"`
}

// TaskCounters tracks success/failure stats per task.
type TaskCounters struct {
	PagesSucceeded int `json:"pages_succeeded"`
	PagesFailed    int `json:"pages_failed"`
	Retries        int `json:"retries"`
}

// QueueItem wraps a task ready to run.
type QueueItem struct {
	TaskID    string
	URLs      []string
	Config    RunConfig
	Attempt   int
	Submitted int64
}

// Page is the raw outcome of a fetch or render, before extraction.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	UsedJS     bool
	Duration   time.Duration
}
