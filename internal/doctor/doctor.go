// Package doctor runs environment diagnostics and renders a report.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/markdown"
	"go.uber.org/zap"

	"github.com/crawlkit/crawlkit/internal/config"
	"github.com/crawlkit/crawlkit/internal/setup"
	"github.com/crawlkit/crawlkit/internal/version"
)

// Status classifies a check outcome.
type Status string

// Check outcomes.
const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Check is a single diagnostic result.
type Check struct {
	Name   string
	Status Status
	Detail string
	Hint   string
}

// CheckFunc produces one diagnostic result.
type CheckFunc func(ctx context.Context) Check

// Doctor runs a fixed set of environment checks.
type Doctor struct {
	cfg      config.Config
	logger   *zap.Logger
	checks   []CheckFunc
	probeURL string
	client   *http.Client
}

// New builds a Doctor with the default check set.
func New(cfg config.Config, logger *zap.Logger) *Doctor {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Doctor{
		cfg:      cfg,
		logger:   logger,
		probeURL: "https://example.com/",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	d.checks = []CheckFunc{
		d.checkConfig,
		d.checkDirectories,
		d.checkBrowser,
		d.checkDNS,
		d.checkNetwork,
	}
	return d
}

// Register appends a custom check.
func (d *Doctor) Register(fn CheckFunc) {
	d.checks = append(d.checks, fn)
}

// Run executes all checks in order and returns the results.
func (d *Doctor) Run(ctx context.Context) []Check {
	results := make([]Check, 0, len(d.checks))
	for _, fn := range d.checks {
		check := fn(ctx)
		d.logger.Debug("check finished",
			zap.String("name", check.Name),
			zap.String("status", string(check.Status)),
		)
		results = append(results, check)
	}
	return results
}

// Failed reports whether any check failed outright.
func Failed(results []Check) bool {
	for _, c := range results {
		if c.Status == StatusFail {
			return true
		}
	}
	return false
}

func (d *Doctor) checkConfig(context.Context) Check {
	if err := d.cfg.Validate(); err != nil {
		return Check{
			Name:   "configuration",
			Status: StatusFail,
			Detail: err.Error(),
			Hint:   "fix the offending key in the config file or CRAWLKIT_* environment",
		}
	}
	return Check{Name: "configuration", Status: StatusPass, Detail: "configuration is valid"}
}

func (d *Doctor) checkDirectories(context.Context) Check {
	dirs := []string{
		filepath.Join(xdg.ConfigHome, config.AppDirName),
		filepath.Join(xdg.CacheHome, config.AppDirName),
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			return Check{
				Name:   "directories",
				Status: StatusWarn,
				Detail: fmt.Sprintf("%s missing", dir),
				Hint:   "run `crawlkit setup` to provision application directories",
			}
		}
		if err := setup.ProbeWritable(dir); err != nil {
			return Check{
				Name:   "directories",
				Status: StatusFail,
				Detail: fmt.Sprintf("%s not writable: %v", dir, err),
				Hint:   "check directory ownership and permissions",
			}
		}
	}
	return Check{Name: "directories", Status: StatusPass, Detail: "application directories writable"}
}

func (d *Doctor) checkBrowser(context.Context) Check {
	path := d.cfg.Browser.ExecPath
	if path == "" {
		path = setup.FindBrowser()
	}
	if path == "" {
		return Check{
			Name:   "browser",
			Status: StatusWarn,
			Detail: "no Chrome/Chromium executable found",
			Hint:   "install Chrome or Chromium, or set browser.exec_path; crawls fall back to plain HTTP",
		}
	}
	if _, err := os.Stat(path); err != nil {
		return Check{
			Name:   "browser",
			Status: StatusFail,
			Detail: fmt.Sprintf("configured browser %s: %v", path, err),
			Hint:   "correct browser.exec_path or remove it to use auto-discovery",
		}
	}
	return Check{Name: "browser", Status: StatusPass, Detail: path}
}

func (d *Doctor) checkDNS(ctx context.Context) Check {
	resolveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := net.DefaultResolver.LookupHost(resolveCtx, "example.com"); err != nil {
		return Check{
			Name:   "dns",
			Status: StatusFail,
			Detail: err.Error(),
			Hint:   "check /etc/resolv.conf or the container's DNS settings",
		}
	}
	return Check{Name: "dns", Status: StatusPass, Detail: "hostname resolution works"}
}

func (d *Doctor) checkNetwork(ctx context.Context) Check {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.probeURL, nil)
	if err != nil {
		return Check{Name: "network", Status: StatusFail, Detail: err.Error()}
	}
	req.Header.Set("User-Agent", d.cfg.Crawler.UserAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return Check{
			Name:   "network",
			Status: StatusFail,
			Detail: err.Error(),
			Hint:   "check outbound connectivity and proxy settings",
		}
	}
	defer func() { _ = resp.Body.Close() }()
	return Check{
		Name:   "network",
		Status: StatusPass,
		Detail: fmt.Sprintf("HEAD %s -> %d", d.probeURL, resp.StatusCode),
	}
}

// WriteReport renders the results as a Markdown document.
func WriteReport(w io.Writer, results []Check) error {
	md := markdown.NewMarkdown(w)
	md.H1("Crawlkit Doctor Report")
	md.PlainText("")
	md.PlainTextf("Version: %s", version.Version)
	md.PlainTextf("Generated: %s", time.Now().UTC().Format(time.RFC3339))
	md.PlainText("")

	rows := make([][]string, 0, len(results))
	for _, c := range results {
		rows = append(rows, []string{statusLabel(c.Status), c.Name, c.Detail})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Check", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")

	hints := make([]string, 0)
	for _, c := range results {
		if c.Status != StatusPass && c.Hint != "" {
			hints = append(hints, fmt.Sprintf("**%s**: %s", c.Name, c.Hint))
		}
	}
	if len(hints) > 0 {
		md.H2("Suggested Fixes")
		md.BulletList(hints...)
		md.PlainText("")
	}
	if Failed(results) {
		md.Warning("One or more checks failed. Resolve them before running crawls.")
	} else {
		md.Note("Environment looks healthy.")
	}
	return md.Build()
}

func statusLabel(s Status) string {
	switch s {
	case StatusPass:
		return "✅"
	case StatusWarn:
		return "⚠️"
	default:
		return "❌"
	}
}
