// Package setup provisions the local environment: application directories,
// browser discovery and an optional headless warmup.
package setup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/crawlkit/crawlkit/internal/config"
)

// Options controls what Run performs.
type Options struct {
	// BrowserPath short-circuits discovery when set.
	BrowserPath string
	// SkipWarmup disables the headless launch probe.
	SkipWarmup bool
	// WarmupTimeout bounds the headless launch probe (default 30s).
	WarmupTimeout time.Duration
}

// Report summarizes what setup found and created.
type Report struct {
	ConfigDir   string
	CacheDir    string
	ModelsDir   string
	BrowserPath string
	WarmupOK    bool
	WarmupErr   error
}

// browserCandidates lists well-known Chrome/Chromium executable locations per
// platform, checked after $PATH lookup.
func browserCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
	case "windows":
		return []string{
			filepath.Join(os.Getenv("ProgramFiles"), "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(os.Getenv("ProgramFiles(x86)"), "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(os.Getenv("LocalAppData"), "Google", "Chrome", "Application", "chrome.exe"),
		}
	default:
		return []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/usr/bin/headless-shell",
		}
	}
}

// pathNames are executable names probed on $PATH, in preference order.
var pathNames = []string{
	"google-chrome-stable", "google-chrome", "chromium-browser", "chromium",
	"chrome", "headless-shell",
}

// FindBrowser locates a usable Chrome/Chromium executable. It returns an
// empty string when none is found.
func FindBrowser() string {
	for _, name := range pathNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	for _, candidate := range browserCandidates() {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// Run provisions directories, resolves the browser and optionally launches a
// throwaway headless session to confirm the browser works.
func Run(ctx context.Context, opts Options, logger *zap.Logger) (Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rep := Report{
		ConfigDir: filepath.Join(xdg.ConfigHome, config.AppDirName),
		CacheDir:  filepath.Join(xdg.CacheHome, config.AppDirName, "results"),
		ModelsDir: filepath.Join(xdg.CacheHome, config.AppDirName, "models"),
	}
	for _, dir := range []string{rep.ConfigDir, rep.CacheDir, rep.ModelsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return rep, fmt.Errorf("create %s: %w", dir, err)
		}
		if err := ProbeWritable(dir); err != nil {
			return rep, fmt.Errorf("directory %s not writable: %w", dir, err)
		}
		logger.Debug("directory ready", zap.String("dir", dir))
	}

	rep.BrowserPath = opts.BrowserPath
	if rep.BrowserPath == "" {
		rep.BrowserPath = FindBrowser()
	}
	if rep.BrowserPath == "" {
		logger.Warn("no Chrome/Chromium executable found; browser rendering will be unavailable")
		return rep, nil
	}
	logger.Info("browser resolved", zap.String("path", rep.BrowserPath))

	if opts.SkipWarmup {
		return rep, nil
	}
	timeout := opts.WarmupTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	warmCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	rep.WarmupErr = warmup(warmCtx, rep.BrowserPath)
	rep.WarmupOK = rep.WarmupErr == nil
	if rep.WarmupErr != nil {
		logger.Warn("browser warmup failed", zap.Error(rep.WarmupErr))
	} else {
		logger.Info("browser warmup ok")
	}
	return rep, nil
}

// ProbeWritable verifies the directory accepts new files.
func ProbeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}

// warmup launches a headless session and navigates to about:blank.
func warmup(ctx context.Context, execPath string) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.NoSandbox,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()
	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		return fmt.Errorf("launch headless browser: %w", err)
	}
	return nil
}
