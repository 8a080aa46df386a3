package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crawlkit/crawlkit/internal/crawler"
)

type crawlFlags struct {
	browser       bool
	cacheMode     string
	bypassCache   bool
	outputJSON    bool
	outputDir     string
	fitMarkdown   bool
	wordThreshold int
	maxDepth      int
	maxPages      int
	timeout       time.Duration
	excludedTags  []string
}

// newCrawlCmd creates the 'crawl' subcommand, which crawls one or more URLs
// and prints the Markdown (or full JSON results) to stdout.
func newCrawlCmd() *cobra.Command {
	flags := &crawlFlags{}
	cmd := &cobra.Command{
		Use:   "crawl URL [URL...]",
		Short: "Crawl URLs and print the extracted Markdown",
		Long: `Fetches the given URLs, extracts the main content and prints it as
Markdown. Pages that need JavaScript are rendered in a headless browser
when one is available and --browser is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawlCommand(cmd, args, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.browser, "browser", false, "force headless browser rendering")
	cmd.Flags().StringVar(&flags.cacheMode, "cache-mode", "", "cache mode: enabled, bypass, disabled, read-only, write-only")
	cmd.Flags().BoolVar(&flags.bypassCache, "bypass-cache", false, "refetch even when a cached result exists")
	cmd.Flags().BoolVar(&flags.outputJSON, "json", false, "print full results as JSON")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "write one markdown file per page into this directory")
	cmd.Flags().BoolVar(&flags.fitMarkdown, "fit", false, "print the pruned fit markdown instead of the full document")
	cmd.Flags().IntVar(&flags.wordThreshold, "word-threshold", 0, "minimum words per block kept in the fit markdown")
	cmd.Flags().IntVar(&flags.maxDepth, "max-depth", 0, "follow links up to this depth (0 = seed pages only)")
	cmd.Flags().IntVar(&flags.maxPages, "max-pages", 0, "stop after this many pages")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "per-page crawl timeout")
	cmd.Flags().StringSliceVar(&flags.excludedTags, "exclude-tags", nil, "HTML tags to strip before conversion")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, args []string, flags *crawlFlags) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	engine, err := buildEngine(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := engine.Close(cmd.Context()); cerr != nil {
			a.logger.Warn("close engine failed", zap.Error(cerr))
		}
	}()

	run := a.cfg.Run.ToRunConfig()
	run.UseBrowser = flags.browser
	if flags.cacheMode != "" {
		run.CacheMode = crawler.CacheMode(flags.cacheMode)
	}
	if flags.bypassCache {
		run.CacheMode = crawler.CacheBypass
	}
	if flags.wordThreshold > 0 {
		run.WordCountThreshold = flags.wordThreshold
	}
	if flags.maxDepth > 0 {
		run.MaxDepth = flags.maxDepth
	}
	if flags.maxPages > 0 {
		run.MaxPages = flags.maxPages
	}
	if flags.timeout > 0 {
		run.Timeout = flags.timeout
	}
	if flags.excludedTags != nil {
		run.ExcludedTags = flags.excludedTags
	}

	results, err := engine.CrawlMany(cmd.Context(), args, run)
	if err != nil && !errors.Is(err, context.Canceled) && len(results) == 0 {
		return fmt.Errorf("crawl: %w", err)
	}

	switch {
	case flags.outputDir != "":
		if err := writeMarkdownFiles(flags.outputDir, results, flags.fitMarkdown); err != nil {
			return err
		}
	case flags.outputJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
	default:
		printMarkdown(results, flags.fitMarkdown)
	}

	for _, result := range results {
		if !result.Success {
			return fmt.Errorf("crawl finished with failures (%s: %s)", result.URL, result.ErrorMessage)
		}
	}
	return nil
}

// writeMarkdownFiles writes one .md file per successful page, named after the
// page URL.
func writeMarkdownFiles(dir string, results []crawler.Result, fit bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, result := range results {
		if !result.Success {
			fmt.Fprintf(os.Stderr, "skipping %s: %s\n", result.URL, result.ErrorMessage)
			continue
		}
		doc := result.Markdown
		if fit && result.FitMarkdown != "" {
			doc = result.FitMarkdown
		}
		path := filepath.Join(dir, markdownFileName(result.URL))
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Println(path)
	}
	return nil
}

// markdownFileName maps a URL to a filesystem-safe .md name.
func markdownFileName(rawURL string) string {
	name := strings.TrimPrefix(rawURL, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = strings.Trim(name, "/")
	if name == "" {
		name = "index"
	}
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
	return mapped + ".md"
}

func printMarkdown(results []crawler.Result, fit bool) {
	for i, result := range results {
		if i > 0 {
			fmt.Println("\n---")
		}
		if !result.Success {
			fmt.Fprintf(os.Stderr, "## %s\n\nerror: %s\n", result.URL, result.ErrorMessage)
			continue
		}
		doc := result.Markdown
		if fit && result.FitMarkdown != "" {
			doc = result.FitMarkdown
		}
		fmt.Println(doc)
	}
}
