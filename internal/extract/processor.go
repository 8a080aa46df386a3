package extract

import (
	"fmt"

	"github.com/crawlkit/crawlkit/internal/crawler"
	"github.com/crawlkit/crawlkit/internal/markdown"
)

// Processor adapts the extractor and markdown converter to the engine's
// PageProcessor interface.
type Processor struct {
	extractor *Extractor
}

// NewProcessor returns a Processor backed by a fresh Extractor.
func NewProcessor() *Processor {
	return &Processor{extractor: New()}
}

// Process runs extraction and markdown generation for one fetched page.
func (p *Processor) Process(page crawler.Page, run crawler.RunConfig) (crawler.ProcessedPage, error) {
	pageURL := page.FinalURL
	if pageURL == "" {
		pageURL = page.URL
	}
	extraction, err := p.extractor.Extract(pageURL, page.Body, Options{
		ExcludedTags:         run.ExcludedTags,
		ExcludeExternalLinks: run.ExcludeExternalLinks,
	})
	if err != nil {
		return crawler.ProcessedPage{}, fmt.Errorf("extract: %w", err)
	}

	md, err := markdown.Convert(extraction.CleanedHTML)
	if err != nil {
		return crawler.ProcessedPage{}, fmt.Errorf("convert markdown: %w", err)
	}

	return crawler.ProcessedPage{
		Metadata:      extraction.Metadata,
		Links:         extraction.Links,
		ExternalLinks: extraction.ExternalLinks,
		Media:         extraction.Media,
		CleanedHTML:   extraction.CleanedHTML,
		Markdown:      md,
		FitMarkdown:   markdown.Fit(md, run.WordCountThreshold),
	}, nil
}
