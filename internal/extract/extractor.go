// Package extract derives structured content from raw page HTML.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crawlkit/crawlkit/internal/crawler"
)

// Tags always stripped before markdown generation, independent of the
// caller's excluded_tags list.
var defaultStripTags = []string{"script", "style", "noscript", "template"}

// Options controls what the extractor removes and keeps.
type Options struct {
	ExcludedTags         []string
	ExcludeExternalLinks bool
}

// Extraction is the structured output for one page.
type Extraction struct {
	Metadata      crawler.Metadata
	Links         []crawler.Link
	ExternalLinks []crawler.Link
	Media         []crawler.Image
	CleanedHTML   string
}

// Extractor parses HTML with goquery and pulls out metadata, links, media,
// and a cleaned document body.
type Extractor struct{}

// New returns a ready Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract processes the body fetched from pageURL.
func (e *Extractor) Extract(pageURL string, body []byte, opts Options) (Extraction, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return Extraction{}, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Extraction{}, fmt.Errorf("parse html: %w", err)
	}

	out := Extraction{
		Metadata: e.metadata(doc, base),
	}
	e.links(doc, base, opts, &out)
	e.media(doc, base, &out)

	cleaned, err := e.clean(doc, opts)
	if err != nil {
		return Extraction{}, err
	}
	out.CleanedHTML = cleaned
	return out, nil
}

func (e *Extractor) metadata(doc *goquery.Document, base *url.URL) crawler.Metadata {
	meta := crawler.Metadata{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		meta.Language = strings.TrimSpace(lang)
	}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		switch strings.ToLower(s.AttrOr("name", "")) {
		case "description":
			meta.Description = content
		case "keywords":
			meta.Keywords = content
		}
		switch strings.ToLower(s.AttrOr("property", "")) {
		case "og:title":
			meta.OgTitle = content
		case "og:description":
			meta.OgDescription = content
		case "og:image":
			meta.OgImage = resolve(base, content)
		case "og:site_name":
			meta.OgSiteName = content
		}
	})
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		meta.Canonical = resolve(base, href)
	}
	return meta
}

func (e *Extractor) links(doc *goquery.Document, base *url.URL, opts Options, out *Extraction) {
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		abs := crawler.ResolveRef(base, s.AttrOr("href", ""))
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		link := crawler.Link{
			URL:  abs,
			Text: squashSpace(s.Text()),
		}
		target, err := url.Parse(abs)
		if err != nil {
			return
		}
		if strings.EqualFold(target.Hostname(), base.Hostname()) {
			out.Links = append(out.Links, link)
			return
		}
		if !opts.ExcludeExternalLinks {
			out.ExternalLinks = append(out.ExternalLinks, link)
		}
	})
}

func (e *Extractor) media(doc *goquery.Document, base *url.URL, out *Extraction) {
	seen := make(map[string]struct{})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		abs := resolve(base, s.AttrOr("src", ""))
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out.Media = append(out.Media, crawler.Image{
			URL:   abs,
			Alt:   strings.TrimSpace(s.AttrOr("alt", "")),
			Title: strings.TrimSpace(s.AttrOr("title", "")),
		})
	})
}

func (e *Extractor) clean(doc *goquery.Document, opts Options) (string, error) {
	for _, tag := range defaultStripTags {
		doc.Find(tag).Remove()
	}
	for _, tag := range opts.ExcludedTags {
		tag = strings.TrimSpace(strings.ToLower(tag))
		if tag == "" {
			continue
		}
		doc.Find(tag).Remove()
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		html, err := doc.Html()
		if err != nil {
			return "", fmt.Errorf("render cleaned html: %w", err)
		}
		return html, nil
	}
	html, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("render cleaned html: %w", err)
	}
	return strings.TrimSpace(html), nil
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

func squashSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
