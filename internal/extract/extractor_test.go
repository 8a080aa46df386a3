package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>  Sample Page  </title>
  <meta name="description" content="A sample description">
  <meta name="keywords" content="go, crawling">
  <meta property="og:title" content="Sample OG Title">
  <meta property="og:image" content="/img/cover.png">
  <link rel="canonical" href="/canonical">
  <style>body { color: red; }</style>
</head>
<body>
  <nav><a href="/nav-link">Nav</a></nav>
  <script>console.log("boot");</script>
  <main>
    <h1>Sample Page</h1>
    <p>Read the <a href="/docs/guide">guide</a> or visit
       <a href="https://other.example.org/ref">an external reference</a>.</p>
    <p><a href="/docs/guide">guide again</a></p>
    <img src="/img/diagram.png" alt="Diagram" title="The diagram">
    <img src="/img/diagram.png" alt="Duplicate">
    <a href="mailto:team@example.com">mail us</a>
  </main>
</body>
</html>`

func TestExtractor_Metadata(t *testing.T) {
	t.Parallel()

	out, err := New().Extract("https://example.com/docs/", []byte(samplePage), Options{})
	require.NoError(t, err)

	require.Equal(t, "Sample Page", out.Metadata.Title)
	require.Equal(t, "A sample description", out.Metadata.Description)
	require.Equal(t, "go, crawling", out.Metadata.Keywords)
	require.Equal(t, "en", out.Metadata.Language)
	require.Equal(t, "Sample OG Title", out.Metadata.OgTitle)
	require.Equal(t, "https://example.com/img/cover.png", out.Metadata.OgImage)
	require.Equal(t, "https://example.com/canonical", out.Metadata.Canonical)
}

func TestExtractor_LinksSplitAndDeduplicated(t *testing.T) {
	t.Parallel()

	out, err := New().Extract("https://example.com/docs/", []byte(samplePage), Options{})
	require.NoError(t, err)

	internal := make([]string, 0, len(out.Links))
	for _, l := range out.Links {
		internal = append(internal, l.URL)
	}
	require.Equal(t, []string{
		"https://example.com/nav-link",
		"https://example.com/docs/guide",
	}, internal)

	require.Len(t, out.ExternalLinks, 1)
	require.Equal(t, "https://other.example.org/ref", out.ExternalLinks[0].URL)
	require.Equal(t, "an external reference", out.ExternalLinks[0].Text)
}

func TestExtractor_ExcludeExternalLinks(t *testing.T) {
	t.Parallel()

	out, err := New().Extract("https://example.com/docs/", []byte(samplePage), Options{
		ExcludeExternalLinks: true,
	})
	require.NoError(t, err)
	require.Empty(t, out.ExternalLinks)
	require.NotEmpty(t, out.Links)
}

func TestExtractor_Media(t *testing.T) {
	t.Parallel()

	out, err := New().Extract("https://example.com/docs/", []byte(samplePage), Options{})
	require.NoError(t, err)

	require.Len(t, out.Media, 1)
	require.Equal(t, "https://example.com/img/diagram.png", out.Media[0].URL)
	require.Equal(t, "Diagram", out.Media[0].Alt)
	require.Equal(t, "The diagram", out.Media[0].Title)
}

func TestExtractor_CleanStripsDefaultAndExcludedTags(t *testing.T) {
	t.Parallel()

	out, err := New().Extract("https://example.com/", []byte(samplePage), Options{
		ExcludedTags: []string{"nav", " NAV ", ""},
	})
	require.NoError(t, err)

	require.NotContains(t, out.CleanedHTML, "<script")
	require.NotContains(t, out.CleanedHTML, "<style")
	require.NotContains(t, out.CleanedHTML, "<nav")
	require.Contains(t, out.CleanedHTML, "<h1>Sample Page</h1>")
}

func TestExtractor_InvalidPageURL(t *testing.T) {
	t.Parallel()

	_, err := New().Extract("http://exa mple.com", []byte(samplePage), Options{})
	require.Error(t, err)
}

func TestExtractor_EmptyBody(t *testing.T) {
	t.Parallel()

	out, err := New().Extract("https://example.com/", nil, Options{})
	require.NoError(t, err)
	require.Empty(t, out.Links)
	require.Empty(t, out.Media)
}
