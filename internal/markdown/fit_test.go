package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFit_DropsShortBlocks(t *testing.T) {
	t.Parallel()

	doc := strings.Join([]string{
		"# Title",
		"Accept cookies",
		"This paragraph has more than five words in it, so it stays.",
		"OK",
	}, "\n\n")

	fit := Fit(doc, 5)
	require.Contains(t, fit, "# Title")
	require.Contains(t, fit, "so it stays")
	require.NotContains(t, fit, "Accept cookies")
	require.NotContains(t, fit, "OK")
}

func TestFit_KeepsStructuralBlocks(t *testing.T) {
	t.Parallel()

	doc := strings.Join([]string{
		"## Heading",
		"```\ncode\n```",
		"| a | b |\n| --- | --- |\n| 1 | 2 |",
		"- item",
		"1. first",
	}, "\n\n")

	require.Equal(t, doc, Fit(doc, 100))
}

func TestFit_DropsHorizontalRules(t *testing.T) {
	t.Parallel()

	doc := "long enough paragraph with several words here\n\n---\n\nshort"
	fit := Fit(doc, 3)
	require.NotContains(t, fit, "---")
	require.NotContains(t, fit, "short")
}

func TestFit_ZeroThresholdReturnsInput(t *testing.T) {
	t.Parallel()

	doc := "tiny\n\nblocks"
	require.Equal(t, doc, Fit(doc, 0))
}

func TestFit_EmptyDocument(t *testing.T) {
	t.Parallel()

	require.Empty(t, Fit("", 5))
}
