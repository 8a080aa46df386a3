package markdown

import "strings"

// Fit filters a markdown document down to its substantive blocks. Blocks
// shorter than threshold words are dropped unless they are structural
// (headings, code fences, tables, list items), which keeps the document
// navigable while removing boilerplate like cookie banners and footer links.
func Fit(doc string, threshold int) string {
	if threshold <= 0 {
		return doc
	}
	blocks := strings.Split(doc, "\n\n")
	kept := make([]string, 0, len(blocks))
	for _, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		if isStructural(trimmed) || wordCount(trimmed) >= threshold {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n\n")
}

func isStructural(block string) bool {
	switch {
	case strings.HasPrefix(block, "#"):
		return true
	case strings.HasPrefix(block, "```"):
		return true
	case strings.HasPrefix(block, "|"):
		return true
	case strings.HasPrefix(block, "- "), strings.HasPrefix(block, "1. "):
		return true
	case block == "---":
		return false
	}
	return false
}

func wordCount(block string) int {
	return len(strings.Fields(block))
}
