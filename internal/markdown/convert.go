// Package markdown converts cleaned HTML into markdown text.
//
// The converter walks the parsed node tree directly rather than relying on
// regex rewrites, so nested structures (lists inside lists, links inside
// headings) come out well formed.
package markdown

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Convert renders an HTML document or fragment as markdown.
func Convert(source string) (string, error) {
	root, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	body := findBody(root)
	if body == nil {
		body = root
	}
	var w writer
	w.walkChildren(body)
	return w.String(), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if body := findBody(c); body != nil {
			return body
		}
	}
	return nil
}

// writer accumulates markdown blocks, ensuring single blank lines between them.
type writer struct {
	blocks []string
	// listDepth tracks nesting for indenting list items.
	listDepth int
}

func (w *writer) String() string {
	return strings.TrimSpace(strings.Join(w.blocks, "\n\n"))
}

func (w *writer) emit(block string) {
	block = strings.TrimRight(block, " \n")
	if strings.TrimSpace(block) == "" {
		return
	}
	w.blocks = append(w.blocks, block)
}

func (w *writer) walkChildren(n *html.Node) {
	var inlineRun strings.Builder
	flush := func() {
		w.emit(squash(inlineRun.String()))
		inlineRun.Reset()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isBlock(c) {
			flush()
			w.block(c)
			continue
		}
		inlineRun.WriteString(inline(c))
	}
	flush()
}

func (w *writer) block(n *html.Node) {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		text := squash(inlineChildren(n))
		if text != "" {
			w.emit(strings.Repeat("#", level) + " " + text)
		}
	case atom.P:
		w.emit(squash(inlineChildren(n)))
	case atom.Blockquote:
		var inner writer
		inner.walkChildren(n)
		quoted := make([]string, 0)
		for _, line := range strings.Split(inner.String(), "\n") {
			quoted = append(quoted, strings.TrimRight("> "+line, " "))
		}
		w.emit(strings.Join(quoted, "\n"))
	case atom.Pre:
		w.emit("```\n" + strings.Trim(rawText(n), "\n") + "\n```")
	case atom.Ul:
		w.list(n, false)
	case atom.Ol:
		w.list(n, true)
	case atom.Table:
		w.table(n)
	case atom.Hr:
		w.emit("---")
	default:
		// div, section, article, main, figure and friends: recurse.
		w.walkChildren(n)
	}
}

func (w *writer) list(n *html.Node, ordered bool) {
	indent := strings.Repeat("  ", w.listDepth)
	var lines []string
	index := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom != atom.Li {
			continue
		}
		index++
		marker := "- "
		if ordered {
			marker = fmt.Sprintf("%d. ", index)
		}
		w.listDepth++
		var inner writer
		inner.listDepth = w.listDepth
		inner.walkChildren(c)
		w.listDepth--
		item := inner.String()
		itemLines := strings.Split(item, "\n")
		for i, line := range itemLines {
			if i == 0 {
				lines = append(lines, indent+marker+line)
			} else {
				lines = append(lines, indent+"  "+line)
			}
		}
	}
	w.emit(strings.Join(lines, "\n"))
}

func (w *writer) table(n *html.Node) {
	var rows [][]string
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.DataAtom == atom.Tr {
				var cells []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.DataAtom == atom.Td || cell.DataAtom == atom.Th {
						cells = append(cells, squash(inlineChildren(cell)))
					}
				}
				if len(cells) > 0 {
					rows = append(rows, cells)
				}
				continue
			}
			visit(c)
		}
	}
	visit(n)
	if len(rows) == 0 {
		return
	}
	var sb strings.Builder
	sb.WriteString("| " + strings.Join(rows[0], " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(rows[0])) + "\n")
	for _, row := range rows[1:] {
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	w.emit(sb.String())
}

func isBlock(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.P, atom.Blockquote, atom.Pre, atom.Ul, atom.Ol, atom.Table,
		atom.Hr, atom.Div, atom.Section, atom.Article, atom.Main,
		atom.Header, atom.Footer, atom.Nav, atom.Aside, atom.Figure,
		atom.Figcaption, atom.Form, atom.Fieldset:
		return true
	}
	return false
}

func inlineChildren(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(inline(c))
	}
	return sb.String()
}

func inline(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.ElementNode:
	default:
		return ""
	}
	switch n.DataAtom {
	case atom.Br:
		return "\n"
	case atom.Strong, atom.B:
		text := squash(inlineChildren(n))
		if text == "" {
			return ""
		}
		return "**" + text + "**"
	case atom.Em, atom.I:
		text := squash(inlineChildren(n))
		if text == "" {
			return ""
		}
		return "*" + text + "*"
	case atom.Code:
		text := strings.TrimSpace(rawText(n))
		if text == "" {
			return ""
		}
		return "`" + text + "`"
	case atom.A:
		text := squash(inlineChildren(n))
		href := attr(n, "href")
		if href == "" {
			return text
		}
		if text == "" {
			text = href
		}
		return "[" + text + "](" + href + ")"
	case atom.Img:
		src := attr(n, "src")
		if src == "" {
			return ""
		}
		return "![" + attr(n, "alt") + "](" + src + ")"
	default:
		return inlineChildren(n)
	}
}

func rawText(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
