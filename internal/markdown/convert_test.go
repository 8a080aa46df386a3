package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvert_Headings(t *testing.T) {
	t.Parallel()

	md, err := Convert(`<h1>Title</h1><h2>Section</h2><h3>Sub</h3>`)
	require.NoError(t, err)
	require.Equal(t, "# Title\n\n## Section\n\n### Sub", md)
}

func TestConvert_ParagraphsAndInline(t *testing.T) {
	t.Parallel()

	md, err := Convert(`<p>Plain with <strong>bold</strong>, <em>italic</em> and <code>mono</code>.</p>`)
	require.NoError(t, err)
	require.Equal(t, "Plain with **bold**, *italic* and `mono`.", md)
}

func TestConvert_Links(t *testing.T) {
	t.Parallel()

	md, err := Convert(`<p>See the <a href="https://example.com/docs">docs</a>.</p>`)
	require.NoError(t, err)
	require.Equal(t, "See the [docs](https://example.com/docs).", md)

	md, err = Convert(`<p><a href="https://example.com/">https://example.com/</a></p>`)
	require.NoError(t, err)
	require.Equal(t, "[https://example.com/](https://example.com/)", md)

	md, err = Convert(`<p><a>no href</a></p>`)
	require.NoError(t, err)
	require.Equal(t, "no href", md)
}

func TestConvert_Images(t *testing.T) {
	t.Parallel()

	md, err := Convert(`<p><img src="/cover.png" alt="Cover"></p>`)
	require.NoError(t, err)
	require.Equal(t, "![Cover](/cover.png)", md)
}

func TestConvert_UnorderedList(t *testing.T) {
	t.Parallel()

	md, err := Convert(`<ul><li>one</li><li>two</li></ul>`)
	require.NoError(t, err)
	require.Equal(t, "- one\n- two", md)
}

func TestConvert_OrderedList(t *testing.T) {
	t.Parallel()

	md, err := Convert(`<ol><li>first</li><li>second</li></ol>`)
	require.NoError(t, err)
	require.Equal(t, "1. first\n2. second", md)
}

func TestConvert_NestedList(t *testing.T) {
	t.Parallel()

	md, err := Convert(`<ul><li>outer<ul><li>inner</li></ul></li></ul>`)
	require.NoError(t, err)
	require.Contains(t, md, "- outer")
	require.Contains(t, md, "  - inner")
}

func TestConvert_Blockquote(t *testing.T) {
	t.Parallel()

	md, err := Convert(`<blockquote><p>quoted wisdom</p></blockquote>`)
	require.NoError(t, err)
	require.Equal(t, "> quoted wisdom", md)
}

func TestConvert_CodeBlock(t *testing.T) {
	t.Parallel()

	md, err := Convert("<pre>func main() {\n\tfmt.Println(\"hi\")\n}</pre>")
	require.NoError(t, err)
	require.Equal(t, "```\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n```", md)
}

func TestConvert_Table(t *testing.T) {
	t.Parallel()

	md, err := Convert(`<table>
<tr><th>Name</th><th>Value</th></tr>
<tr><td>port</td><td>11235</td></tr>
</table>`)
	require.NoError(t, err)
	require.Equal(t,
		"| Name | Value |\n| --- | --- |\n| port | 11235 |",
		md)
}

func TestConvert_HorizontalRule(t *testing.T) {
	t.Parallel()

	md, err := Convert(`<p>above</p><hr><p>below</p>`)
	require.NoError(t, err)
	require.Equal(t, "above\n\n---\n\nbelow", md)
}

func TestConvert_NestedContainersRecurse(t *testing.T) {
	t.Parallel()

	md, err := Convert(`<div><section><article><h2>Inside</h2><p>content</p></article></section></div>`)
	require.NoError(t, err)
	require.Equal(t, "## Inside\n\ncontent", md)
}

func TestConvert_WhitespaceCollapsed(t *testing.T) {
	t.Parallel()

	md, err := Convert("<p>  lots   of\n   space  </p>")
	require.NoError(t, err)
	require.Equal(t, "lots of space", md)
}

func TestConvert_FullDocument(t *testing.T) {
	t.Parallel()

	md, err := Convert(`<html><head><title>ignored</title></head>
<body><h1>Doc</h1><p>body text</p></body></html>`)
	require.NoError(t, err)
	require.Equal(t, "# Doc\n\nbody text", md)
}

func TestConvert_EmptyInput(t *testing.T) {
	t.Parallel()

	md, err := Convert("")
	require.NoError(t, err)
	require.Empty(t, md)
}
