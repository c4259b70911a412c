package parser

import (
	"fmt"
	"strings"
)

// inlineVerbatim are tags preserved as-is in formatted output.
var inlineVerbatim = map[string]bool{
	"i": true, "b": true, "em": true, "strong": true,
	"u": true, "sub": true, "sup": true,
}

// typefaceTags maps the numeric T attribute of an E element to an HTML
// tag. Values 04 and 05 render as small caps.
var typefaceTags = map[string]string{
	"02": "b",
	"03": "i",
	"51": "sup",
	"52": "sub",
}

// plainText returns the node's full depth-first text.
func plainText(n *Node) string {
	return n.FlatText()
}

// formattedText renders the node's content as restricted HTML: a fixed
// inline tag set is preserved, typeface codes are translated, and
// paragraph-level elements become <p>.
func formattedText(n *Node) string {
	var b strings.Builder
	for _, c := range n.Children {
		writeFormatted(&b, c)
	}
	return strings.TrimSpace(b.String())
}

func writeFormatted(b *strings.Builder, n *Node) {
	if n.IsText() {
		b.WriteString(n.Text)
		return
	}

	switch {
	case inlineVerbatim[n.Name]:
		wrapFormatted(b, n, n.Name, "")

	case n.Name == "e":
		t := n.Attr("t")
		switch {
		case t == "04" || t == "05":
			wrapFormatted(b, n, "span", ` class="small-caps"`)
		case typefaceTags[t] != "":
			wrapFormatted(b, n, typefaceTags[t], "")
		default:
			writeFormattedChildren(b, n)
		}

	case n.Name == "su":
		wrapFormatted(b, n, "sup", "")

	case n.Name == "p":
		wrapFormatted(b, n, "p", "")
		b.WriteByte('\n')

	case strings.HasPrefix(n.Name, "fp") || n.Name == "pspace":
		wrapFormatted(b, n, "p", "")
		b.WriteByte('\n')

	default:
		writeFormattedChildren(b, n)
		b.WriteByte(' ')
	}
}

func wrapFormatted(b *strings.Builder, n *Node, tag, attrs string) {
	fmt.Fprintf(b, "<%s%s>", tag, attrs)
	writeFormattedChildren(b, n)
	fmt.Fprintf(b, "</%s>", tag)
}

func writeFormattedChildren(b *strings.Builder, n *Node) {
	for _, c := range n.Children {
		writeFormatted(b, c)
	}
}
