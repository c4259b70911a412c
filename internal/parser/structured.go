package parser

import (
	"strings"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

// structuredContent extracts the typed breakdown of a div's body:
// paragraphs, tables, extracts, and an optional table of contents.
func structuredContent(n *Node) *domain.StructuredContent {
	sc := &domain.StructuredContent{}

	for _, p := range paragraphNodes(n) {
		if text := p.FlatText(); text != "" {
			sc.Paragraphs = append(sc.Paragraphs, text)
		}
	}

	for _, t := range n.Descendants("table") {
		sc.Tables = append(sc.Tables, domain.Table{
			Raw:  rawTree(t),
			Text: t.FlatText(),
		})
	}

	for _, e := range n.Descendants("extract") {
		if text := e.FlatText(); text != "" {
			sc.Extracts = append(sc.Extracts, text)
		}
	}

	if toc := n.Child("cfrtoc"); toc != nil {
		for _, c := range toc.Children {
			if text := c.FlatText(); text != "" {
				sc.TableOfContents = append(sc.TableOfContents, text)
			}
		}
	}

	if sc.IsEmpty() {
		return nil
	}
	return sc
}

// paragraphNodes returns every paragraph-level element (P, FP*, PSPACE)
// beneath the node.
func paragraphNodes(n *Node) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			if c.Name == "p" || c.Name == "pspace" || strings.HasPrefix(c.Name, "fp") {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// rawTree converts a node subtree to a generic map for storage.
// Attribute keys are kept alongside a "children" list and "text" slots.
func rawTree(n *Node) map[string]any {
	if n.IsText() {
		return map[string]any{"text": n.Text}
	}

	out := map[string]any{"tag": n.Name}
	for k, v := range n.Attrs {
		out[k] = v
	}

	if len(n.Children) > 0 {
		children := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			children = append(children, rawTree(c))
		}
		out["children"] = children
	}
	return out
}
