package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Node is one element of the decoded XML tree. Element names and
// attribute keys are lowercased; mixed content is preserved in order as
// child nodes, with character data carried by text nodes (Name == "").
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string // set only on text nodes
	Children []*Node
}

// IsText reports whether the node is a character-data segment.
func (n *Node) IsText() bool {
	return n.Name == ""
}

// Attr returns a lowercased attribute value.
func (n *Node) Attr(key string) string {
	return n.Attrs[strings.ToLower(key)]
}

// Child returns the first child element with the given name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every direct child element with the given name.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Descendants returns every descendant element with the given name, in
// document order.
func (n *Node) Descendants(name string) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			if c.Name == name {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// FlatText returns the depth-first concatenation of every text segment
// beneath the node, whitespace-normalized.
func (n *Node) FlatText() string {
	var b strings.Builder
	n.writeFlatText(&b)
	return normalizeSpace(b.String())
}

func (n *Node) writeFlatText(b *strings.Builder) {
	if n.IsText() {
		b.WriteString(n.Text)
		return
	}
	for _, c := range n.Children {
		c.writeFlatText(b)
		b.WriteByte(' ')
	}
}

// normalizeSpace collapses whitespace runs to single spaces and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// decodeTree parses XML bytes into a Node tree rooted at a synthetic
// document node. Malformed markup fails with the decoder's error.
func decodeTree(data []byte) (*Node, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	root := &Node{Name: "#document", Attrs: map[string]string{}}
	stack := []*Node{root}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch tok := token.(type) {
		case xml.StartElement:
			attrs := make(map[string]string, len(tok.Attr))
			for _, a := range tok.Attr {
				attrs[strings.ToLower(a.Name.Local)] = a.Value
			}
			el := &Node{
				Name:  strings.ToLower(tok.Name.Local),
				Attrs: attrs,
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, el)
			stack = append(stack, el)

		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}

		case xml.CharData:
			text := string(tok)
			if strings.TrimSpace(text) == "" {
				continue
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, &Node{Text: text})
		}
	}

	return root, nil
}
