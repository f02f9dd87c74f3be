// Package render turns article markdown into a presentation tree.
//
// The markdown parser is a collaborator; the interesting part lives in three
// override functions (Image, Link and Code) that decide how the nodes where
// correctness matters are presented. Everything else maps one to one onto
// plain HTML elements.
package render

import (
	"html"
	"strings"
)

// Kind distinguishes the node types of a presentation tree.
type Kind int

const (
	KindElement Kind = iota
	KindText
	// KindFragment groups children without a wrapping element.
	KindFragment
	// KindRaw is pre-rendered, trusted HTML (highlighter output).
	KindRaw
)

// Attr is one element attribute. Attributes keep insertion order so output
// is deterministic.
type Attr struct {
	Key   string
	Value string
}

// Node is a presentation tree node.
type Node struct {
	Kind     Kind
	Tag      string
	Attrs    []Attr
	Text     string
	Children []*Node
}

var voidElements = map[string]bool{
	"br":    true,
	"hr":    true,
	"img":   true,
	"input": true,
}

// Element creates an element node. Nil children are skipped.
func Element(tag string, attrs []Attr, children ...*Node) *Node {
	return &Node{Kind: KindElement, Tag: tag, Attrs: attrs, Children: compact(children)}
}

// Text creates an escaped text node.
func Text(s string) *Node {
	return &Node{Kind: KindText, Text: s}
}

// Fragment groups children. Nil children are skipped.
func Fragment(children ...*Node) *Node {
	return &Node{Kind: KindFragment, Children: compact(children)}
}

// Raw wraps already-rendered HTML.
func Raw(s string) *Node {
	return &Node{Kind: KindRaw, Text: s}
}

// Attr returns the value of key and whether it is set.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Find returns the first node in n's subtree, n included, with the given tag.
func (n *Node) Find(tag string) *Node {
	if n == nil {
		return nil
	}
	if n.Kind == KindElement && n.Tag == tag {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(tag); found != nil {
			return found
		}
	}
	return nil
}

// PlainText concatenates the text of n's subtree.
func (n *Node) PlainText() string {
	var sb strings.Builder
	n.writeText(&sb)
	return sb.String()
}

func (n *Node) writeText(sb *strings.Builder) {
	if n == nil {
		return
	}
	if n.Kind == KindText {
		sb.WriteString(n.Text)
		return
	}
	for _, c := range n.Children {
		c.writeText(sb)
	}
}

// HTML serializes the tree. A nil node renders as nothing.
func (n *Node) HTML() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindText:
		sb.WriteString(html.EscapeString(n.Text))
	case KindRaw:
		sb.WriteString(n.Text)
	case KindFragment:
		for _, c := range n.Children {
			c.write(sb)
		}
	case KindElement:
		sb.WriteByte('<')
		sb.WriteString(n.Tag)
		for _, a := range n.Attrs {
			sb.WriteByte(' ')
			sb.WriteString(a.Key)
			sb.WriteString(`="`)
			sb.WriteString(html.EscapeString(a.Value))
			sb.WriteByte('"')
		}
		sb.WriteByte('>')
		if voidElements[n.Tag] {
			return
		}
		for _, c := range n.Children {
			c.write(sb)
		}
		sb.WriteString("</")
		sb.WriteString(n.Tag)
		sb.WriteByte('>')
	}
}

func compact(nodes []*Node) []*Node {
	out := nodes[:0:0]
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
