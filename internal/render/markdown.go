package render

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Render parses markdown and returns its presentation tree. Raw HTML in the
// markdown is dropped.
func Render(markdown string) *Node {
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	w := walker{source: source}
	return Element("article", []Attr{{"class", "markdown"}}, w.children(doc)...)
}

// RenderHTML is Render followed by HTML.
func RenderHTML(markdown string) string {
	return Render(markdown).HTML()
}

type walker struct {
	source []byte
}

func (w walker) children(n ast.Node) []*Node {
	var out []*Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if node := w.node(c); node != nil {
			out = append(out, node)
		}
	}
	return out
}

func (w walker) node(n ast.Node) *Node {
	switch n := n.(type) {
	case *ast.Paragraph:
		// a lone image becomes a figure, which cannot live inside <p>
		if img, ok := n.FirstChild().(*ast.Image); ok && n.ChildCount() == 1 {
			return w.node(img)
		}
		return Element("p", nil, w.children(n)...)
	case *ast.TextBlock:
		return Fragment(w.children(n)...)
	case *ast.Heading:
		return Element("h"+strconv.Itoa(n.Level), nil, w.children(n)...)
	case *ast.Blockquote:
		return Element("blockquote", nil, w.children(n)...)
	case *ast.ThematicBreak:
		return Element("hr", nil)
	case *ast.List:
		if !n.IsOrdered() {
			return Element("ul", nil, w.children(n)...)
		}
		var attrs []Attr
		if n.Start > 1 {
			attrs = append(attrs, Attr{"start", strconv.Itoa(n.Start)})
		}
		return Element("ol", attrs, w.children(n)...)
	case *ast.ListItem:
		return Element("li", nil, w.children(n)...)
	case *ast.FencedCodeBlock:
		return Code(string(n.Language(w.source)), w.lines(n), true)
	case *ast.CodeBlock:
		return Code("", w.lines(n), true)
	case *ast.CodeSpan:
		return Code("", w.plain(n), false)
	case *ast.Emphasis:
		tag := "em"
		if n.Level == 2 {
			tag = "strong"
		}
		return Element(tag, nil, w.children(n)...)
	case *ast.Link:
		return Link(string(n.Destination), w.children(n)...)
	case *ast.AutoLink:
		href := string(n.URL(w.source))
		if n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(href), "mailto:") {
			href = "mailto:" + href
		}
		return Link(href, Text(string(n.Label(w.source))))
	case *ast.Image:
		return Image(string(n.Destination), w.plain(n))
	case *ast.Text:
		node := Text(string(n.Segment.Value(w.source)))
		switch {
		case n.HardLineBreak():
			return Fragment(node, Element("br", nil))
		case n.SoftLineBreak():
			return Fragment(node, Text("\n"))
		}
		return node
	case *ast.String:
		return Text(string(n.Value))
	case *ast.RawHTML, *ast.HTMLBlock:
		return nil
	case *east.Strikethrough:
		return Element("del", nil, w.children(n)...)
	case *east.TaskCheckBox:
		attrs := []Attr{{"type", "checkbox"}, {"disabled", ""}}
		if n.IsChecked {
			attrs = append(attrs, Attr{"checked", ""})
		}
		return Element("input", attrs)
	case *east.Table:
		return w.table(n)
	}
	return Fragment(w.children(n)...)
}

func (w walker) table(t *east.Table) *Node {
	var head, body []*Node
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		cells := w.cells(row, t.Alignments)
		if _, ok := row.(*east.TableHeader); ok {
			head = append(head, Element("tr", nil, cells...))
			continue
		}
		body = append(body, Element("tr", nil, cells...))
	}

	var tbody *Node
	if len(body) > 0 {
		tbody = Element("tbody", nil, body...)
	}
	return Element("table", nil, Element("thead", nil, head...), tbody)
}

func (w walker) cells(row ast.Node, alignments []east.Alignment) []*Node {
	_, header := row.(*east.TableHeader)
	tag := "td"
	if header {
		tag = "th"
	}

	var out []*Node
	i := 0
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		var attrs []Attr
		if i < len(alignments) && alignments[i] != east.AlignNone {
			attrs = []Attr{{"style", "text-align:" + alignments[i].String()}}
		}
		out = append(out, Element(tag, attrs, w.children(c)...))
		i++
	}
	return out
}

// lines joins the raw lines of a code block.
func (w walker) lines(n ast.Node) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(w.source))
	}
	return sb.String()
}

// plain flattens inline children to text, as needed for alt text and code spans.
func (w walker) plain(n ast.Node) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			sb.Write(c.Segment.Value(w.source))
			if c.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(c.Value)
		default:
			sb.WriteString(w.plain(c))
		}
	}
	return sb.String()
}
