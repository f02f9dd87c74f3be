package render

import (
	"net/url"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// removeFigure drops the whole figure when the image fails to load, so a
// broken image leaves nothing behind.
const removeFigure = "var f=this.closest('figure');if(f){f.remove()}else{this.remove()}"

var (
	formatter = chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.PreventSurroundingPre(true),
	)
	highlightStyle = styles.Get("github")
)

// Image renders an image with an optional caption. It returns nil when src
// is empty or not a loadable URL.
func Image(src, alt string) *Node {
	src = strings.TrimSpace(src)
	if src == "" || unsafeURL(src) {
		return nil
	}

	var caption *Node
	if alt = strings.TrimSpace(alt); alt != "" {
		caption = Element("figcaption", nil, Text(alt))
	}

	img := Element("img", []Attr{
		{"src", src},
		{"alt", alt},
		{"loading", "lazy"},
		{"onerror", removeFigure},
	})
	return Element("figure", nil, img, caption)
}

// Link renders children as a link to href. Without a usable href the
// children are returned as plain inline content. http and https links are
// external and open in a new browsing context without opener or referrer.
func Link(href string, children ...*Node) *Node {
	href = strings.TrimSpace(href)
	if href == "" || unsafeURL(href) {
		return Fragment(children...)
	}

	attrs := []Attr{{"href", href}}
	if IsExternal(href) {
		attrs = append(attrs,
			Attr{"target", "_blank"},
			Attr{"rel", "noopener noreferrer"})
	}
	return Element("a", attrs, children...)
}

// IsExternal reports whether href uses the http or https scheme.
func IsExternal(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// Code renders inline code or a code block. Blocks with a language tag are
// highlighted; everything else is plain monospace text.
func Code(lang, body string, block bool) *Node {
	if !block {
		return Element("code", nil, Text(body))
	}

	body = strings.TrimSuffix(body, "\n")
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return Element("pre", nil, Element("code", nil, Text(body)))
	}

	code := Element("code", []Attr{{"class", "language-" + lang}})
	if highlighted, ok := highlight(lang, body); ok {
		code.Children = []*Node{Raw(highlighted)}
	} else {
		code.Children = []*Node{Text(body)}
	}
	return Element("pre", []Attr{{"class", "chroma"}, {"data-language", lang}}, code)
}

func highlight(lang, body string) (string, bool) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, body)
	if err != nil {
		return "", false
	}
	var sb strings.Builder
	if err := formatter.Format(&sb, highlightStyle, iterator); err != nil {
		return "", false
	}
	return sb.String(), true
}

// HighlightCSS returns the stylesheet for highlighted code blocks.
func HighlightCSS() (string, error) {
	var sb strings.Builder
	if err := formatter.WriteCSS(&sb, highlightStyle); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// unsafeURL reports script-bearing schemes that must never reach an href or src.
func unsafeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	switch strings.ToLower(u.Scheme) {
	case "javascript", "vbscript", "data":
		return true
	}
	return false
}
