package source

import (
	"net/url"
	"strings"

	"shift/internal/model"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// Selectors tried in order; the first non-empty value wins.
var (
	titleSelectors = []string{
		`meta[property="og:title"]`,
		`meta[name="twitter:title"]`,
	}
	authorSelectors = []string{
		`meta[name="author"]`,
		`meta[property="article:author"]`,
		`meta[name="parsely-author"]`,
	}
	publishedSelectors = []string{
		`meta[property="article:published_time"]`,
		`meta[name="date"]`,
		`meta[name="pubdate"]`,
		`meta[itemprop="datePublished"]`,
	}
	imageSelectors = []string{
		`meta[property="og:image"]`,
		`meta[name="twitter:image"]`,
	}
)

// extractMetadata combines what readability found with the page's meta tags.
// Fields nobody supplies stay nil.
func extractMetadata(doc *goquery.Document, article readability.Article, pageURL *url.URL) model.Metadata {
	var meta model.Metadata

	meta.Title = firstNonEmpty(article.Title, metaContent(doc, titleSelectors), strings.TrimSpace(doc.Find("title").First().Text()))
	meta.Author = firstNonEmpty(article.Byline, metaContent(doc, authorSelectors))
	meta.PublishedTime = firstNonEmpty(metaContent(doc, publishedSelectors), attr(doc.Find("time[datetime]").First(), "datetime"))
	meta.OGImage = firstNonEmpty(absolute(pageURL, metaContent(doc, imageSelectors)), absolute(pageURL, article.Image))
	meta.Language = firstNonEmpty(attr(doc.Find("html").First(), "lang"), metaContent(doc, []string{`meta[http-equiv="content-language"]`}))

	return meta
}

func metaContent(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if v := attr(doc.Find(sel).First(), "content"); v != "" {
			return v
		}
	}
	return ""
}

func attr(sel *goquery.Selection, name string) string {
	v, ok := sel.Attr(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// absolute resolves ref against base. Unparseable refs are returned as is.
func absolute(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func firstNonEmpty(values ...string) *string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return model.String(v)
		}
	}
	return nil
}
