package web

import (
	"net/url"
	"regexp"
	"strings"
)

// collapsedScheme matches a scheme whose "//" was squashed by a proxy or by
// path cleaning ("https:/example.com").
var collapsedScheme = regexp.MustCompile(`(?i)^(https?):/*`)

// reconstructURL rebuilds the article URL carried in a /read/{url} path.
// path is still percent-encoded and is decoded once here. A collapsed scheme
// is repaired and a missing one defaults to https. The request's query string
// belongs to the article.
func reconstructURL(path, rawQuery string) string {
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}
	path = strings.TrimSpace(strings.TrimPrefix(path, "/"))
	if path == "" {
		return ""
	}

	if collapsedScheme.MatchString(path) {
		path = collapsedScheme.ReplaceAllString(path, "$1://")
	} else {
		path = "https://" + path
	}

	if rawQuery != "" {
		path += "?" + rawQuery
	}
	return path
}
