// Package source acquires raw article markdown and metadata for a URL.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shift/internal/model"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

var (
	// ErrAcquisition wraps every failure to obtain a page's content.
	ErrAcquisition = errors.New("failed to load article")
	// ErrInvalidURL is returned for URLs the reader refuses to fetch.
	ErrInvalidURL = errors.New("invalid URL")
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "shift/1.0 (+https://github.com/shift-reader/shift)"
	maxBodyBytes     = 10 << 20
)

// Source acquires raw content for a URL.
type Source interface {
	Acquire(ctx context.Context, rawURL string) (*model.RawContent, error)
}

// Result mirrors the acquisition boundary: either Data or Error is set.
type Result struct {
	Success bool              `json:"success"`
	Data    *model.RawContent `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Fetch runs src and folds the outcome into a Result.
func Fetch(ctx context.Context, src Source, rawURL string) Result {
	raw, err := src.Acquire(ctx, rawURL)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Data: raw}
}

// Options configures ReadabilitySource.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	RequireHTTPS bool
}

// ReadabilitySource downloads a page, isolates the article with readability
// and converts it to markdown.
type ReadabilitySource struct {
	client       *http.Client
	userAgent    string
	requireHTTPS bool
}

// NewReadabilitySource creates a ReadabilitySource.
func NewReadabilitySource(opts Options) *ReadabilitySource {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &ReadabilitySource{
		client:       &http.Client{Timeout: opts.Timeout},
		userAgent:    opts.UserAgent,
		requireHTTPS: opts.RequireHTTPS,
	}
}

// Acquire fetches rawURL and extracts its main content.
func (s *ReadabilitySource) Acquire(ctx context.Context, rawURL string) (*model.RawContent, error) {
	pageURL, err := ValidateURL(rawURL, s.requireHTTPS)
	if err != nil {
		return nil, err
	}

	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}

	raw, err := Parse(body, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	return raw, nil
}

func (s *ReadabilitySource) fetch(ctx context.Context, pageURL *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// Parse extracts the article in an HTML page as markdown plus metadata.
func Parse(page []byte, pageURL *url.URL) (*model.RawContent, error) {
	article, err := readability.FromReader(bytes.NewReader(page), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extracting article: %w", err)
	}
	if strings.TrimSpace(article.Content) == "" {
		return nil, errors.New("no readable content found")
	}

	markdown, err := htmltomarkdown.ConvertString(article.Content)
	if err != nil {
		return nil, fmt.Errorf("converting HTML to markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return nil, errors.New("no readable content found")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	return &model.RawContent{
		Markdown: markdown,
		Metadata: extractMetadata(doc, article, pageURL),
	}, nil
}

// ValidateURL accepts absolute http(s) URLs with a host. When requireHTTPS is
// set, only https is accepted.
func ValidateURL(rawURL string, requireHTTPS bool) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: please enter a URL", ErrInvalidURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: %s has no host", ErrInvalidURL, rawURL)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if requireHTTPS {
			return nil, fmt.Errorf("%w: please enter a valid HTTPS URL", ErrInvalidURL)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, parsed.Scheme)
	}
	return parsed, nil
}
