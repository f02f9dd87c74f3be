package model

import (
	"github.com/google/uuid"
)

type State string

const (
	StateIdle        State = "idle"
	StateAcquiring   State = "acquiring"
	StateNormalizing State = "normalizing"
	StateReady       State = "ready"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition can happen for the request.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// Metadata describes an article. Every field is optional: nil means the
// source did not supply it, which is not the same as an empty string.
type Metadata struct {
	Title         *string `json:"title,omitempty"`
	Author        *string `json:"author,omitempty"`
	PublishedTime *string `json:"publishedTime,omitempty"`
	OGImage       *string `json:"ogImage,omitempty"`
	Language      *string `json:"language,omitempty"`
}

// RawContent is what a content source extracted from a page.
type RawContent struct {
	Markdown string   `json:"markdown"`
	Metadata Metadata `json:"metadata"`
}

// Article is the readable form handed to the renderer.
type Article struct {
	Markdown string   `json:"markdown"`
	Metadata Metadata `json:"metadata"`
}

// AsArticle presents raw content unchanged.
func (r RawContent) AsArticle() Article {
	return Article{Markdown: r.Markdown, Metadata: r.Metadata}
}

// ReadRequest is a queued request to read a URL.
type ReadRequest struct {
	ID  uuid.UUID `json:"id"`
	URL string    `json:"url"`
}

// NewReadRequest creates a ReadRequest with a fresh ID.
func NewReadRequest(rawURL string) ReadRequest {
	return ReadRequest{
		ID:  uuid.New(),
		URL: rawURL,
	}
}

// String returns a pointer to s, for optional metadata fields.
func String(s string) *string {
	return &s
}

// Value dereferences an optional field, returning "" when absent.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
