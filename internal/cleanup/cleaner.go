// Package cleanup turns scraped article markdown into clean markdown with the
// help of a text generation service.
//
// A cleanup never fails outright. Every problem (service down, unparseable
// reply, schema violation, incomplete article) produces a fallback Outcome
// that carries the raw article and the reason, so callers have exactly one
// thing to render.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shift/internal/model"

	"go.uber.org/zap"
)

// Reason says why a cleanup fell back to the raw article.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonServiceUnavailable Reason = "service_unavailable"
	ReasonUnparseable        Reason = "unparseable_response"
	ReasonSchemaViolation    Reason = "schema_violation"
	ReasonIncomplete         Reason = "incomplete_extraction"
)

// Finer-grained causes of ReasonIncomplete, kept for prompt tuning.
const (
	DetailMarkedIncomplete = "marked_incomplete"
	DetailEmptyContent     = "empty_content"
)

// Outcome is the result of one cleanup attempt.
type Outcome struct {
	Article  model.Article
	Fallback bool
	Reason   Reason
	// Detail refines Reason (e.g. "empty_content" vs "marked_incomplete").
	Detail   string
	Warnings []string
	// Err is the underlying cause of a fallback, for logs only.
	Err error
}

// Service sends raw markdown for cleanup and returns the service reply.
type Service interface {
	Request(ctx context.Context, rawMarkdown string) (string, error)
}

// Cleaner runs one cleanup attempt per call. It does not retry.
type Cleaner struct {
	service Service
	logger  *zap.Logger
}

// NewCleaner creates a Cleaner on top of service.
func NewCleaner(service Service, logger *zap.Logger) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{service: service, logger: logger}
}

// Run cleans raw.Markdown. raw is never modified, and the returned article
// always carries raw.Metadata untouched.
func (c *Cleaner) Run(ctx context.Context, raw model.RawContent) Outcome {
	text, err := c.service.Request(ctx, raw.Markdown)
	if err != nil {
		return c.fallback(raw, ReasonServiceUnavailable, "", err)
	}

	extracted := Extract(text)
	if extracted.Kind != WellFormed {
		cause := fmt.Errorf("%w: %s", ErrExtraction, extracted.Kind)
		if extracted.Err != nil {
			cause = fmt.Errorf("%w: %s: %w", ErrExtraction, extracted.Kind, extracted.Err)
		}
		c.logger.Debug("Unparseable cleanup reply",
			zap.Int("reply_len", len(text)),
			zap.Int("candidate_len", len(extracted.Candidate)))
		return c.fallback(raw, ReasonUnparseable, extracted.Kind.String(), cause)
	}

	result, err := Validate(extracted.Object)
	if err != nil {
		return c.fallback(raw, ReasonSchemaViolation, "", err)
	}

	if !result.IsComplete {
		out := c.fallback(raw, ReasonIncomplete, DetailMarkedIncomplete, ErrIncomplete)
		out.Warnings = result.Warnings
		return out
	}
	content := strings.TrimSpace(result.Content)
	if content == "" {
		out := c.fallback(raw, ReasonIncomplete, DetailEmptyContent, ErrIncomplete)
		out.Warnings = result.Warnings
		return out
	}

	c.logger.Debug("Cleanup succeeded",
		zap.Int("raw_len", len(raw.Markdown)),
		zap.Int("clean_len", len(content)),
		zap.Strings("warnings", result.Warnings))

	return Outcome{
		Article: model.Article{
			Markdown: content,
			Metadata: raw.Metadata,
		},
		Warnings: result.Warnings,
	}
}

func (c *Cleaner) fallback(raw model.RawContent, reason Reason, detail string, err error) Outcome {
	c.logger.Warn("Cleanup fell back to raw content",
		zap.String("reason", string(reason)),
		zap.String("detail", detail),
		zap.Error(err))

	return Outcome{
		Article:  raw.AsArticle(),
		Fallback: true,
		Reason:   reason,
		Detail:   detail,
		Err:      err,
	}
}

// Response is the tagged result of Clean.
type Response struct {
	Success bool           `json:"success"`
	Data    *model.Article `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Reason  Reason         `json:"reason,omitempty"`
}

// Clean is the callable boundary of the package: it cleans rawMarkdown and
// reports failure in the Response instead of returning an error. A panic
// inside the pipeline is recovered into a failed Response.
func (c *Cleaner) Clean(ctx context.Context, rawMarkdown string, metadata *model.Metadata) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Cleanup panicked", zap.Any("panic", r))
			resp = Response{Success: false, Error: "Failed to clean markdown content"}
		}
	}()

	raw := model.RawContent{Markdown: rawMarkdown}
	if metadata != nil {
		raw.Metadata = *metadata
	}

	out := c.Run(ctx, raw)
	if !out.Fallback {
		article := out.Article
		return Response{Success: true, Data: &article}
	}
	return Response{Success: false, Error: errorMessage(out), Reason: out.Reason}
}

func errorMessage(out Outcome) string {
	switch {
	case errors.Is(out.Err, ErrService):
		return "Failed to clean markdown content"
	case out.Reason == ReasonUnparseable:
		return "Failed to parse cleanup response"
	case out.Reason == ReasonIncomplete:
		return "Could not extract meaningful content from the article"
	default:
		return "Failed to clean markdown content"
	}
}
