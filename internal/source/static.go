package source

import (
	"context"
	"time"

	"shift/internal/model"
)

// Static serves fixed content after an artificial delay. It stands in for a
// real source in demos and offline development.
type Static struct {
	Content model.RawContent
	Delay   time.Duration
}

// Acquire waits for Delay (or ctx) and returns a copy of Content.
func (s *Static) Acquire(ctx context.Context, rawURL string) (*model.RawContent, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	raw := s.Content
	return &raw, nil
}

// DemoArticle is the article served by the demo source.
func DemoArticle() model.RawContent {
	return model.RawContent{
		Markdown: `# The Art of Staying in Touch

On modern friendship and staying close as life widens.

Subscribe to our newsletter! | Home | World | Culture | Sign in

Last week I called an old friend who now lives oceans away, and we ended up talking about how keeping in touch gets harder as our lives stretch out across cities, countries and time zones.

## The Challenge of Distance

The challenge isn't only geographical. Careers, families and everyday obligations make friendship something that needs intention.

### What Helps

1. **Schedule regular check-ins.** A monthly call on the calendar actually happens.
2. **Share the mundane.** A photo of lunch or a song that reminded you of them keeps the thread alive.
3. **Be present.** When you do get time together, put the phone away.

ADVERTISEMENT

## Conclusion

Staying in touch is an art that takes patience and grace. The effort is worth it.

Related: 10 ways to make new friends after 30 | Share on Twitter | Share on Facebook`,
		Metadata: model.Metadata{
			Title:         model.String("The Art of Staying in Touch"),
			Author:        model.String("Maja"),
			PublishedTime: model.String("2025-10-28T00:00:00Z"),
			OGImage:       model.String("https://images.unsplash.com/photo-1529156069898-49953e39b3ac?w=1200&h=630&fit=crop"),
			Language:      model.String("en"),
		},
	}
}
