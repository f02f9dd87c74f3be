package cleanup

import (
	"fmt"
	"os"
	"strings"
)

// Delimiters around the article in the user message.
const (
	ContentStart = "=== CONTENT START ==="
	ContentEnd   = "=== CONTENT END ==="
)

// DefaultSystemPrompt describes the cleanup task and the reply shape.
//
//nolint:lll // Prompt text is kept unwrapped.
const DefaultSystemPrompt = `You clean up markdown that was scraped from a web page.

The scraped text usually contains noise around the actual article:
- advertisements, banners and promotions
- navigation menus, sidebars and footers
- embedded social posts and newsletter sign-up boxes
- markdown broken by the extraction step
- HTML entities and character encoding artefacts
- inconsistent formatting

Return ONLY the main article, as clean and well-formed markdown.

Rules:
1. Drop every ad, promotion and navigation element.
2. Drop social embeds, newsletter prompts and "related content" blocks.
3. Drop the featured image; it is displayed separately.
4. Repair broken markdown syntax.
5. Decode HTML entities and fix encoding artefacts.
6. Keep all meaningful article text and its structure.
7. Keep the heading hierarchy consistent (H1, then H2, then H3, no skipped levels).
8. Give fenced code blocks the correct language annotation.
9. Keep links, repairing the broken ones.
10. Keep tables, blockquotes and lists well formatted.
11. Normalise blank lines for readability.
12. If the page is mostly boilerplate or navigation with no real article, set isComplete to false.

Reply with a single JSON object and nothing else:
{
  "content": "the cleaned markdown",
  "warnings": ["notes about anything removed or repaired"],
  "isComplete": true
}

Do not wrap the JSON in a code block and do not add any text before or after it.`

// UserMessage embeds the raw markdown between the content delimiters.
func UserMessage(rawMarkdown string) string {
	var b strings.Builder
	b.WriteString("Clean the following scraped content. Return only the main article body, ")
	b.WriteString("without the title, featured image, ads, navigation or related content.\n\n")
	b.WriteString(ContentStart)
	b.WriteString("\n")
	b.WriteString(rawMarkdown)
	b.WriteString("\n")
	b.WriteString(ContentEnd)
	return b.String()
}

// LoadPrompt reads a system prompt from path. An empty path, an unreadable
// file or a blank file yields DefaultSystemPrompt together with the reason.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSystemPrompt, fmt.Errorf("load prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return DefaultSystemPrompt, fmt.Errorf("load prompt: %s is empty", path)
	}
	return prompt, nil
}
