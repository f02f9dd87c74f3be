package cleanup

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Kind classifies what Extract found in a service reply.
type Kind int

const (
	// Absent means the reply holds no {...} span at all.
	Absent Kind = iota
	// Malformed means a {...} span was found but is not a JSON object.
	Malformed
	// WellFormed means the span parsed; it may still fail validation.
	WellFormed
)

func (k Kind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Malformed:
		return "malformed"
	case WellFormed:
		return "well-formed"
	default:
		return "unknown"
	}
}

// Extracted is the JSON candidate recovered from a reply.
type Extracted struct {
	Kind Kind
	// Candidate is the raw {...} substring, kept for diagnostics.
	Candidate string
	// Object is set only when Kind is WellFormed.
	Object map[string]any
	// Err is the parse error when Kind is Malformed.
	Err error
}

const fence = "```"

// openingFence matches a fence with an optional info string such as "json" or "JSON".
var openingFence = regexp.MustCompile("(?i)^```[a-z0-9_+.-]*")

// Extract locates and parses the JSON object embedded in a service reply.
// The reply may be bare JSON, fenced, or surrounded by prose. It never panics
// and reports missing or broken JSON through Kind.
func Extract(responseText string) Extracted {
	text := stripFences(strings.TrimSpace(responseText))

	candidate, ok := outermostBraces(text)
	if !ok {
		return Extracted{Kind: Absent}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return Extracted{Kind: Malformed, Candidate: candidate, Err: err}
	}
	return Extracted{Kind: WellFormed, Candidate: candidate, Object: obj}
}

// stripFences removes a leading (optionally tagged) and a trailing fence, only
// when both are present.
func stripFences(text string) string {
	if len(text) < 2*len(fence) || !strings.HasPrefix(text, fence) || !strings.HasSuffix(text, fence) {
		return text
	}
	inner := openingFence.ReplaceAllString(text, "")
	inner = strings.TrimSuffix(inner, fence)
	return strings.TrimSpace(inner)
}

// outermostBraces returns the text from the first '{' through the last '}'.
func outermostBraces(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}
