package cleanup

// Result is a cleanup reply that passed validation.
type Result struct {
	Content    string   `json:"content"`
	Warnings   []string `json:"warnings,omitempty"`
	IsComplete bool     `json:"isComplete"`
}

// Validate checks obj field by field against the cleanup response shape:
//
//	{ "content": string, "warnings": [string]?, "isComplete": boolean }
//
// The first violation is returned as a *SchemaError. Values are never coerced,
// so "true" is not accepted for isComplete.
func Validate(obj map[string]any) (*Result, error) {
	if obj == nil {
		return nil, &SchemaError{Field: "(root)", Message: "expected an object"}
	}

	var res Result

	raw, ok := obj["content"]
	if !ok {
		return nil, &SchemaError{Field: "content", Message: "required"}
	}
	content, ok := raw.(string)
	if !ok {
		return nil, &SchemaError{Field: "content", Message: "expected string, got " + typeName(raw)}
	}
	res.Content = content

	// Optional means absent; a present null is still a violation
	if raw, ok := obj["warnings"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, &SchemaError{Field: "warnings", Message: "expected array, got " + typeName(raw)}
		}
		res.Warnings = make([]string, 0, len(list))
		for _, item := range list {
			w, ok := item.(string)
			if !ok {
				return nil, &SchemaError{Field: "warnings", Message: "expected array of strings, found " + typeName(item)}
			}
			res.Warnings = append(res.Warnings, w)
		}
	}

	raw, ok = obj["isComplete"]
	if !ok {
		return nil, &SchemaError{Field: "isComplete", Message: "required"}
	}
	complete, ok := raw.(bool)
	if !ok {
		return nil, &SchemaError{Field: "isComplete", Message: "expected boolean, got " + typeName(raw)}
	}
	res.IsComplete = complete

	return &res, nil
}

// typeName names a decoded JSON value by its JSON type.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}
