package cleanup

import (
	"errors"
	"fmt"
)

// Normalization errors. None of them reach the reader: each one maps to a
// fallback reason and the raw article is shown instead.
var (
	ErrService    = errors.New("cleanup service unavailable")
	ErrExtraction = errors.New("no JSON object in cleanup response")
	ErrSchema     = errors.New("cleanup response schema violation")
	ErrIncomplete = errors.New("cleanup produced no usable article")
)

// SchemaError reports the first field of a cleanup response that failed validation.
type SchemaError struct {
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation on field '%s': %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrSchema) hold for every SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}
