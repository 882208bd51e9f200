package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Decode stages reported by DecodeError.
const (
	StageJSON     = "json"
	StageValidate = "validate"
)

var (
	fencePattern = regexp.MustCompile("```[A-Za-z0-9_-]*")
	validate     = validator.New(validator.WithRequiredStructEnabled())
)

// DecodeError describes why a completion could not be turned into a value.
type DecodeError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("llm: decode %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrMalformedOutput, e.Err}
}

// StripFences removes markdown code-fence markers and surrounding whitespace.
func StripFences(raw string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))
}

// ExtractObject returns the text between the first '{' and the last '}'.
func ExtractObject(raw string) (string, bool) {
	cleaned := StripFences(raw)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return cleaned[start : end+1], true
}

// Decode parses a completion into T and validates its `validate` tags.
// Unknown keys are ignored; missing or mistyped ones are errors. T must be a
// struct type.
func Decode[T any](raw string) (T, error) {
	var out T
	body, ok := ExtractObject(raw)
	if !ok {
		return out, &DecodeError{Stage: StageJSON, Raw: raw, Err: errors.New("no json object in completion")}
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		var zero T
		return zero, &DecodeError{Stage: StageJSON, Raw: raw, Err: err}
	}
	if err := validate.Struct(out); err != nil {
		var zero T
		return zero, &DecodeError{Stage: StageValidate, Raw: raw, Err: err}
	}
	return out, nil
}
