// Package extract pulls the first well-formed JSON block out of free-form
// model output. Models wrap JSON in prose and code fences, so failure here
// is an expected outcome that callers must handle.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrExtraction = errors.New("no structured data found in generated text")

type Shape string

const (
	// ShapeArray matches an array whose first element is an object.
	ShapeArray Shape = "array"
	// ShapeObject matches a single object.
	ShapeObject Shape = "object"
)

// Extract returns the first span of text that is valid JSON of the requested
// shape. Candidates are located by bracket matching that respects string
// literals; a candidate that fails to parse is skipped and the scan resumes
// after its opening bracket.
func Extract(text string, shape Shape) (json.RawMessage, error) {
	open, close := byte('{'), byte('}')
	if shape == ShapeArray {
		open, close = '[', ']'
	} else if shape != ShapeObject {
		return nil, fmt.Errorf("%w: unknown shape %q", ErrExtraction, shape)
	}

	var lastErr error
	for start := 0; start < len(text); start++ {
		if text[start] != open {
			continue
		}
		if shape == ShapeArray && !startsWithObject(text, start+1) {
			continue
		}

		end := matchClose(text, start, open, close)
		if end < 0 {
			lastErr = fmt.Errorf("unbalanced %c at offset %d", open, start)
			continue
		}

		span := text[start : end+1]
		if json.Valid([]byte(span)) {
			return json.RawMessage(span), nil
		}
		lastErr = fmt.Errorf("candidate at offset %d is not valid JSON", start)
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, lastErr)
	}
	return nil, fmt.Errorf("%w: no %s found", ErrExtraction, shape)
}

// Into extracts and decodes in one step.
func Into[T any](text string, shape Shape) (T, error) {
	var out T
	raw, err := Extract(text, shape)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return out, nil
}

func startsWithObject(text string, i int) bool {
	for ; i < len(text); i++ {
		switch text[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// matchClose returns the index of the bracket closing text[start], or -1.
func matchClose(text string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
