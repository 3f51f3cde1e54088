// Package jsonx extracts JSON objects from free-form LLM output.
//
// Model responses frequently wrap the requested JSON object in prose or
// markdown fences. ExtractObject takes the substring from the first '{' to
// the last '}' and unmarshals it, which tolerates surrounding text but still
// fails loudly on genuinely malformed payloads.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractObject locates the outermost JSON object in raw text and unmarshals
// it into v. Returns an error when no object can be found or parsed.
func ExtractObject(text string, v interface{}) error {
	raw, err := ObjectString(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("parse extracted JSON: %w", err)
	}
	return nil
}

// ObjectString returns the substring from the first '{' to the last '}' in
// text. The candidate must at least be valid JSON according to gjson.
func ObjectString(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object found in text (len=%d)", len(text))
	}
	candidate := text[start : end+1]
	if !gjson.Valid(candidate) {
		return "", fmt.Errorf("extracted candidate is not valid JSON")
	}
	return candidate, nil
}

// Field reads a single field from the outermost JSON object in text using a
// gjson path. The second return reports whether the field exists.
func Field(text, path string) (gjson.Result, bool) {
	raw, err := ObjectString(text)
	if err != nil {
		return gjson.Result{}, false
	}
	res := gjson.Get(raw, path)
	return res, res.Exists()
}
