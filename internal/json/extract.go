// Package json extracts JSON objects from model-produced text.
//
// Tool handlers and models frequently return JSON wrapped in markdown code
// fences or embedded in prose. This package recovers the object when one is
// present.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractObject finds and decodes a JSON object in a string. It handles:
// 1. A bare JSON object
// 2. An object wrapped in markdown code fences (```json ... ```)
// 3. An object embedded in surrounding text (first '{' to last '}')
//
// Only objects are recovered, not arrays or scalars. Brace matching is
// simple and may fail on unbalanced braces inside string values.
func ExtractObject(text string) (map[string]any, error) {
	candidate := stripCodeFences(text)

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
		return obj, nil
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start != -1 && end > start {
		if err := json.Unmarshal([]byte(candidate[start:end+1]), &obj); err == nil {
			return obj, nil
		}
	}

	preview := text
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return nil, fmt.Errorf("no JSON object found in %q", preview)
}

// stripCodeFences removes surrounding markdown code fence markers.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}
	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}
