// Package jsonx provides JSON extraction utilities for parsing LLM responses.
//
// LLMs often return JSON embedded in text or with additional commentary.
// This package provides utilities to extract and parse JSON objects or
// arrays from such responses.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFences removes markdown code fence markers from a response.
// Handles patterns like ```json\n...\n```, ```sql\n...\n``` or ```\n...\n```
func StripCodeFences(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		// Drop a language tag on the fence line (json, sql, ...)
		if idx := strings.IndexByte(trimmed, '\n'); idx != -1 {
			firstLine := strings.TrimSpace(trimmed[:idx])
			if firstLine != "" && !strings.ContainsAny(firstLine, " \t") && len(firstLine) <= 10 {
				trimmed = trimmed[idx+1:]
			}
		} else {
			trimmed = strings.TrimPrefix(trimmed, "json")
			trimmed = strings.TrimPrefix(trimmed, "sql")
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	return trimmed
}

// ExtractObject finds and returns the JSON object portion of a response.
// It handles common LLM response patterns:
//  1. Pure JSON response - returns the full response
//  2. JSON wrapped in markdown code blocks (```json ... ```)
//  3. JSON object embedded in text - finds first '{' and last '}'
//
// Limitations:
//   - Uses outermost brace matching, not full JSON parsing
//   - May fail if braces appear in strings or are unbalanced
func ExtractObject(response string) (string, error) {
	return extractSpan(response, '{', '}')
}

// ExtractArray finds and returns the JSON array portion of a response.
// Same strategy as ExtractObject, over '[' and ']'.
func ExtractArray(response string) (string, error) {
	return extractSpan(response, '[', ']')
}

func extractSpan(response string, open, close byte) (string, error) {
	response = StripCodeFences(response)

	// Try full response first
	var test interface{}
	if err := json.Unmarshal([]byte(response), &test); err == nil {
		trimmed := strings.TrimSpace(response)
		if len(trimmed) > 0 && trimmed[0] == open {
			return trimmed, nil
		}
	}

	start := strings.IndexByte(response, open)
	if start != -1 {
		end := strings.LastIndexByte(response, close)
		if end != -1 && end > start {
			jsonStr := response[start : end+1]
			var test interface{}
			if err := json.Unmarshal([]byte(jsonStr), &test); err == nil {
				return jsonStr, nil
			}
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview)
}

// Unmarshal extracts a JSON object from an LLM response and unmarshals it
// into result. This is the non-generic entry point for callers decoding
// into a known struct.
func Unmarshal(response string, result interface{}) error {
	jsonStr, err := ExtractObject(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonStr), result); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}
