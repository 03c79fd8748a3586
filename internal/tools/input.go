// Package tools holds the deterministic tools exposed to the operator loops:
// the calculator, the Open-Meteo weather client and the digidates date
// utility client.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractField normalizes a tool input. Models sometimes emit a JSON object
// instead of the bare argument for a single-argument tool, so every tool
// runs its input through this: if the input parses as JSON and carries the
// expected field, that field's value is used; otherwise the raw string is
// used as-is. Single quotes are tolerated because some models emit
// Python-style dicts.
func ExtractField(input, key string) string {
	s := strings.TrimSpace(input)
	if !strings.HasPrefix(s, "{") {
		return s
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &data); err != nil {
			return s
		}
	}

	if value, ok := data[key]; ok {
		return strings.TrimSpace(stringify(value))
	}
	return s
}

// ExtractFields pulls several named fields out of a JSON input. Missing
// fields come back empty. A non-JSON input yields an empty map.
func ExtractFields(input string, keys ...string) map[string]string {
	result := make(map[string]string, len(keys))
	s := strings.TrimSpace(input)
	if !strings.HasPrefix(s, "{") {
		return result
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &data); err != nil {
			return result
		}
	}

	for _, key := range keys {
		if value, ok := data[key]; ok {
			result[key] = strings.TrimSpace(stringify(value))
		}
	}
	return result
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; render integers without a
		// decimal point so "2020" stays "2020".
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
