package estimate

import (
	"encoding/json"
	"fmt"
)

// ExtractJSONObject returns the first balanced top-level JSON object embedded
// in s. Models frequently wrap their JSON in prose or code fences; this pulls
// the object out without trusting anything around it.
func ExtractJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

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
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// DecodeObject extracts the first JSON object from a model response and
// unmarshals it into v. Fails closed: any malformed payload is an error, the
// caller substitutes defaults rather than guessing at partial content.
func DecodeObject(content string, v any) error {
	obj, ok := ExtractJSONObject(content)
	if !ok {
		return fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return nil
}
