package extract

import "github.com/appvine/apptrack/internal/apperr"

// FirstJSONObject returns the first balanced {...} object embedded in s.
// Brace depth is tracked explicitly, skipping braces inside JSON strings,
// so nested objects in the model's output are captured whole. When the
// first object never closes, the remainder of s is returned and left for
// the JSON parser to reject.
func FirstJSONObject(s string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if start == -1 {
			if ch == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], nil
				}
			}
		}
	}

	if start == -1 {
		return "", apperr.Parse("no JSON object found in response")
	}
	return s[start:], nil
}
