package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// codeFencePattern matches a leading ``` marker with an optional language tag.
var codeFencePattern = regexp.MustCompile("(?m)^```[a-zA-Z]*[ \t]*$")

// trailingCommaPattern matches a comma immediately before a closing brace
// or bracket, which LLMs emit often enough to be worth repairing.
var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// StripCodeFences removes markdown code-fence markers from an LLM response,
// returning the trimmed inner text. Responses without fences are returned
// trimmed but otherwise unchanged.
func StripCodeFences(response string) string {
	cleaned := codeFencePattern.ReplaceAllString(response, "")
	// Handle fences that are not on their own line.
	cleaned = strings.ReplaceAll(cleaned, "```sql", "")
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// RepairTrailingCommas removes trailing commas before closing braces and
// brackets so the text has a chance of parsing as strict JSON.
func RepairTrailingCommas(jsonText string) string {
	return trailingCommaPattern.ReplaceAllString(jsonText, "$1")
}

// ExtractJSON extracts JSON content from an LLM response that may contain
// markdown code blocks, commentary, or trailing commas.
func ExtractJSON(response string) (string, error) {
	cleaned := StripCodeFences(response)

	objStart := strings.IndexByte(cleaned, '{')
	arrStart := strings.IndexByte(cleaned, '[')

	// Try whichever comes first (or the one that exists).
	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if jsonStr, ok := extractBalancedJSON(cleaned, '{', '}'); ok {
			repaired := RepairTrailingCommas(jsonStr)
			if json.Valid([]byte(repaired)) {
				return repaired, nil
			}
		}
	}

	if arrStart >= 0 {
		if jsonStr, ok := extractBalancedJSON(cleaned, '[', ']'); ok {
			repaired := RepairTrailingCommas(jsonStr)
			if json.Valid([]byte(repaired)) {
				return repaired, nil
			}
		}
	}

	// Last resort: the entire cleaned response may be valid JSON.
	repaired := RepairTrailingCommas(cleaned)
	if json.Valid([]byte(repaired)) {
		return repaired, nil
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// extractBalancedJSON finds the first balanced JSON structure starting with
// openChar, counting bracket depth and skipping string literals.
func extractBalancedJSON(s string, openChar, closeChar byte) (string, bool) {
	start := strings.IndexByte(s, openChar)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if c == openChar {
			depth++
		} else if c == closeChar {
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}

	return result, nil
}
