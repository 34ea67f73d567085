package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sentinelops/sentinel/internal/errors"
)

// codeBlockPattern matches a fenced code block with an optional "json"
// label, capturing its body. Mirrors the tolerant extraction the original
// implementation performs before JSON-decoding a model response.
var codeBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?\\s*```")

// ExtractJSON recovers the first JSON document from raw model output,
// accepting both bare JSON and JSON wrapped in a fenced code block.
func ExtractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if m := codeBlockPattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// ParseStructured extracts and unmarshals a structured-output response into
// v, failing fast (per §4.5) rather than attempting partial recovery.
func ParseStructured(content string, v interface{}) error {
	jsonText := ExtractJSON(content)
	if jsonText == "" {
		return errors.ParseError("llm response", "json", nil)
	}
	if err := json.Unmarshal([]byte(jsonText), v); err != nil {
		return errors.ParseError("llm response", "json", err)
	}
	return nil
}
