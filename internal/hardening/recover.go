package hardening

import (
	"encoding/json"
	"strings"

	"github.com/veridoc/veridoc/internal/domain"
)

// Recover extracts a JSON object from raw model output and unmarshals it
// into v. It applies the same recovery ladder as Harden: strip code
// fences, attempt a direct parse, then fall back to bracket-matching
// extraction. Payload shaping is left to the caller, which makes Recover
// suitable for non-schema payloads such as equivalence judgments and
// authenticity findings.
//
// When no parseable object can be located, Recover returns a
// MalformedResponseError carrying the original raw text.
func Recover(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.NewMalformedResponseError(raw, domain.ErrEmptyResponse)
	}

	directErr := json.Unmarshal([]byte(stripFences(trimmed)), v)
	if directErr == nil {
		return nil
	}

	candidate := extractObject(trimmed)
	if candidate == "" {
		return domain.NewMalformedResponseError(raw, directErr)
	}
	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return domain.NewMalformedResponseError(raw, err)
	}
	return nil
}
