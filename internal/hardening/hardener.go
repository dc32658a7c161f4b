// Package hardening recovers typed field mappings from raw language-model
// output. Model responses are "intended to be JSON" but carry no format
// guarantee; this package tolerates markdown fences, surrounding prose,
// and partial JSON, and fails only when no structured object can be
// located at all.
package hardening

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/veridoc/veridoc/internal/domain"
)

// keyCaser case-folds field names before schema matching. Folding handles
// non-ASCII casing correctly, unlike ToLower.
var keyCaser = cases.Fold()

// Hardener turns raw model text into schema-shaped extracted fields.
// Hardening is pure apart from logging of recovery attempts; the same
// input always yields the same output.
type Hardener struct {
	logger *zap.Logger
}

// NewHardener creates a Hardener. A nil logger disables recovery logging.
func NewHardener(logger *zap.Logger) *Hardener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hardener{logger: logger}
}

// Harden parses raw model output into extracted fields for the given
// schema. It strips code fences and surrounding prose, attempts a direct
// parse, then falls back to bracket-matching recovery; when no JSON-like
// object can be located it returns a MalformedResponseError carrying the
// original raw text.
//
// Keys are case-folded and whitespace-trimmed before schema matching.
// Keys the schema does not define are dropped so unvalidated data never
// surfaces. Schema fields absent from the payload become explicit null;
// partial extraction is expected, not exceptional.
func (h *Hardener) Harden(raw string, sch domain.FieldSchema) (domain.ExtractedFields, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, domain.NewMalformedResponseError(raw, domain.ErrEmptyResponse)
	}

	payload, directErr := parseObject(stripFences(trimmed))
	if directErr != nil {
		h.logger.Debug("direct parse failed, attempting bracket recovery",
			zap.Int("response_bytes", len(raw)),
			zap.NamedError("parse_error", directErr),
		)

		candidate := extractObject(trimmed)
		if candidate == "" {
			return nil, domain.NewMalformedResponseError(raw, directErr)
		}
		recovered, recoverErr := parseObject(candidate)
		if recoverErr != nil {
			return nil, domain.NewMalformedResponseError(raw, recoverErr)
		}
		h.logger.Debug("bracket recovery succeeded",
			zap.Int("recovered_bytes", len(candidate)),
		)
		payload = recovered
	}

	return conform(payload, sch), nil
}

// parseObject attempts a strict parse of the candidate as a JSON object.
func parseObject(candidate string) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// stripFences removes markdown code-fence markers around the payload.
// It prefers an explicit ```json block, then any fenced block that opens
// with a brace, and otherwise returns the input unchanged.
func stripFences(response string) string {
	if strings.Contains(response, "```json") {
		start := strings.Index(response, "```json") + len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	if strings.Contains(response, "```") {
		start := strings.Index(response, "```") + 3
		// Skip a language identifier on the fence line.
		if newlineIdx := strings.Index(response[start:], "\n"); newlineIdx != -1 {
			start += newlineIdx + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(response[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	return response
}

// extractObject locates the first '{' and its matching closing brace by
// depth counting, ignoring braces inside quoted strings, and returns that
// substring. It returns "" when no balanced object exists.
func extractObject(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(response); i++ {
		char := response[i]

		if escapeNext {
			escapeNext = false
			continue
		}

		if char == '\\' {
			escapeNext = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		// Only count braces outside of strings.
		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return response[start : i+1]
				}
			}
		}
	}

	return ""
}

// conform shapes a parsed payload to the schema: keys are normalized and
// matched, unknown keys are discarded, and every schema field is
// materialized, as explicit null when the payload has no usable value.
func conform(payload map[string]any, sch domain.FieldSchema) domain.ExtractedFields {
	normalized := make(map[string]any, len(payload))
	for key, value := range payload {
		normalized[keyCaser.String(strings.TrimSpace(key))] = value
	}

	fields := make(domain.ExtractedFields, len(sch.RequiredFields))
	for _, name := range sch.RequiredFields {
		value, ok := normalized[name]
		if !ok {
			fields[name] = domain.NullField()
			continue
		}
		fields[name] = scalarField(value)
	}
	return fields
}

// scalarField converts one payload value to a field value. Empty strings
// and non-scalar values carry no usable data and become explicit null.
func scalarField(value any) domain.FieldValue {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return domain.NullField()
		}
		return domain.TextField(trimmed)
	case float64:
		return domain.TextField(strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		return domain.TextField(strconv.FormatBool(v))
	default:
		return domain.NullField()
	}
}
