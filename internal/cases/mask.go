package cases

import (
	"strings"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/schema"
)

// sensitiveFields are masked before records leave the API surface.
var sensitiveFields = map[string]struct{}{
	schema.FieldIDNumber: {},
	schema.FieldAddress:  {},
}

// MaskValue redacts the middle of a value, keeping the first two and
// last four characters: "X1234567" becomes "X1••4567". A value of six
// characters or fewer is fully redacted. Operates on runes so multi-byte
// characters are not split.
func MaskValue(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= 6 {
		return strings.Repeat("•", len(runes))
	}
	return string(runes[:2]) + strings.Repeat("•", len(runes)-6) + string(runes[len(runes)-4:])
}

// MaskFields returns a copy of the extraction with sensitive field values
// redacted. Nulls stay null; non-sensitive fields pass through untouched.
func MaskFields(fields domain.ExtractedFields) domain.ExtractedFields {
	masked := fields.Clone()
	for name := range sensitiveFields {
		value, ok := masked[name]
		if !ok || value.IsNull() {
			continue
		}
		masked[name] = domain.TextField(MaskValue(value.String()))
	}
	return masked
}

// MaskCase returns a deep copy of the record with every result's
// extraction masked.
func MaskCase(record domain.CaseRecord) domain.CaseRecord {
	masked := record.Clone()
	for i := range masked.Results {
		masked.Results[i].Extracted = MaskFields(masked.Results[i].Extracted)
	}
	return masked
}
