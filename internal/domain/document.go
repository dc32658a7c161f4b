// Package domain contains pure, dependency-free domain models and types
// for the document-verification pipeline.
package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

// DocumentType identifies which kind of identity document a request concerns.
// It determines the field schema and validator set applied downstream.
type DocumentType string

// Supported document types.
const (
	// DocumentTypePassport is an international passport.
	DocumentTypePassport DocumentType = "passport"

	// DocumentTypeDriversLicense is a US driver's license.
	DocumentTypeDriversLicense DocumentType = "drivers_license"
)

// Valid reports whether the document type is one of the supported values.
func (d DocumentType) Valid() bool {
	return d == DocumentTypePassport || d == DocumentTypeDriversLicense
}

// String returns the wire representation of the document type.
func (d DocumentType) String() string { return string(d) }

// ParseDocumentType converts a wire string into a DocumentType.
// It returns ErrUnknownDocumentType for anything outside the supported set.
func ParseDocumentType(s string) (DocumentType, error) {
	dt := DocumentType(s)
	if !dt.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, s)
	}
	return dt, nil
}

// ImageData carries one uploaded document image through the pipeline.
// Images are processed in memory only and are never persisted.
type ImageData struct {
	// MIMEType is the detected media type (e.g. "image/jpeg").
	MIMEType string

	// Data is the raw image payload.
	Data []byte
}

// Clone returns a deep copy of the image so callers can hand it off
// without sharing the underlying buffer.
func (i ImageData) Clone() ImageData {
	out := ImageData{MIMEType: i.MIMEType}
	if i.Data != nil {
		out.Data = make([]byte, len(i.Data))
		copy(out.Data, i.Data)
	}
	return out
}

// FieldValue is a single extracted field value. A value is either explicit
// null (required by the schema but absent from the model output), a parsed
// date (for schema date fields whose text parsed cleanly), or raw text.
// Values that fail date parsing keep their raw text so validators can
// report the failure instead of the schema layer crashing.
type FieldValue struct {
	// Text is the value as the model returned it, whitespace-trimmed.
	Text string

	// Date holds the parsed value for date fields. It is nil when the field
	// is not a date field or when the text did not parse as a date.
	Date *time.Time

	// Null marks a field the schema requires but the model did not return.
	// Null fields serialize as explicit JSON null, never by key omission.
	Null bool
}

// NullField returns the explicit-null field value.
func NullField() FieldValue { return FieldValue{Null: true} }

// TextField returns a plain text field value.
func TextField(text string) FieldValue { return FieldValue{Text: text} }

// DateField returns a field value carrying both the raw text and its
// parsed date.
func DateField(text string, date time.Time) FieldValue {
	return FieldValue{Text: text, Date: &date}
}

// IsNull reports whether the value is the explicit null.
func (v FieldValue) IsNull() bool { return v.Null }

// String returns the textual representation used for display and
// persistence: the ISO date for parsed date fields, otherwise the raw text.
func (v FieldValue) String() string {
	if v.Null {
		return ""
	}
	if v.Date != nil {
		return v.Date.Format("2006-01-02")
	}
	return v.Text
}

// MarshalJSON serializes the value as a JSON string, or as literal null
// for explicit-null fields.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.Null {
		return []byte("null"), nil
	}
	return json.Marshal(v.String())
}

// UnmarshalJSON restores a value from its persisted form. Dates are not
// re-parsed here; persisted records flow back through schema normalization
// before any date-sensitive comparison.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = NullField()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("field value: %w", err)
	}
	*v = TextField(s)
	return nil
}

// Clone returns a copy of the value with no shared references.
func (v FieldValue) Clone() FieldValue {
	out := v
	if v.Date != nil {
		d := *v.Date
		out.Date = &d
	}
	return out
}

// ExtractedFields maps schema field names to their extracted values.
// Keys are a fixed set per DocumentType; unknown keys returned by the model
// are dropped during hardening and never reach this type.
type ExtractedFields map[string]FieldValue

// Clone returns a deep copy of the field map. Results are handed to
// persistence by value, so no mutable references survive the hand-off.
func (f ExtractedFields) Clone() ExtractedFields {
	if f == nil {
		return nil
	}
	out := make(ExtractedFields, len(f))
	for k, v := range f {
		out[k] = v.Clone()
	}
	return out
}

// Value returns the field value and whether the field is present and
// non-null.
func (f ExtractedFields) Value(name string) (FieldValue, bool) {
	v, ok := f[name]
	if !ok || v.Null {
		return v, false
	}
	return v, true
}

// SharedFields returns the names of fields that are present and non-null
// in both maps, in sorted order so comparison output is deterministic.
func (f ExtractedFields) SharedFields(other ExtractedFields) []string {
	shared := make([]string, 0, len(f))
	for _, name := range slices.Sorted(maps.Keys(f)) {
		if _, ok := f.Value(name); !ok {
			continue
		}
		if _, ok := other.Value(name); ok {
			shared = append(shared, name)
		}
	}
	return shared
}
