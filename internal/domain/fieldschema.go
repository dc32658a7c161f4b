package domain

import (
	"maps"
	"slices"
)

// FieldType describes how a schema field's value is interpreted.
type FieldType string

// Supported field types.
const (
	// FieldTypeString is free text.
	FieldTypeString FieldType = "string"

	// FieldTypeDate is an ISO-8601 calendar date.
	FieldTypeDate FieldType = "date"
)

// FieldSchema is the per-document-type definition of expected fields.
// It is a static lookup result with no mutable state; the schema package
// owns the tables behind it.
type FieldSchema struct {
	// DocType is the document type this schema describes.
	DocType DocumentType

	// RequiredFields lists every schema field in display order. All schema
	// fields are required; a field the model omits becomes explicit null.
	RequiredFields []string

	// FieldTypes maps field names to their value interpretation.
	FieldTypes map[string]FieldType
}

// KnownField reports whether the schema defines the named field.
func (s FieldSchema) KnownField(name string) bool {
	_, ok := s.FieldTypes[name]
	return ok
}

// IsDateField reports whether the named field holds a calendar date.
func (s FieldSchema) IsDateField(name string) bool {
	return s.FieldTypes[name] == FieldTypeDate
}

// MissingFields returns the required fields that are null or absent in the
// extracted map, preserving schema order for deterministic reporting.
func (s FieldSchema) MissingFields(fields ExtractedFields) []string {
	var missing []string
	for _, name := range s.RequiredFields {
		if _, ok := fields.Value(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Clone returns a deep copy of the schema so callers cannot mutate the
// shared tables.
func (s FieldSchema) Clone() FieldSchema {
	out := s
	out.RequiredFields = slices.Clone(s.RequiredFields)
	out.FieldTypes = maps.Clone(s.FieldTypes)
	return out
}
