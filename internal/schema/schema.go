// Package schema owns the per-document-type field schemas: which fields an
// extraction must contain, how their values are typed, and how dates are
// parsed. The tables are static; requests receive copies.
package schema

import (
	"fmt"
	"time"

	"github.com/veridoc/veridoc/internal/domain"
)

// Passport schema fields.
const (
	FieldName           = "name"
	FieldDOB            = "dob"
	FieldIssuingCountry = "issuing_country"
	FieldIDNumber       = "id_number"
	FieldExpiryDate     = "expiry_date"
)

// Additional driver's-license schema fields.
const (
	FieldIssuingState = "issuing_state"
	FieldAddress      = "address"
)

// dateLayouts are the accepted date formats, tried in order. ISO-8601
// first; the remaining layouts cover the formats vision models emit when
// transcribing printed dates.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"01/02/2006",
	"02/01/2006",
}

// ParseDate parses a date string against the accepted layouts in order.
// The first matching layout wins, which fixes the interpretation of
// ambiguous numeric dates.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

// defaultSchemas builds the built-in schema tables.
func defaultSchemas() map[domain.DocumentType]domain.FieldSchema {
	return map[domain.DocumentType]domain.FieldSchema{
		domain.DocumentTypePassport: {
			DocType: domain.DocumentTypePassport,
			RequiredFields: []string{
				FieldName, FieldDOB, FieldIssuingCountry, FieldIDNumber, FieldExpiryDate,
			},
			FieldTypes: map[string]domain.FieldType{
				FieldName:           domain.FieldTypeString,
				FieldDOB:            domain.FieldTypeDate,
				FieldIssuingCountry: domain.FieldTypeString,
				FieldIDNumber:       domain.FieldTypeString,
				FieldExpiryDate:     domain.FieldTypeDate,
			},
		},
		domain.DocumentTypeDriversLicense: {
			DocType: domain.DocumentTypeDriversLicense,
			RequiredFields: []string{
				FieldName, FieldDOB, FieldIssuingState, FieldIDNumber, FieldAddress, FieldExpiryDate,
			},
			FieldTypes: map[string]domain.FieldType{
				FieldName:         domain.FieldTypeString,
				FieldDOB:          domain.FieldTypeDate,
				FieldIssuingState: domain.FieldTypeString,
				FieldIDNumber:     domain.FieldTypeString,
				FieldAddress:      domain.FieldTypeString,
				FieldExpiryDate:   domain.FieldTypeDate,
			},
		},
	}
}

// Registry resolves document types to their field schemas. It is immutable
// after construction and safe for concurrent use.
type Registry struct {
	schemas map[domain.DocumentType]domain.FieldSchema
}

// NewRegistry builds a registry from explicit schema tables, validating
// each entry. Configuration uses this to override the built-in tables.
func NewRegistry(schemas map[domain.DocumentType]domain.FieldSchema) (*Registry, error) {
	if len(schemas) == 0 {
		return nil, fmt.Errorf("%w: no document schemas defined", domain.ErrInvalidConfiguration)
	}
	cloned := make(map[domain.DocumentType]domain.FieldSchema, len(schemas))
	for docType, sch := range schemas {
		if !docType.Valid() {
			return nil, fmt.Errorf("%w: schema for unknown document type %q", domain.ErrInvalidConfiguration, docType)
		}
		if len(sch.RequiredFields) == 0 {
			return nil, fmt.Errorf("%w: schema for %s has no required fields", domain.ErrInvalidConfiguration, docType)
		}
		for _, name := range sch.RequiredFields {
			if !sch.KnownField(name) {
				return nil, fmt.Errorf("%w: schema for %s requires untyped field %q", domain.ErrInvalidConfiguration, docType, name)
			}
		}
		sch.DocType = docType
		cloned[docType] = sch.Clone()
	}
	return &Registry{schemas: cloned}, nil
}

// DefaultRegistry returns a registry with the built-in passport and
// driver's-license schemas.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(defaultSchemas())
	if err != nil {
		// The built-in tables are known valid.
		panic(fmt.Sprintf("schema: default registry invalid: %v", err))
	}
	return r
}

// For returns the schema for the given document type. The returned schema
// is a copy; mutating it does not affect the registry.
func (r *Registry) For(docType domain.DocumentType) (domain.FieldSchema, error) {
	sch, ok := r.schemas[docType]
	if !ok {
		return domain.FieldSchema{}, fmt.Errorf("%w: %q", domain.ErrUnknownDocumentType, docType)
	}
	return sch.Clone(), nil
}

// DocumentTypes lists the document types the registry knows, for
// validation and debugging.
func (r *Registry) DocumentTypes() []domain.DocumentType {
	out := make([]domain.DocumentType, 0, len(r.schemas))
	for docType := range r.schemas {
		out = append(out, docType)
	}
	return out
}

// Normalize enriches hardened fields with parsed dates. Date fields whose
// text parses cleanly gain their parsed value; values that fail to parse
// keep their raw text so validators can report the failure instead of this
// layer crashing. Non-date fields and nulls pass through unchanged.
func Normalize(fields domain.ExtractedFields, sch domain.FieldSchema) domain.ExtractedFields {
	out := make(domain.ExtractedFields, len(fields))
	for name, value := range fields {
		if value.Null || !sch.IsDateField(name) {
			out[name] = value.Clone()
			continue
		}
		if t, err := ParseDate(value.Text); err == nil {
			out[name] = domain.DateField(value.Text, t)
		} else {
			out[name] = value.Clone()
		}
	}
	return out
}
