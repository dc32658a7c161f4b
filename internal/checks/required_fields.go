package checks

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
)

var _ ports.Check = (*RequiredFieldsCheck)(nil)

// RequiredFieldsCheck fails a document when any schema-required field was
// not extracted. Hardening materializes absent fields as explicit nulls,
// so "missing" here means null, never an absent key.
//
// The check is stateless and safe for concurrent use.
type RequiredFieldsCheck struct {
	// name is the validator identifier for result sequences.
	name string
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// NewRequiredFieldsCheck creates a RequiredFieldsCheck. The name appears
// as the validator name in results; it must be non-empty.
func NewRequiredFieldsCheck(name string) (*RequiredFieldsCheck, error) {
	if name == "" {
		return nil, ErrEmptyCheckName
	}

	return &RequiredFieldsCheck{
		name:   name,
		tracer: otel.Tracer("required-fields-check"),
	}, nil
}

// Name returns the validator identifier for this check instance.
func (rc *RequiredFieldsCheck) Name() string { return rc.name }

// Evaluate fails when any schema-required field is null; the detail lists
// the missing field names in schema order. It passes otherwise.
func (rc *RequiredFieldsCheck) Evaluate(ctx context.Context, in ports.CheckInput) domain.ValidatorResult {
	_, span := rc.tracer.Start(ctx, "RequiredFieldsCheck.Evaluate",
		trace.WithAttributes(
			attribute.String("check.name", rc.name),
			attribute.String("doc.type", string(in.Schema.DocType)),
		),
	)
	defer span.End()

	missing := in.Schema.MissingFields(in.Fields)
	span.SetAttributes(attribute.Int("check.missing_fields", len(missing)))

	if len(missing) > 0 {
		return domain.FailResult(rc.name,
			fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
	}
	return domain.PassResult(rc.name)
}

// Validate reports whether the check is properly configured.
func (rc *RequiredFieldsCheck) Validate() error {
	if rc.name == "" {
		return ErrEmptyCheckName
	}
	return nil
}
