package checks

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
	"github.com/veridoc/veridoc/internal/schema"
)

var _ ports.Check = (*ExpiryCheck)(nil)

// ExpiryCheck verifies the document has not expired and warns when expiry
// is imminent. The evaluation date partitions expiry dates into three
// disjoint regions with no gaps: strictly before today fails, today
// through the end of the warning window warns, beyond the window passes.
//
// The check is stateless and safe for concurrent use.
type ExpiryCheck struct {
	// name is the validator identifier for result sequences.
	name string
	// config contains the validated configuration parameters.
	config ExpiryConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// ExpiryConfig controls the imminent-expiry warning window.
type ExpiryConfig struct {
	// WarningWindowDays is how many days ahead of expiry the check starts
	// warning. The window boundary is inclusive: a document expiring
	// exactly this many days from the evaluation date warns.
	WarningWindowDays int `yaml:"warning_window_days" json:"warning_window_days" validate:"min=0"`
}

// DefaultExpiryConfig returns the standard 30-day warning window.
func DefaultExpiryConfig() ExpiryConfig {
	return ExpiryConfig{WarningWindowDays: 30}
}

// NewExpiryCheck creates an ExpiryCheck with validated configuration.
func NewExpiryCheck(name string, config ExpiryConfig) (*ExpiryCheck, error) {
	if name == "" {
		return nil, ErrEmptyCheckName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &ExpiryCheck{
		name:   name,
		config: config,
		tracer: otel.Tracer("expiry-check"),
	}, nil
}

// Name returns the validator identifier for this check instance.
func (ec *ExpiryCheck) Name() string { return ec.name }

// Evaluate classifies the expiry_date field against the evaluation date.
// A missing or unparseable value fails; an expiry strictly before today
// fails; an expiry within the warning window (boundary inclusive) warns;
// anything later passes.
func (ec *ExpiryCheck) Evaluate(ctx context.Context, in ports.CheckInput) domain.ValidatorResult {
	_, span := ec.tracer.Start(ctx, "ExpiryCheck.Evaluate",
		trace.WithAttributes(
			attribute.String("check.name", ec.name),
			attribute.Int("config.warning_window_days", ec.config.WarningWindowDays),
		),
	)
	defer span.End()

	value, ok := in.Fields.Value(schema.FieldExpiryDate)
	if !ok {
		return domain.FailResult(ec.name, "expiry date was not extracted")
	}

	expiry, err := fieldDate(value)
	if err != nil {
		return domain.FailResult(ec.name,
			fmt.Sprintf("expiry date %q is not a recognized date", value.String()))
	}

	today := evaluationDate(in.Now)
	windowEnd := today.AddDate(0, 0, ec.config.WarningWindowDays)
	span.SetAttributes(attribute.String("check.expiry_date", expiry.Format("2006-01-02")))

	switch {
	case expiry.Before(today):
		return domain.FailResult(ec.name,
			fmt.Sprintf("document expired on %s", expiry.Format("2006-01-02")))
	case !expiry.After(windowEnd):
		return domain.WarnResult(ec.name,
			fmt.Sprintf("document expires on %s, within %d days",
				expiry.Format("2006-01-02"), ec.config.WarningWindowDays))
	default:
		return domain.PassResult(ec.name)
	}
}

// Validate reports whether the check is properly configured.
func (ec *ExpiryCheck) Validate() error {
	if ec.name == "" {
		return ErrEmptyCheckName
	}
	if err := validate.Struct(ec.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
