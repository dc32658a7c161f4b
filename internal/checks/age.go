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

var _ ports.Check = (*AgeCheck)(nil)

// AgeCheck verifies the document holder meets a minimum age as of the
// evaluation date. A missing or unparseable date of birth is a fail, not
// an error: the check must always yield a verdict.
//
// The check is stateless and safe for concurrent use.
type AgeCheck struct {
	// name is the validator identifier for result sequences.
	name string
	// config contains the validated configuration parameters.
	config AgeConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// AgeConfig controls the age threshold.
type AgeConfig struct {
	// MinimumAgeYears is the age (in full years) the holder must have
	// reached. The boundary is inclusive: a holder turning exactly this
	// age on the evaluation date passes.
	MinimumAgeYears int `yaml:"minimum_age_years" json:"minimum_age_years" validate:"min=0,max=150"`
}

// DefaultAgeConfig returns the standard adult threshold of 18 years.
func DefaultAgeConfig() AgeConfig {
	return AgeConfig{MinimumAgeYears: 18}
}

// NewAgeCheck creates an AgeCheck with validated configuration.
func NewAgeCheck(name string, config AgeConfig) (*AgeCheck, error) {
	if name == "" {
		return nil, ErrEmptyCheckName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &AgeCheck{
		name:   name,
		config: config,
		tracer: otel.Tracer("age-check"),
	}, nil
}

// Name returns the validator identifier for this check instance.
func (ac *AgeCheck) Name() string { return ac.name }

// Evaluate computes the holder's age from the dob field as of the
// evaluation date. Passing requires the threshold birthday to have
// occurred: a holder exactly at the minimum age with zero days to spare
// passes, one day younger fails.
func (ac *AgeCheck) Evaluate(ctx context.Context, in ports.CheckInput) domain.ValidatorResult {
	_, span := ac.tracer.Start(ctx, "AgeCheck.Evaluate",
		trace.WithAttributes(
			attribute.String("check.name", ac.name),
			attribute.Int("config.minimum_age_years", ac.config.MinimumAgeYears),
		),
	)
	defer span.End()

	value, ok := in.Fields.Value(schema.FieldDOB)
	if !ok {
		return domain.FailResult(ac.name, "date of birth was not extracted")
	}

	dob, err := fieldDate(value)
	if err != nil {
		return domain.FailResult(ac.name,
			fmt.Sprintf("date of birth %q is not a recognized date", value.String()))
	}

	today := evaluationDate(in.Now)
	if dob.After(today) {
		return domain.FailResult(ac.name,
			fmt.Sprintf("date of birth %s is in the future", dob.Format("2006-01-02")))
	}

	threshold := dob.AddDate(ac.config.MinimumAgeYears, 0, 0)
	span.SetAttributes(attribute.Bool("check.of_age", !today.Before(threshold)))

	if today.Before(threshold) {
		return domain.FailResult(ac.name,
			fmt.Sprintf("holder is under %d: born %s, turns %d on %s",
				ac.config.MinimumAgeYears,
				dob.Format("2006-01-02"),
				ac.config.MinimumAgeYears,
				threshold.Format("2006-01-02")))
	}
	return domain.PassResult(ac.name)
}

// Validate reports whether the check is properly configured.
func (ac *AgeCheck) Validate() error {
	if ac.name == "" {
		return ErrEmptyCheckName
	}
	if err := validate.Struct(ac.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
