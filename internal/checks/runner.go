package checks

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
)

// Runner executes the validator sequence for one document in a fixed
// order. The base checks run for every document; the consistency check
// runs only when the case carries prior documents, so single-document
// results never contain a vacuous consistency entry.
//
// Run is total: it always returns one result per applicable check, in
// order, regardless of what individual evaluations conclude.
type Runner struct {
	// base checks run for every document, in slice order.
	base []ports.Check
	// consistency runs after the base checks when priors exist. May be
	// nil to disable cross-document checking entirely.
	consistency ports.Check
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// NewRunner creates a Runner over the given base checks and optional
// consistency check. Every check is validated up front so configuration
// problems surface at construction, not per request.
func NewRunner(base []ports.Check, consistency ports.Check) (*Runner, error) {
	if len(base) == 0 {
		return nil, fmt.Errorf("runner requires at least one base check")
	}

	for _, check := range base {
		if err := check.Validate(); err != nil {
			return nil, fmt.Errorf("check %s: %w", check.Name(), err)
		}
	}
	if consistency != nil {
		if err := consistency.Validate(); err != nil {
			return nil, fmt.Errorf("check %s: %w", consistency.Name(), err)
		}
	}

	return &Runner{
		base:        base,
		consistency: consistency,
		tracer:      otel.Tracer("check-runner"),
	}, nil
}

// DefaultChecks returns the standard base validator sequence with default
// configuration: required fields, then age, then expiry.
func DefaultChecks() ([]ports.Check, error) {
	required, err := NewRequiredFieldsCheck(CheckNameRequiredFields)
	if err != nil {
		return nil, err
	}
	age, err := NewAgeCheck(CheckNameAge, DefaultAgeConfig())
	if err != nil {
		return nil, err
	}
	expiry, err := NewExpiryCheck(CheckNameExpiry, DefaultExpiryConfig())
	if err != nil {
		return nil, err
	}
	return []ports.Check{required, age, expiry}, nil
}

// Run evaluates every applicable check against the input and returns the
// ordered result sequence. A zero input time is pinned to the current
// time once so all checks in the run share one evaluation date.
func (r *Runner) Run(ctx context.Context, in ports.CheckInput) []domain.ValidatorResult {
	ctx, span := r.tracer.Start(ctx, "Runner.Run",
		trace.WithAttributes(
			attribute.String("doc.type", string(in.Schema.DocType)),
			attribute.Int("run.base_checks", len(r.base)),
			attribute.Int("case.prior_documents", len(in.Priors)),
		),
	)
	defer span.End()

	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	results := make([]domain.ValidatorResult, 0, len(r.base)+1)
	for _, check := range r.base {
		results = append(results, check.Evaluate(ctx, in))
	}
	if r.consistency != nil && len(in.Priors) > 0 {
		results = append(results, r.consistency.Evaluate(ctx, in))
	}

	failures := 0
	for _, res := range results {
		if res.Status == domain.StatusFail {
			failures++
		}
	}
	span.SetAttributes(
		attribute.Int("run.results", len(results)),
		attribute.Int("run.failures", failures),
	)

	return results
}
