// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"
	"time"

	"github.com/veridoc/veridoc/internal/domain"
)

// CheckInput carries everything one rule validator needs to evaluate a
// document. Inputs are read-only snapshots; checks never mutate them.
type CheckInput struct {
	// Fields holds the hardened, schema-normalized extraction under check.
	Fields domain.ExtractedFields

	// Schema is the field schema for the document's type.
	Schema domain.FieldSchema

	// Priors holds the extractions of earlier documents in the same case,
	// in submission order (most recent last). Empty for single-document
	// requests.
	Priors []domain.ExtractedFields

	// Now is the evaluation date for age and expiry arithmetic. The runner
	// fills it with the current time when zero; tests pin it.
	Now time.Time
}

// Check is one rule validator in the verification pipeline. Checks are
// stateless, thread-safe, and total: any internal parse failure becomes a
// fail result with an explanatory detail, never a panic or an error, so
// the orchestrator always receives a complete validator sequence.
type Check interface {
	// Name returns the validator's identifier as it appears in results.
	Name() string

	// Evaluate runs the check against the input and returns its verdict.
	// The context carries cancellation for checks that consult external
	// capabilities; purely deterministic checks ignore it.
	Evaluate(ctx context.Context, in CheckInput) domain.ValidatorResult

	// Validate reports whether the check is properly configured.
	// It is called during pipeline construction, not per request.
	Validate() error
}
