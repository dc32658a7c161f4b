package ports

import (
	"context"

	"github.com/veridoc/veridoc/internal/domain"
)

// CaseStore persists case records and their verification results.
// Implementations return deep copies; callers hold read-only snapshots and
// results are appended by value, so no mutable references cross the
// boundary in either direction. The store is write-through bookkeeping
// with no transactional guarantees.
type CaseStore interface {
	// CreateCase opens a new empty case and returns it.
	CreateCase(ctx context.Context) (domain.CaseRecord, error)

	// GetCase returns the case with the given ID, or an error wrapping
	// domain.ErrCaseNotFound.
	GetCase(ctx context.Context, caseID string) (domain.CaseRecord, error)

	// AppendResult adds a verification result to the case and returns the
	// updated record.
	AppendResult(ctx context.Context, caseID string, result domain.VerificationResult) (domain.CaseRecord, error)

	// ListRecent returns up to limit cases, most recently updated first.
	ListRecent(ctx context.Context, limit int) ([]domain.CaseRecord, error)

	// MarkForReview sets or clears the case's manual-review flag.
	MarkForReview(ctx context.Context, caseID string, review bool) error
}
