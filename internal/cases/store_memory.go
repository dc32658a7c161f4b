package cases

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
)

var _ ports.CaseStore = (*MemoryStore)(nil)

// MemoryStore keeps case records in process memory. It backs tests and
// single-instance deployments where persistence across restarts does not
// matter; it intentionally favors clarity over performance.
type MemoryStore struct {
	mu    sync.RWMutex
	cases map[string]domain.CaseRecord
	// order holds case IDs by last update, most recent last.
	order []string
}

// NewMemoryStore creates an empty in-memory case store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cases: make(map[string]domain.CaseRecord)}
}

// CreateCase opens a new empty case under a fresh UUID.
func (s *MemoryStore) CreateCase(_ context.Context) (domain.CaseRecord, error) {
	now := time.Now().UTC()
	record := domain.CaseRecord{
		CaseID:    uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[record.CaseID] = record.Clone()
	s.order = append(s.order, record.CaseID)

	return record, nil
}

// GetCase returns a deep copy of the case with the given ID.
func (s *MemoryStore) GetCase(_ context.Context, caseID string) (domain.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.cases[caseID]
	if !ok {
		return domain.CaseRecord{}, fmt.Errorf("case %s: %w", caseID, domain.ErrCaseNotFound)
	}
	return record.Clone(), nil
}

// AppendResult adds a verification result to the case and returns the
// updated record. The result is stored by value; the caller's copy stays
// independent.
func (s *MemoryStore) AppendResult(_ context.Context, caseID string, result domain.VerificationResult) (domain.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cases[caseID]
	if !ok {
		return domain.CaseRecord{}, fmt.Errorf("case %s: %w", caseID, domain.ErrCaseNotFound)
	}

	record.Results = append(record.Results, result.Clone())
	record.UpdatedAt = time.Now().UTC()
	s.cases[caseID] = record
	s.touch(caseID)

	return record.Clone(), nil
}

// ListRecent returns up to limit cases, most recently updated first.
func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]domain.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return nil, nil
	}

	records := make([]domain.CaseRecord, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(records) < limit; i-- {
		records = append(records, s.cases[s.order[i]].Clone())
	}
	return records, nil
}

// MarkForReview sets or clears the case's manual-review flag.
func (s *MemoryStore) MarkForReview(_ context.Context, caseID string, review bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cases[caseID]
	if !ok {
		return fmt.Errorf("case %s: %w", caseID, domain.ErrCaseNotFound)
	}

	record.Review = review
	record.UpdatedAt = time.Now().UTC()
	s.cases[caseID] = record
	s.touch(caseID)

	return nil
}

// touch moves the case ID to the most-recent end of the update order.
// Callers must hold the write lock.
func (s *MemoryStore) touch(caseID string) {
	if i := slices.Index(s.order, caseID); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	s.order = append(s.order, caseID)
}
