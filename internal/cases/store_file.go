// Package cases implements case-record persistence: a flat-file store
// laid out as cases/<id>/case.json plus an append-only cases.jsonl index,
// an in-memory store for tests and ephemeral deployments, and the
// masking applied to sensitive fields before records leave the API.
package cases

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
)

var _ ports.CaseStore = (*FileStore)(nil)

const (
	casesDirName  = "cases"
	caseFileName  = "case.json"
	indexFileName = "cases.jsonl"
)

// FileStore persists case records under a root directory: each case as
// cases/<id>/case.json, plus a full-record snapshot appended to
// cases.jsonl on every write so recent activity can be listed without
// walking the tree. Write-through bookkeeping with no transactional
// guarantees; a single mutex serializes writers.
type FileStore struct {
	mu        sync.Mutex
	casesDir  string
	indexPath string
	logger    *zap.Logger
}

// NewFileStore creates a FileStore rooted at dir, creating the layout if
// needed. A nil logger disables logging.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	casesDir := filepath.Join(dir, casesDirName)
	if err := os.MkdirAll(casesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cases directory: %w", err)
	}

	return &FileStore{
		casesDir:  casesDir,
		indexPath: filepath.Join(dir, indexFileName),
		logger:    logger,
	}, nil
}

// CreateCase opens a new empty case under a fresh UUID and persists it.
func (s *FileStore) CreateCase(_ context.Context) (domain.CaseRecord, error) {
	now := time.Now().UTC()
	record := domain.CaseRecord{
		CaseID:    uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(record); err != nil {
		return domain.CaseRecord{}, err
	}

	s.logger.Info("case created", zap.String("case_id", record.CaseID))
	return record, nil
}

// GetCase loads the case with the given ID from disk.
func (s *FileStore) GetCase(_ context.Context, caseID string) (domain.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(caseID)
}

// AppendResult adds a verification result to the case, bumps its update
// time, and persists the new snapshot.
func (s *FileStore) AppendResult(_ context.Context, caseID string, result domain.VerificationResult) (domain.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(caseID)
	if err != nil {
		return domain.CaseRecord{}, err
	}

	record.Results = append(record.Results, result.Clone())
	record.UpdatedAt = time.Now().UTC()
	if err := s.persist(record); err != nil {
		return domain.CaseRecord{}, err
	}

	s.logger.Info("result appended",
		zap.String("case_id", caseID),
		zap.String("doc_type", string(result.DocType)),
		zap.String("final_status", string(result.FinalStatus)),
	)
	return record, nil
}

// ListRecent returns up to limit cases, most recently updated first. It
// reads the jsonl index from the tail, keeping the newest snapshot per
// case and skipping lines that fail to parse.
func (s *FileStore) ListRecent(_ context.Context, limit int) ([]domain.CaseRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.indexPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read case index: %w", err)
	}

	lines := bytes.Split(data, []byte("\n"))
	seen := make(map[string]struct{})
	var records []domain.CaseRecord

	for i := len(lines) - 1; i >= 0 && len(records) < limit; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}

		var record domain.CaseRecord
		if err := json.Unmarshal(line, &record); err != nil {
			s.logger.Warn("skipping unparseable index line", zap.Error(err))
			continue
		}
		if _, dup := seen[record.CaseID]; dup {
			continue
		}
		seen[record.CaseID] = struct{}{}
		records = append(records, record)
	}

	return records, nil
}

// MarkForReview sets or clears the case's manual-review flag and
// persists the change.
func (s *FileStore) MarkForReview(_ context.Context, caseID string, review bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(caseID)
	if err != nil {
		return err
	}

	record.Review = review
	record.UpdatedAt = time.Now().UTC()
	if err := s.persist(record); err != nil {
		return err
	}

	s.logger.Info("review flag updated",
		zap.String("case_id", caseID),
		zap.Bool("review", review),
	)
	return nil
}

func (s *FileStore) casePath(caseID string) string {
	return filepath.Join(s.casesDir, caseID, caseFileName)
}

// load reads one case file. Callers must hold the mutex.
func (s *FileStore) load(caseID string) (domain.CaseRecord, error) {
	data, err := os.ReadFile(s.casePath(caseID))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.CaseRecord{}, fmt.Errorf("case %s: %w", caseID, domain.ErrCaseNotFound)
	}
	if err != nil {
		return domain.CaseRecord{}, fmt.Errorf("read case %s: %w", caseID, err)
	}

	var record domain.CaseRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.CaseRecord{}, fmt.Errorf("decode case %s: %w", caseID, err)
	}
	return record, nil
}

// persist writes the case file and appends a snapshot to the index.
// Callers must hold the mutex.
func (s *FileStore) persist(record domain.CaseRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode case %s: %w", record.CaseID, err)
	}

	dir := filepath.Join(s.casesDir, record.CaseID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create case directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, caseFileName), data, 0o644); err != nil {
		return fmt.Errorf("write case %s: %w", record.CaseID, err)
	}

	return s.appendIndex(record)
}

// appendIndex adds one single-line snapshot of the record to the jsonl
// index. Callers must hold the mutex.
func (s *FileStore) appendIndex(record domain.CaseRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode index entry: %w", err)
	}

	f, err := os.OpenFile(s.indexPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open case index: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append case index: %w", err)
	}
	return nil
}
