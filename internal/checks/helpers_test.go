package checks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
	"github.com/veridoc/veridoc/internal/schema"
)

// testNow pins all date arithmetic in this package's tests.
var testNow = time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC)

func schemaFor(t *testing.T, docType domain.DocumentType) domain.FieldSchema {
	t.Helper()
	sch, err := schema.DefaultRegistry().For(docType)
	require.NoError(t, err)
	return sch
}

// testFields builds a normalized extraction for the schema: fields absent
// from values become explicit nulls, date fields are parsed, mirroring
// what hardening hands the validators.
func testFields(t *testing.T, sch domain.FieldSchema, values map[string]string) domain.ExtractedFields {
	t.Helper()
	fields := make(domain.ExtractedFields, len(sch.RequiredFields))
	for _, name := range sch.RequiredFields {
		v, ok := values[name]
		if !ok {
			fields[name] = domain.NullField()
			continue
		}
		fields[name] = domain.TextField(v)
	}
	return schema.Normalize(fields, sch)
}

func passportInput(t *testing.T, values map[string]string, priors ...domain.ExtractedFields) ports.CheckInput {
	t.Helper()
	sch := schemaFor(t, domain.DocumentTypePassport)
	return ports.CheckInput{
		Fields: testFields(t, sch, values),
		Schema: sch,
		Priors: priors,
		Now:    testNow,
	}
}

// scriptedJudge is a thread-safe EquivalenceJudge stub that returns a
// fixed judgment after an optional delay and counts its invocations.
type scriptedJudge struct {
	mu    sync.Mutex
	calls int

	eq    domain.Equivalence
	err   error
	delay time.Duration
}

func (j *scriptedJudge) JudgeEquivalent(ctx context.Context, a, b, fieldName string) (domain.Equivalence, error) {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()

	if j.delay > 0 {
		select {
		case <-time.After(j.delay):
		case <-ctx.Done():
			return domain.Equivalence{}, ctx.Err()
		}
	}

	if j.err != nil {
		return domain.Equivalence{}, j.err
	}
	return j.eq, nil
}

func (j *scriptedJudge) callCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}
