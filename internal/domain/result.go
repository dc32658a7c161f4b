package domain

import (
	"time"
)

// Status is the outcome of a single validator or of a whole verification.
type Status string

// Validator and verification outcomes.
const (
	// StatusPass indicates the check found nothing wrong.
	StatusPass Status = "pass"

	// StatusWarn indicates a non-blocking concern. Warns never affect the
	// score or the final status.
	StatusWarn Status = "warn"

	// StatusFail indicates the check found a blocking problem.
	StatusFail Status = "fail"
)

// ValidatorResult is the outcome of one rule validator. It is immutable
// once produced; validators construct a new value per evaluation.
type ValidatorResult struct {
	// Name identifies the validator that produced this result.
	Name string `json:"name"`

	// Status is the validator's verdict.
	Status Status `json:"status"`

	// Detail explains a fail or warn outcome. Empty on pass.
	Detail string `json:"detail,omitempty"`
}

// PassResult builds a passing result for the named validator.
func PassResult(name string) ValidatorResult {
	return ValidatorResult{Name: name, Status: StatusPass}
}

// WarnResult builds a warning result with an explanation.
func WarnResult(name, detail string) ValidatorResult {
	return ValidatorResult{Name: name, Status: StatusWarn, Detail: detail}
}

// FailResult builds a failing result with an explanation.
func FailResult(name, detail string) ValidatorResult {
	return ValidatorResult{Name: name, Status: StatusFail, Detail: detail}
}

// Aggregate computes the verification score and final status from a
// validator sequence. The score counts fail entries only; warns are
// advisory. The final status is pass exactly when the score is zero.
func Aggregate(results []ValidatorResult) (score int, final Status) {
	for _, r := range results {
		if r.Status == StatusFail {
			score++
		}
	}
	if score == 0 {
		return 0, StatusPass
	}
	return score, StatusFail
}

// Equivalence is the payload of one semantic-equivalence judgment: whether
// two extracted values refer to the same underlying fact, and how certain
// the judge is about it.
type Equivalence struct {
	// Equivalent is the judge's verdict.
	Equivalent bool `json:"equivalent"`

	// Confidence indicates how certain the judge is (0.0 to 1.0).
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`

	// Reasoning explains the judgment. Optional.
	Reasoning string `json:"reasoning,omitempty"`
}

// AuthenticityFinding is the outcome of the document-authenticity probe.
// A finding that could not be produced (unparseable judgment, timeout) is
// marked Unavailable rather than failing the request.
type AuthenticityFinding struct {
	// IsSuspectedFraud is true when the probe flagged tampering signals.
	IsSuspectedFraud bool `json:"is_suspected_fraud"`

	// Confidence indicates how certain the probe is (0.0 to 1.0).
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`

	// Explanation describes what the probe observed.
	Explanation string `json:"explanation"`

	// Unavailable marks a probe that produced no usable finding.
	Unavailable bool `json:"unavailable,omitempty"`
}

// VerificationResult is the final outcome of one document verification.
// It is constructed once by the orchestrator, never mutated after return,
// and handed to persistence as a deep copy.
type VerificationResult struct {
	// DocID uniquely identifies this verified document (a UUID).
	DocID string `json:"doc_id"`

	// CaseID links the result to its case, when one was supplied.
	CaseID string `json:"case_id,omitempty"`

	// DocType is the document type the schema and validators were chosen for.
	DocType DocumentType `json:"doc_type"`

	// Model names the extraction model that produced the raw response.
	Model string `json:"model"`

	// Extracted holds the hardened, schema-normalized field values.
	// Schema fields missing from the model output appear as explicit null.
	Extracted ExtractedFields `json:"extracted"`

	// Authenticity carries the fraud-signal probe outcome, when the probe ran.
	Authenticity *AuthenticityFinding `json:"authenticity,omitempty"`

	// Validators is the ordered validator outcome sequence. The order is
	// fixed for display; the validators themselves are order-insensitive.
	Validators []ValidatorResult `json:"validators"`

	// Score counts the failing validators. Warns do not count.
	Score int `json:"score"`

	// FinalStatus is pass exactly when Score is zero.
	FinalStatus Status `json:"final_status"`

	// CreatedAt records when the orchestrator completed the result.
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the result. Persistence receives clones so
// the orchestrator's value stays immutable after hand-off.
func (r VerificationResult) Clone() VerificationResult {
	out := r
	out.Extracted = r.Extracted.Clone()
	if r.Validators != nil {
		out.Validators = make([]ValidatorResult, len(r.Validators))
		copy(out.Validators, r.Validators)
	}
	if r.Authenticity != nil {
		a := *r.Authenticity
		out.Authenticity = &a
	}
	return out
}
