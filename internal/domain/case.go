package domain

import (
	"time"
)

// CaseRecord groups the documents submitted together for cross-checking.
// The consistency resolver reads prior results of the same case; the store
// owns the record itself.
type CaseRecord struct {
	// CaseID uniquely identifies the case (a UUID).
	CaseID string `json:"case_id"`

	// CreatedAt records when the case was opened.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt records the last time a result was appended or the review
	// flag changed.
	UpdatedAt time.Time `json:"updated_at"`

	// Review marks a case an operator flagged for manual follow-up.
	Review bool `json:"review"`

	// Results accumulates verification results in submission order.
	Results []VerificationResult `json:"results"`
}

// Clone returns a deep copy of the record. Stores return clones so callers
// hold read-only snapshots.
func (c CaseRecord) Clone() CaseRecord {
	out := c
	if c.Results != nil {
		out.Results = make([]VerificationResult, len(c.Results))
		for i, r := range c.Results {
			out.Results[i] = r.Clone()
		}
	}
	return out
}

// Extractions returns the extracted field sets of all results in
// submission order. The last entry is the most recent prior document when
// checking a new submission for consistency.
func (c CaseRecord) Extractions() []ExtractedFields {
	if len(c.Results) == 0 {
		return nil
	}
	out := make([]ExtractedFields, len(c.Results))
	for i, r := range c.Results {
		out[i] = r.Extracted.Clone()
	}
	return out
}
