// Package checks provides the rule validators of the verification
// pipeline. Each check implements ports.Check: a stateless, total
// evaluation producing a pass, warn, or fail verdict with an explanatory
// detail. Checks never panic and never return errors from evaluation;
// a document that cannot be judged yields a fail or warn entry instead.
package checks

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/schema"
)

// Canonical validator names as they appear in result sequences.
const (
	CheckNameRequiredFields = "required_fields"
	CheckNameAge            = "age_check"
	CheckNameExpiry         = "expiry_check"
	CheckNameConsistency    = "consistency_check"
	CheckNameAuthenticity   = "authenticity_check"
)

// ErrEmptyCheckName is returned when attempting to create a check with an
// empty name.
var ErrEmptyCheckName = errors.New("check name cannot be empty")

// Package-level validator instance for configuration validation.
var validate = validator.New()

// foldCaser is a package-level Unicode case folder for performance.
// This avoids creating a new caser for each string comparison.
var foldCaser = cases.Fold()

// diacriticStripper decomposes characters and removes combining marks,
// turning e.g. "JOSÉ" into "JOSE".
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText prepares a value for exact comparison: interior whitespace
// runs collapse to single spaces, leading/trailing whitespace is dropped,
// and the result is Unicode case-folded.
func normalizeText(s string) string {
	return foldCaser.String(strings.Join(strings.Fields(s), " "))
}

// canonicalTokens reduces a value to its comparison tokens: diacritics
// stripped, case folded, punctuation replaced by spaces, then split on
// whitespace. "José García-López" and "JOSE GARCIA LOPEZ" tokenize
// identically.
func canonicalTokens(s string) []string {
	stripped, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		stripped = s
	}

	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, foldCaser.String(stripped))

	return strings.Fields(mapped)
}

// tokenSetsEqual reports whether two token slices contain the same tokens,
// ignoring order and multiplicity. Token order varies across document
// layouts ("GARCIA, JOSE" vs "JOSE GARCIA") without indicating a
// different holder.
func tokenSetsEqual(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	setA := make(map[string]struct{}, len(a))
	for _, tok := range a {
		setA[tok] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, tok := range b {
		setB[tok] = struct{}{}
	}

	if len(setA) != len(setB) {
		return false
	}
	for tok := range setA {
		if _, ok := setB[tok]; !ok {
			return false
		}
	}
	return true
}

// evaluationDate resolves the date all age and expiry arithmetic uses:
// the input's pinned time when set, otherwise the current time, truncated
// to midnight UTC so comparisons are date-to-date.
func evaluationDate(now time.Time) time.Time {
	if now.IsZero() {
		now = time.Now()
	}
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fieldDate resolves a field value to a date, preferring the parse the
// schema layer already performed and falling back to parsing the raw
// text.
func fieldDate(value domain.FieldValue) (time.Time, error) {
	if value.Date != nil {
		return *value.Date, nil
	}
	return schema.ParseDate(value.Text)
}
