package checks

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
)

var _ ports.Check = (*ConsistencyCheck)(nil)

// ConsistencyCheck compares the current extraction against the most
// recent prior document of the same case, field by field. Comparison is
// two-tier: a cheap deterministic rule tier (case folding, whitespace
// normalization, parsed-date equality, diacritic and punctuation
// tolerance, edit-distance similarity) resolves the common OCR noise, and
// only fields the rule tier cannot reconcile escalate to the semantic
// judge. Judge failures and low-confidence judgments downgrade to warn
// rather than fail: an unavailable judge must not reject a document.
//
// The field comparison is symmetric: swapping current and prior yields
// the same status.
type ConsistencyCheck struct {
	// name is the validator identifier for result sequences.
	name string
	// config contains the validated configuration parameters.
	config ConsistencyConfig
	// judge performs semantic equivalence judgments. May be nil, in which
	// case fields the rule tier cannot reconcile warn instead.
	judge ports.EquivalenceJudge
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// ConsistencyConfig controls the rule-tier tolerance and the judgment
// tier's trust threshold.
type ConsistencyConfig struct {
	// SimilarityThreshold is the minimum edit-distance similarity
	// (0.0-1.0) at which the rule tier accepts two values as matching
	// without consulting the judge.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold" validate:"min=0,max=1"`

	// ConfidenceThreshold is the minimum judge confidence (0.0-1.0) at
	// which a judgment is trusted. Below it the field warns regardless of
	// the judged verdict.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold" validate:"min=0,max=1"`

	// JudgeTimeout bounds each semantic judgment call. Zero disables the
	// per-call timeout and relies on the request context alone.
	JudgeTimeout time.Duration `yaml:"judge_timeout" json:"judge_timeout" validate:"min=0"`
}

// DefaultConsistencyConfig returns production defaults: 0.85 similarity
// tolerance, 0.7 judge confidence floor, 10s judge timeout.
func DefaultConsistencyConfig() ConsistencyConfig {
	return ConsistencyConfig{
		SimilarityThreshold: 0.85,
		ConfidenceThreshold: 0.7,
		JudgeTimeout:        10 * time.Second,
	}
}

// NewConsistencyCheck creates a ConsistencyCheck with validated
// configuration. A nil judge disables the judgment tier.
func NewConsistencyCheck(name string, config ConsistencyConfig, judge ports.EquivalenceJudge) (*ConsistencyCheck, error) {
	if name == "" {
		return nil, ErrEmptyCheckName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &ConsistencyCheck{
		name:   name,
		config: config,
		judge:  judge,
		tracer: otel.Tracer("consistency-check"),
	}, nil
}

// Name returns the validator identifier for this check instance.
func (cc *ConsistencyCheck) Name() string { return cc.name }

// Evaluate compares every field present and non-null in both the current
// extraction and the most recent prior record. The worst per-field status
// wins; the detail names each field the rule tier or judge could not
// reconcile.
func (cc *ConsistencyCheck) Evaluate(ctx context.Context, in ports.CheckInput) domain.ValidatorResult {
	ctx, span := cc.tracer.Start(ctx, "ConsistencyCheck.Evaluate",
		trace.WithAttributes(
			attribute.String("check.name", cc.name),
			attribute.Int("case.prior_documents", len(in.Priors)),
			attribute.Float64("config.similarity_threshold", cc.config.SimilarityThreshold),
			attribute.Float64("config.confidence_threshold", cc.config.ConfidenceThreshold),
		),
	)
	defer span.End()

	if len(in.Priors) == 0 {
		return domain.PassResult(cc.name)
	}
	prior := in.Priors[len(in.Priors)-1]

	shared := in.Fields.SharedFields(prior)
	if len(shared) == 0 {
		return domain.PassResult(cc.name)
	}

	worst := domain.StatusPass
	judgeCalls := 0
	var notes []string

	for _, field := range shared {
		current, _ := in.Fields.Value(field)
		previous, _ := prior.Value(field)

		status, note, judged := cc.compareField(ctx, field, current, previous, in.Schema.IsDateField(field))
		if judged {
			judgeCalls++
		}
		if status != domain.StatusPass {
			notes = append(notes, note)
		}
		worst = worseStatus(worst, status)
	}

	span.SetAttributes(
		attribute.Int("check.fields_compared", len(shared)),
		attribute.Int("check.fields_flagged", len(notes)),
		attribute.Int("check.judge_calls", judgeCalls),
	)

	detail := strings.Join(notes, "; ")
	switch worst {
	case domain.StatusFail:
		return domain.FailResult(cc.name, detail)
	case domain.StatusWarn:
		return domain.WarnResult(cc.name, detail)
	default:
		return domain.PassResult(cc.name)
	}
}

// compareField resolves one field pair through the comparison tiers and
// reports the verdict, a display note for non-pass verdicts, and whether
// the judge was consulted.
func (cc *ConsistencyCheck) compareField(ctx context.Context, field string, current, previous domain.FieldValue, isDate bool) (domain.Status, string, bool) {
	// Parsed dates compare by value and are definitive: two different
	// dates cannot be reconciled by a semantic judge.
	if isDate && current.Date != nil && previous.Date != nil {
		if current.Date.Equal(*previous.Date) {
			return domain.StatusPass, "", false
		}
		return domain.StatusFail,
			fmt.Sprintf("%s: %s does not match prior %s", field, current.String(), previous.String()),
			false
	}

	curText, prevText := current.String(), previous.String()

	if normalizeText(curText) == normalizeText(prevText) {
		return domain.StatusPass, "", false
	}

	// Tolerance tier: diacritic and punctuation differences, token
	// reordering, and small edit distances are OCR noise, not identity
	// mismatches.
	curTokens, prevTokens := canonicalTokens(curText), canonicalTokens(prevText)
	if tokenSetsEqual(curTokens, prevTokens) {
		return domain.StatusPass, "", false
	}
	if len(curTokens) > 0 && len(prevTokens) > 0 {
		canonCur := strings.Join(curTokens, " ")
		canonPrev := strings.Join(prevTokens, " ")
		if similarity(canonCur, canonPrev) >= cc.config.SimilarityThreshold {
			return domain.StatusPass, "", false
		}
	}

	if cc.judge == nil {
		return domain.StatusWarn,
			fmt.Sprintf("%s: %q differs from prior %q and no semantic judge is configured", field, curText, prevText),
			false
	}

	status, note := cc.judgeField(ctx, field, curText, prevText)
	return status, note, true
}

// judgeField escalates one divergent field pair to the semantic judge and
// maps the judgment onto a verdict. Errors and timeouts warn: a document
// is never rejected because the judge was unreachable.
func (cc *ConsistencyCheck) judgeField(ctx context.Context, field, current, previous string) (domain.Status, string) {
	if cc.config.JudgeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cc.config.JudgeTimeout)
		defer cancel()
	}

	eq, err := cc.judge.JudgeEquivalent(ctx, current, previous, field)
	if err != nil {
		return domain.StatusWarn,
			fmt.Sprintf("%s: semantic judgment failed: %v", field, err)
	}

	if eq.Confidence < cc.config.ConfidenceThreshold {
		verdict := "different"
		if eq.Equivalent {
			verdict = "equivalent"
		}
		return domain.StatusWarn,
			fmt.Sprintf("%s: judged %s with low confidence %.2f", field, verdict, eq.Confidence)
	}

	if eq.Equivalent {
		return domain.StatusPass, ""
	}
	return domain.StatusFail,
		fmt.Sprintf("%s: %q does not match prior %q (confidence %.2f)", field, current, previous, eq.Confidence)
}

// Validate reports whether the check is properly configured.
func (cc *ConsistencyCheck) Validate() error {
	if cc.name == "" {
		return ErrEmptyCheckName
	}
	if err := validate.Struct(cc.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// similarity computes edit-distance similarity between two strings as
// 1 - distance/maxRuneLength, in [0, 1]. Identical strings score 1.0.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(a, b)

	// The distance operates on runes, so normalize by rune count rather
	// than byte length for multi-byte UTF-8 correctness.
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}

	score := 1.0 - float64(distance)/float64(maxLen)
	if score < 0 {
		score = 0
	}
	return score
}

// worseStatus orders statuses by severity and returns the worse of the
// two: fail over warn over pass.
func worseStatus(a, b domain.Status) domain.Status {
	rank := func(s domain.Status) int {
		switch s {
		case domain.StatusFail:
			return 2
		case domain.StatusWarn:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
