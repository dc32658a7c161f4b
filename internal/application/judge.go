package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/hardening"
	"github.com/veridoc/veridoc/internal/ports"
)

// Judge is the LLM-backed semantic-equivalence capability behind the
// consistency check's judgment tier. It is a plain text call at zero
// temperature; the consistency check imposes the timeout and treats
// every error returned here as low confidence.
type Judge struct {
	client ports.LLMClient
	prompt string
	logger *zap.Logger
	tracer trace.Tracer
}

// NewJudge creates a Judge over the given client. The prompt is the
// instruction preamble; the field name and the two values are appended
// per call.
func NewJudge(client ports.LLMClient, prompt string, logger *zap.Logger) (*Judge, error) {
	if client == nil {
		return nil, fmt.Errorf("judge requires an LLM client")
	}
	if prompt == "" {
		return nil, fmt.Errorf("judge requires an instruction prompt")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Judge{
		client: client,
		prompt: prompt,
		logger: logger,
		tracer: otel.Tracer("equivalence-judge"),
	}, nil
}

// Verify interface compliance at compile time.
var _ ports.EquivalenceJudge = (*Judge)(nil)

// judgmentPayload is the wire shape of an equivalence judgment. Pointer
// fields distinguish absent keys from zero values.
type judgmentPayload struct {
	Equivalent *bool    `json:"equivalent"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// JudgeEquivalent implements ports.EquivalenceJudge.
func (j *Judge) JudgeEquivalent(ctx context.Context, a, b, fieldName string) (domain.Equivalence, error) {
	ctx, span := j.tracer.Start(ctx, "Judge.JudgeEquivalent",
		trace.WithAttributes(attribute.String("field.name", fieldName)),
	)
	defer span.End()

	prompt := fmt.Sprintf("%s\n\nField: %s\nValue A: %s\nValue B: %s", j.prompt, fieldName, a, b)
	raw, err := j.client.Complete(ctx, ports.ChatRequest{
		Prompt:  prompt,
		Options: map[string]any{"temperature": 0.0},
	})
	if err != nil {
		return domain.Equivalence{}, fmt.Errorf("equivalence judgment: %w", err)
	}

	var payload judgmentPayload
	if err := hardening.Recover(raw, &payload); err != nil {
		return domain.Equivalence{}, fmt.Errorf("equivalence judgment: %w", err)
	}
	if payload.Equivalent == nil || payload.Confidence == nil {
		return domain.Equivalence{}, fmt.Errorf("equivalence judgment missing required fields")
	}

	eq := domain.Equivalence{
		Equivalent: *payload.Equivalent,
		Confidence: *payload.Confidence,
		Reasoning:  payload.Reasoning,
	}
	if err := validate.Struct(eq); err != nil {
		return domain.Equivalence{}, fmt.Errorf("equivalence judgment validation: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("judgment.equivalent", eq.Equivalent),
		attribute.Float64("judgment.confidence", eq.Confidence),
	)
	j.logger.Debug("equivalence judged",
		zap.String("field", fieldName),
		zap.Bool("equivalent", eq.Equivalent),
		zap.Float64("confidence", eq.Confidence),
	)
	return eq, nil
}
