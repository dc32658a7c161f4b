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

// AuthenticityProbe asks the model for tampering signals on a document
// image. The probe degrades instead of failing: transport errors and
// unusable judgments produce an Unavailable finding, never an error, so a
// broken probe cannot reject a verification request.
type AuthenticityProbe struct {
	client  ports.LLMClient
	prompts PromptsConfig
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewAuthenticityProbe creates a probe over the given vision client.
func NewAuthenticityProbe(client ports.LLMClient, prompts PromptsConfig, logger *zap.Logger) (*AuthenticityProbe, error) {
	if client == nil {
		return nil, fmt.Errorf("authenticity probe requires an LLM client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthenticityProbe{
		client:  client,
		prompts: prompts,
		logger:  logger,
		tracer:  otel.Tracer("authenticity-probe"),
	}, nil
}

// authenticityPayload is the wire shape of the probe judgment. Pointer
// fields distinguish absent keys from zero values.
type authenticityPayload struct {
	IsSuspectedFraud *bool    `json:"is_suspected_fraud"`
	Confidence       *float64 `json:"confidence"`
	Explanation      string   `json:"explanation"`
}

// Probe assesses one document image and always returns a finding.
func (p *AuthenticityProbe) Probe(ctx context.Context, image domain.ImageData, docType domain.DocumentType) domain.AuthenticityFinding {
	ctx, span := p.tracer.Start(ctx, "AuthenticityProbe.Probe",
		trace.WithAttributes(
			attribute.String("doc.type", string(docType)),
			attribute.Int("image.bytes", len(image.Data)),
		),
	)
	defer span.End()

	prompt, err := p.prompts.AuthenticityPrompt(docType)
	if err != nil {
		return p.unavailable(span, "unsupported document type", err)
	}

	raw, err := p.client.Complete(ctx, ports.ChatRequest{
		Prompt: prompt,
		Images: []domain.ImageData{image},
	})
	if err != nil {
		return p.unavailable(span, "authenticity model call failed", err)
	}

	var payload authenticityPayload
	if err := hardening.Recover(raw, &payload); err != nil {
		return p.unavailable(span, "authenticity judgment unparseable", err)
	}
	if payload.IsSuspectedFraud == nil || payload.Confidence == nil {
		return p.unavailable(span, "authenticity judgment missing required fields", nil)
	}

	finding := domain.AuthenticityFinding{
		IsSuspectedFraud: *payload.IsSuspectedFraud,
		Confidence:       *payload.Confidence,
		Explanation:      payload.Explanation,
	}
	if err := validate.Struct(finding); err != nil {
		return p.unavailable(span, "authenticity judgment out of range", err)
	}

	span.SetAttributes(
		attribute.Bool("authenticity.suspected_fraud", finding.IsSuspectedFraud),
		attribute.Float64("authenticity.confidence", finding.Confidence),
	)
	return finding
}

// unavailable logs the degradation and returns the no-finding marker.
func (p *AuthenticityProbe) unavailable(span trace.Span, reason string, err error) domain.AuthenticityFinding {
	p.logger.Warn("authenticity probe unavailable",
		zap.String("reason", reason),
		zap.Error(err),
	)
	span.SetAttributes(attribute.String("authenticity.unavailable_reason", reason))
	return domain.AuthenticityFinding{
		Unavailable: true,
		Explanation: "authenticity assessment unavailable",
	}
}
