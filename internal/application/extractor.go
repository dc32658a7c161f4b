package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
)

// Extractor is the LLM-backed vision-extraction capability. It submits
// the document image with the per-type extraction instruction and returns
// the model's raw text; the hardening layer owns recovery of structure
// from it.
type Extractor struct {
	client  ports.LLMClient
	prompts PromptsConfig
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewExtractor creates an Extractor over the given client.
func NewExtractor(client ports.LLMClient, prompts PromptsConfig, logger *zap.Logger) (*Extractor, error) {
	if client == nil {
		return nil, fmt.Errorf("extractor requires an LLM client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		client:  client,
		prompts: prompts,
		logger:  logger,
		tracer:  otel.Tracer("vision-extractor"),
	}, nil
}

// Verify interface compliance at compile time.
var _ ports.VisionExtractor = (*Extractor)(nil)

// Extract implements ports.VisionExtractor. The returned text carries no
// format guarantee beyond "intended to be JSON".
func (e *Extractor) Extract(ctx context.Context, image domain.ImageData, docType domain.DocumentType) (string, error) {
	ctx, span := e.tracer.Start(ctx, "Extractor.Extract",
		trace.WithAttributes(
			attribute.String("doc.type", string(docType)),
			attribute.String("llm.model", e.client.GetModel()),
			attribute.Int("image.bytes", len(image.Data)),
		),
	)
	defer span.End()

	prompt, err := e.prompts.ExtractionPrompt(docType)
	if err != nil {
		return "", err
	}

	if tokens, estErr := e.client.EstimateTokens(prompt); estErr == nil {
		e.logger.Debug("requesting extraction",
			zap.String("doc_type", string(docType)),
			zap.String("model", e.client.GetModel()),
			zap.Int("prompt_tokens_estimate", tokens),
			zap.Int("image_bytes", len(image.Data)),
		)
	}

	raw, err := e.client.Complete(ctx, ports.ChatRequest{
		Prompt: prompt,
		Images: []domain.ImageData{image},
	})
	if err != nil {
		return "", fmt.Errorf("vision extraction: %w", err)
	}

	span.SetAttributes(attribute.Int("response.bytes", len(raw)))
	return raw, nil
}

// Model implements ports.VisionExtractor.
func (e *Extractor) Model() string { return e.client.GetModel() }
