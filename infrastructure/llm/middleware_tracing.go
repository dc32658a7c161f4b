package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/veridoc/veridoc/internal/ports"
)

// tracedLLM implements distributed tracing for request observability.
// This provides detailed request spans for debugging and performance
// analysis across the verification pipeline.
type tracedLLM struct {
	next        CoreLLM
	serviceName string
	tracer      trace.Tracer
}

// TracingMiddleware creates middleware that wraps each request in an
// OpenTelemetry span carrying the model, prompt size, attachment count,
// and token usage.
func TracingMiddleware(serviceName string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{
			next:        next,
			serviceName: serviceName,
			tracer:      otel.Tracer("infrastructure/llm"),
		}
	}
}

// DoRequest executes the request within a trace span.
func (t *tracedLLM) DoRequest(ctx context.Context, req ports.ChatRequest) (string, int, int, error) {
	ctx, span := t.tracer.Start(ctx, "llm.request",
		trace.WithAttributes(
			attribute.String("service.name", t.serviceName),
			attribute.String("llm.model", t.next.GetModel()),
			attribute.Int("llm.prompt.length", len(req.Prompt)),
			attribute.Int("llm.images.count", len(req.Images)),
		),
	)
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoRequest(ctx, req)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("llm.tokens.input", tokensIn),
			attribute.Int("llm.tokens.output", tokensOut),
		)
	}

	return response, tokensIn, tokensOut, err
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *tracedLLM) SetModel(m string) { t.next.SetModel(m) }
