package ports

import (
	"context"
	"time"

	"github.com/veridoc/veridoc/internal/domain"
)

// ChatRequest is one request to a language model. Requests with images are
// vision requests; the provider encodes the attachments in whatever form
// its API expects.
type ChatRequest struct {
	// Prompt is the instruction text.
	Prompt string

	// Images attaches document images for vision requests. Empty for plain
	// text requests such as equivalence judgments.
	Images []domain.ImageData

	// Options carries provider-specific options. Common options:
	//   - "temperature": float64
	//   - "max_tokens": int
	Options map[string]any
}

// LLMClient defines the interface for interacting with language model
// providers. Implementations handle provider-specific details like
// authentication, request formatting, and response decoding; reliability
// concerns (timeouts, retries, rate limits) are layered as middleware
// underneath this interface.
type LLMClient interface {
	// Complete sends a completion request and returns the generated text.
	// The output carries no format guarantee beyond "intended to be JSON"
	// for structured prompts; callers harden it before use.
	Complete(ctx context.Context, req ChatRequest) (string, error)

	// EstimateTokens calculates the approximate token count for a text.
	// Used for usage accounting; the estimation method varies by provider.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// VisionExtractor is the black-box extraction capability: given a document
// image and the type to extract for, return the model's raw text response.
// No contract exists on the output format; the hardening layer owns
// recovery.
type VisionExtractor interface {
	// Extract requests structured extraction for the image.
	Extract(ctx context.Context, image domain.ImageData, docType domain.DocumentType) (string, error)

	// Model returns the extraction model's identifier for result metadata.
	Model() string
}

// EquivalenceJudge is the black-box semantic-judgment capability: given
// two text snippets and the field they came from, return whether they
// refer to the same fact and with what confidence. Callers impose the
// timeout and treat judge failures as low confidence.
type EquivalenceJudge interface {
	JudgeEquivalent(ctx context.Context, a, b, fieldName string) (domain.Equivalence, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like recovery attempts, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like scores and latencies.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
