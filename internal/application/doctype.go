package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
)

// inferredUnknown is the report value when the transcript names no
// supported document type.
const inferredUnknown = "unknown"

// TypeInferrer classifies a document image by transcribing its prominent
// words and scanning the transcript for type keywords. The classification
// is intentionally shallow; it only gates which extraction schema
// applies.
type TypeInferrer struct {
	client ports.LLMClient
	prompt string
	logger *zap.Logger
	tracer trace.Tracer
}

// NewTypeInferrer creates a TypeInferrer over the given transcription
// client.
func NewTypeInferrer(client ports.LLMClient, prompt string, logger *zap.Logger) (*TypeInferrer, error) {
	if client == nil {
		return nil, fmt.Errorf("type inferrer requires an LLM client")
	}
	if prompt == "" {
		return nil, fmt.Errorf("type inferrer requires a transcription prompt")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeInferrer{
		client: client,
		prompt: prompt,
		logger: logger,
		tracer: otel.Tracer("doctype-inferrer"),
	}, nil
}

// Infer transcribes the image and classifies the transcript. It returns
// domain.ErrDocTypeUndetermined when the transcript names no supported
// document type.
func (t *TypeInferrer) Infer(ctx context.Context, image domain.ImageData) (domain.DocumentType, error) {
	ctx, span := t.tracer.Start(ctx, "TypeInferrer.Infer",
		trace.WithAttributes(attribute.Int("image.bytes", len(image.Data))),
	)
	defer span.End()

	transcript, err := t.client.Complete(ctx, ports.ChatRequest{
		Prompt: t.prompt,
		Images: []domain.ImageData{image},
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}

	docType, ok := ClassifyTranscript(transcript)
	if !ok {
		t.logger.Debug("transcript names no supported document type",
			zap.Int("transcript_bytes", len(transcript)),
		)
		return "", domain.ErrDocTypeUndetermined
	}

	span.SetAttributes(attribute.String("doc.type", string(docType)))
	return docType, nil
}

// ClassifyTranscript scans an uppercased transcript for document-type
// keywords. PASSPORT wins when both families appear, matching the MRZ
// line every passport carries.
func ClassifyTranscript(transcript string) (domain.DocumentType, bool) {
	upper := strings.ToUpper(transcript)
	if strings.Contains(upper, "PASSPORT") {
		return domain.DocumentTypePassport, true
	}
	if strings.Contains(upper, "DRIVER") || strings.Contains(upper, "LICENSE") || containsToken(upper, "DL") {
		return domain.DocumentTypeDriversLicense, true
	}
	return "", false
}

// containsToken reports whether the text contains the token as a separate
// word. Substring matching would misfire on short tokens such as DL.
func containsToken(text, token string) bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range fields {
		if word == token {
			return true
		}
	}
	return false
}

// TypeReport is the outcome of a document-type verification: the type the
// caller declared, the type the transcript indicates, and whether they
// agree. An undetermined transcript reports "unknown" rather than
// failing, since the declared type still gives the caller an answer.
type TypeReport struct {
	ExpectedType string `json:"expected_type"`
	InferredType string `json:"inferred_type"`
	Match        bool   `json:"match"`
}

// Report classifies the image and compares the outcome against the
// declared type.
func (t *TypeInferrer) Report(ctx context.Context, image domain.ImageData, expected domain.DocumentType) (TypeReport, error) {
	inferred, err := t.Infer(ctx, image)
	if errors.Is(err, domain.ErrDocTypeUndetermined) {
		return TypeReport{ExpectedType: string(expected), InferredType: inferredUnknown}, nil
	}
	if err != nil {
		return TypeReport{}, err
	}
	return TypeReport{
		ExpectedType: string(expected),
		InferredType: string(inferred),
		Match:        inferred == expected,
	}, nil
}
