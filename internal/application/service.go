package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veridoc/veridoc/internal/cases"
	"github.com/veridoc/veridoc/internal/checks"
	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
	"github.com/veridoc/veridoc/internal/schema"
)

// Service is the application facade the transport layer calls. It owns
// document-type inference, extraction, the verification pipeline, the
// authenticity probe, and case bookkeeping.
type Service struct {
	cfg          Config
	extractor    ports.VisionExtractor
	inferrer     *TypeInferrer
	authenticity *AuthenticityProbe
	orchestrator *Orchestrator
	schemas      *schema.Registry
	store        ports.CaseStore
	metrics      ports.MetricsCollector
	logger       *zap.Logger
	tracer       trace.Tracer
}

// ServiceDeps bundles the collaborators a Service composes. Metrics and
// Logger are optional; everything else is required.
type ServiceDeps struct {
	// Extractor is the vision-extraction capability.
	Extractor ports.VisionExtractor

	// Inferrer classifies document images when the caller omits the type.
	Inferrer *TypeInferrer

	// Authenticity probes verified documents for tampering signals.
	Authenticity *AuthenticityProbe

	// Orchestrator runs the hardening and validation pipeline.
	Orchestrator *Orchestrator

	// Schemas resolves document types to field schemas.
	Schemas *schema.Registry

	// Store persists case records.
	Store ports.CaseStore

	// Metrics receives operation measurements. Optional.
	Metrics ports.MetricsCollector

	// Logger receives service logs. Optional.
	Logger *zap.Logger
}

// NewService creates the verification service.
func NewService(cfg Config, deps ServiceDeps) (*Service, error) {
	if deps.Extractor == nil {
		return nil, fmt.Errorf("service requires a vision extractor")
	}
	if deps.Inferrer == nil {
		return nil, fmt.Errorf("service requires a type inferrer")
	}
	if deps.Authenticity == nil {
		return nil, fmt.Errorf("service requires an authenticity probe")
	}
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("service requires an orchestrator")
	}
	if deps.Schemas == nil {
		return nil, fmt.Errorf("service requires a schema registry")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("service requires a case store")
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:          cfg,
		extractor:    deps.Extractor,
		inferrer:     deps.Inferrer,
		authenticity: deps.Authenticity,
		orchestrator: deps.Orchestrator,
		schemas:      deps.Schemas,
		store:        deps.Store,
		metrics:      metrics,
		logger:       logger,
		tracer:       otel.Tracer("verification-service"),
	}, nil
}

// Extract runs extraction, hardening, and schema normalization for one
// document and returns the field set. No validators run.
func (s *Service) Extract(ctx context.Context, image domain.ImageData, docType domain.DocumentType) (domain.ExtractedFields, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Extract",
		trace.WithAttributes(attribute.String("doc.type", string(docType))),
	)
	defer span.End()

	start := time.Now()
	raw, err := s.extractor.Extract(ctx, image, docType)
	if err != nil {
		return nil, err
	}

	fields, err := s.orchestrator.Structure(raw, docType)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLatency("extract", time.Since(start), map[string]string{"doc_type": string(docType)})
	return fields, nil
}

// BothExtraction pairs the passport and driver's-license field sets of a
// dual-document submission.
type BothExtraction struct {
	Passport       domain.ExtractedFields `json:"passport"`
	DriversLicense domain.ExtractedFields `json:"drivers_license"`
}

// ExtractBoth extracts a passport and a driver's license concurrently.
// The two documents stay independent until consistency checking, which
// Verify owns, so the extractions share nothing but the context.
func (s *Service) ExtractBoth(ctx context.Context, passport, license domain.ImageData) (BothExtraction, error) {
	ctx, span := s.tracer.Start(ctx, "Service.ExtractBoth")
	defer span.End()

	var out BothExtraction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fields, err := s.Extract(gctx, passport, domain.DocumentTypePassport)
		if err != nil {
			return fmt.Errorf("passport: %w", err)
		}
		out.Passport = fields
		return nil
	})
	g.Go(func() error {
		fields, err := s.Extract(gctx, license, domain.DocumentTypeDriversLicense)
		if err != nil {
			return fmt.Errorf("drivers_license: %w", err)
		}
		out.DriversLicense = fields
		return nil
	})
	if err := g.Wait(); err != nil {
		return BothExtraction{}, err
	}
	return out, nil
}

// VerifyInput is one verification request.
type VerifyInput struct {
	// Image is the document image to verify.
	Image domain.ImageData

	// DocType is the declared document type. Empty means infer it from
	// the image.
	DocType domain.DocumentType

	// CaseID links the verification to an existing case. Empty means the
	// result stands alone.
	CaseID string

	// Now is the evaluation date. Zero means the current time.
	Now time.Time
}

// Verify runs the complete pipeline for one document: type inference
// when undeclared, extraction, hardening, schema normalization, rule
// checks, consistency against the case's prior documents, the
// authenticity probe, and scoring. When a case is attached the result is
// appended to it.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (domain.VerificationResult, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Verify",
		trace.WithAttributes(
			attribute.String("doc.type", string(in.DocType)),
			attribute.Bool("case.attached", in.CaseID != ""),
		),
	)
	defer span.End()

	start := time.Now()

	docType := in.DocType
	if docType == "" {
		inferred, err := s.inferrer.Infer(ctx, in.Image)
		if err != nil {
			return domain.VerificationResult{}, err
		}
		docType = inferred
		span.SetAttributes(attribute.String("doc.inferred_type", string(docType)))
	}

	var priors []domain.ExtractedFields
	if in.CaseID != "" {
		record, err := s.store.GetCase(ctx, in.CaseID)
		if err != nil {
			return domain.VerificationResult{}, err
		}
		priors = s.priorExtractions(record)
	}

	raw, err := s.extractor.Extract(ctx, in.Image, docType)
	if err != nil {
		return domain.VerificationResult{}, err
	}

	outcome, err := s.orchestrator.Process(ctx, PipelineInput{
		Raw:     raw,
		DocType: docType,
		Priors:  priors,
		Now:     in.Now,
	})
	if err != nil {
		return domain.VerificationResult{}, err
	}

	finding := s.authenticity.Probe(ctx, in.Image, docType)
	validators := outcome.Validators
	if s.fraudSuspected(finding) {
		validators = append(validators, domain.WarnResult(checks.CheckNameAuthenticity, finding.Explanation))
	}

	result := domain.VerificationResult{
		DocID:        uuid.NewString(),
		CaseID:       in.CaseID,
		DocType:      docType,
		Model:        s.extractor.Model(),
		Extracted:    outcome.Fields,
		Authenticity: &finding,
		Validators:   validators,
		Score:        outcome.Score,
		FinalStatus:  outcome.FinalStatus,
		CreatedAt:    time.Now().UTC(),
	}

	if in.CaseID != "" {
		if _, err := s.store.AppendResult(ctx, in.CaseID, result); err != nil {
			return domain.VerificationResult{}, fmt.Errorf("append result to case %s: %w", in.CaseID, err)
		}
	}

	s.metrics.RecordCounter("verification_verdicts_total", 1, map[string]string{"verdict": string(result.FinalStatus)})
	s.metrics.RecordLatency("verify", time.Since(start), map[string]string{"doc_type": string(docType)})
	s.logger.Info("verification complete",
		zap.String("doc_id", result.DocID),
		zap.String("case_id", in.CaseID),
		zap.String("doc_type", string(docType)),
		zap.Int("score", result.Score),
		zap.String("final_status", string(result.FinalStatus)),
		zap.Bool("fraud_suspected", !finding.Unavailable && finding.IsSuspectedFraud),
	)

	return result, nil
}

// VerifyType classifies the image and reports whether the outcome agrees
// with the declared type.
func (s *Service) VerifyType(ctx context.Context, image domain.ImageData, expected domain.DocumentType) (TypeReport, error) {
	return s.inferrer.Report(ctx, image, expected)
}

// CreateCase opens a new empty case.
func (s *Service) CreateCase(ctx context.Context) (domain.CaseRecord, error) {
	return s.store.CreateCase(ctx)
}

// Case returns one case record in full.
func (s *Service) Case(ctx context.Context, caseID string) (domain.CaseRecord, error) {
	return s.store.GetCase(ctx, caseID)
}

// RecentCases returns the most recently updated cases with sensitive
// values masked for display.
func (s *Service) RecentCases(ctx context.Context) ([]domain.CaseRecord, error) {
	records, err := s.store.ListRecent(ctx, s.cfg.Store.RecentLimit)
	if err != nil {
		return nil, err
	}
	masked := make([]domain.CaseRecord, len(records))
	for i, record := range records {
		masked[i] = cases.MaskCase(record)
	}
	return masked, nil
}

// MarkForReview flags or unflags a case for manual follow-up.
func (s *Service) MarkForReview(ctx context.Context, caseID string, review bool) error {
	return s.store.MarkForReview(ctx, caseID, review)
}

// fraudSuspected reports whether the finding crosses the configured
// warning threshold.
func (s *Service) fraudSuspected(f domain.AuthenticityFinding) bool {
	return !f.Unavailable && f.IsSuspectedFraud && f.Confidence >= s.cfg.Pipeline.AuthenticityThreshold
}

// priorExtractions rebuilds the case's earlier field sets through schema
// normalization. Persisted values round-trip as text, so date fields must
// be re-parsed before any date-sensitive comparison.
func (s *Service) priorExtractions(record domain.CaseRecord) []domain.ExtractedFields {
	if len(record.Results) == 0 {
		return nil
	}
	priors := make([]domain.ExtractedFields, 0, len(record.Results))
	for _, res := range record.Results {
		sch, err := s.schemas.For(res.DocType)
		if err != nil {
			s.logger.Warn("skipping prior with unknown document type",
				zap.String("case_id", record.CaseID),
				zap.String("doc_type", string(res.DocType)),
			)
			continue
		}
		priors = append(priors, schema.Normalize(res.Extracted, sch))
	}
	return priors
}
