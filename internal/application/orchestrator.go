package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/veridoc/veridoc/internal/checks"
	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/hardening"
	"github.com/veridoc/veridoc/internal/ports"
	"github.com/veridoc/veridoc/internal/schema"
)

// Stage identifies how far a verification advanced through the pipeline.
// Stages move strictly forward within a request; the only early exit is a
// hardening failure, which terminates the run at StageReceived.
type Stage string

// Pipeline stages in execution order.
const (
	StageReceived           Stage = "received"
	StageHardened           Stage = "hardened"
	StageSchemaValidated    Stage = "schema_validated"
	StageRuleChecked        Stage = "rule_checked"
	StageConsistencyChecked Stage = "consistency_checked"
	StageScored             Stage = "scored"
	StageComplete           Stage = "complete"
)

// PipelineInput is one document's raw extraction and its evaluation
// context.
type PipelineInput struct {
	// Raw is the unprocessed model response for the document.
	Raw string

	// DocType selects the schema and validator configuration.
	DocType domain.DocumentType

	// Priors are the case's earlier field sets, oldest first. Empty for a
	// standalone document; consistency checking engages only when present.
	Priors []domain.ExtractedFields

	// Now is the evaluation date. Zero means the current time.
	Now time.Time
}

// PipelineOutcome is the terminal state of one pipeline run.
type PipelineOutcome struct {
	// Fields holds the hardened, schema-normalized extraction.
	Fields domain.ExtractedFields

	// Validators is the ordered check outcome sequence.
	Validators []domain.ValidatorResult

	// Score counts the failing validators.
	Score int

	// FinalStatus is pass exactly when Score is zero.
	FinalStatus domain.Status

	// Stage is the stage the run reached: StageComplete on success,
	// StageReceived when hardening failed.
	Stage Stage
}

// Orchestrator drives one document through hardening, schema
// normalization, rule checks, optional consistency checking, and scoring.
// Each transition is a single forward step with no retries; apart from
// the hardening gate every step is total and never aborts the run.
type Orchestrator struct {
	hardener *hardening.Hardener
	schemas  *schema.Registry
	runner   *checks.Runner
	metrics  ports.MetricsCollector
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewOrchestrator wires the pipeline components. Hardener, schema
// registry, and runner are required; metrics and logger default to
// no-ops.
func NewOrchestrator(hardener *hardening.Hardener, schemas *schema.Registry, runner *checks.Runner, metrics ports.MetricsCollector, logger *zap.Logger) (*Orchestrator, error) {
	if hardener == nil {
		return nil, fmt.Errorf("orchestrator requires a hardener")
	}
	if schemas == nil {
		return nil, fmt.Errorf("orchestrator requires a schema registry")
	}
	if runner == nil {
		return nil, fmt.Errorf("orchestrator requires a check runner")
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		hardener: hardener,
		schemas:  schemas,
		runner:   runner,
		metrics:  metrics,
		logger:   logger,
		tracer:   otel.Tracer("verification-orchestrator"),
	}, nil
}

// Structure hardens a raw model response and normalizes it against the
// document schema without running any validators. The extraction
// endpoints use this directly; Process continues into checks and scoring.
func (o *Orchestrator) Structure(raw string, docType domain.DocumentType) (domain.ExtractedFields, error) {
	_, fields, err := o.structure(raw, docType)
	return fields, err
}

// structure is the shared first half of the pipeline: schema lookup,
// hardening, date normalization.
func (o *Orchestrator) structure(raw string, docType domain.DocumentType) (domain.FieldSchema, domain.ExtractedFields, error) {
	sch, err := o.schemas.For(docType)
	if err != nil {
		return domain.FieldSchema{}, nil, err
	}

	start := time.Now()
	fields, err := o.hardener.Harden(raw, sch)
	o.metrics.RecordLatency("harden", time.Since(start), map[string]string{"doc_type": string(docType)})
	if err != nil {
		o.logger.Warn("hardening failed",
			zap.String("doc_type", string(docType)),
			zap.Error(err),
		)
		return domain.FieldSchema{}, nil, err
	}

	return sch, schema.Normalize(fields, sch), nil
}

// Process runs the full pipeline for one document. On a hardening
// failure the returned error is the domain.MalformedResponseError and
// the outcome's stage is StageReceived; every other input produces a
// complete outcome.
func (o *Orchestrator) Process(ctx context.Context, in PipelineInput) (PipelineOutcome, error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Process",
		trace.WithAttributes(
			attribute.String("doc.type", string(in.DocType)),
			attribute.Int("case.prior_documents", len(in.Priors)),
		),
	)
	defer span.End()

	start := time.Now()
	stage := StageReceived
	advance := func(next Stage) {
		stage = next
		span.AddEvent("stage." + string(next))
	}

	sch, fields, err := o.structure(in.Raw, in.DocType)
	if err != nil {
		span.SetAttributes(attribute.String("pipeline.stage", string(stage)))
		return PipelineOutcome{Stage: stage}, err
	}
	advance(StageHardened)
	advance(StageSchemaValidated)

	checksStart := time.Now()
	results := o.runner.Run(ctx, ports.CheckInput{
		Fields: fields,
		Schema: sch,
		Priors: in.Priors,
		Now:    in.Now,
	})
	o.metrics.RecordLatency("checks", time.Since(checksStart), map[string]string{"doc_type": string(in.DocType)})
	advance(StageRuleChecked)
	if len(in.Priors) > 0 {
		advance(StageConsistencyChecked)
	}

	score, final := domain.Aggregate(results)
	advance(StageScored)
	advance(StageComplete)

	span.SetAttributes(
		attribute.String("pipeline.stage", string(stage)),
		attribute.Int("pipeline.score", score),
		attribute.String("pipeline.final_status", string(final)),
	)
	o.metrics.RecordLatency("pipeline", time.Since(start), map[string]string{"doc_type": string(in.DocType)})
	o.logger.Debug("pipeline complete",
		zap.String("doc_type", string(in.DocType)),
		zap.Int("score", score),
		zap.String("final_status", string(final)),
		zap.Int("validators", len(results)),
	)

	return PipelineOutcome{
		Fields:      fields,
		Validators:  results,
		Score:       score,
		FinalStatus: final,
		Stage:       stage,
	}, nil
}

// BuildRunner constructs the check runner from pipeline configuration.
// A nil judge disables the consistency judgment tier; the rule tier still
// runs and unresolvable fields warn.
func BuildRunner(cfg PipelineConfig, judge ports.EquivalenceJudge) (*checks.Runner, error) {
	required, err := checks.NewRequiredFieldsCheck(checks.CheckNameRequiredFields)
	if err != nil {
		return nil, err
	}
	age, err := checks.NewAgeCheck(checks.CheckNameAge, cfg.Age)
	if err != nil {
		return nil, err
	}
	expiry, err := checks.NewExpiryCheck(checks.CheckNameExpiry, cfg.Expiry)
	if err != nil {
		return nil, err
	}
	consistency, err := checks.NewConsistencyCheck(checks.CheckNameConsistency, cfg.Consistency, judge)
	if err != nil {
		return nil, err
	}
	return checks.NewRunner([]ports.Check{required, age, expiry}, consistency)
}

// nopMetrics discards all measurements. Constructors substitute it for a
// nil collector so call sites never nil-check.
type nopMetrics struct{}

func (nopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (nopMetrics) RecordCounter(string, float64, map[string]string)      {}
func (nopMetrics) RecordGauge(string, float64, map[string]string)        {}
func (nopMetrics) RecordHistogram(string, float64, map[string]string)    {}
