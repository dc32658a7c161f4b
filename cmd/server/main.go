// Package main runs the document verification HTTP service.
//
// The binary loads its configuration from an optional YAML file, builds
// LLM clients for the configured extraction, transcription, judge, and
// authenticity models through the provider registry, and serves the
// verification API until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/veridoc/veridoc/infrastructure/llm"
	"github.com/veridoc/veridoc/infrastructure/middleware"
	"github.com/veridoc/veridoc/internal/application"
	"github.com/veridoc/veridoc/internal/cases"
	"github.com/veridoc/veridoc/internal/hardening"
	"github.com/veridoc/veridoc/internal/ports"
	httptransport "github.com/veridoc/veridoc/internal/transport/http"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to the YAML configuration file (built-in defaults apply when empty)")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := application.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	metrics := middleware.NewPrometheusMetrics()

	registry, err := llm.NewRegistry(llm.RegistryConfig{
		Providers:       llm.DefaultProviders,
		DefaultProvider: cfg.LLM.DefaultProvider,
		DefaultTimeout:  cfg.LLM.RequestTimeout,
		// First entry is outermost: spans cover retries, retries observe the
		// breaker, and the limiter gates each attempt that reaches a provider.
		DefaultMiddleware: []llm.Middleware{
			llm.TracingMiddleware("veridoc.llm"),
			llm.MetricsMiddleware(metrics),
			llm.RetryMiddleware(2, time.Second, 8*time.Second),
			llm.CircuitBreakerMiddleware(5, 30*time.Second),
			llm.RateLimitMiddleware(10, 20),
		},
	})
	if err != nil {
		logger.Fatal("failed to create provider registry", zap.Error(err))
	}
	if err := registry.InitializeProviders(); err != nil {
		logger.Fatal("failed to initialize providers", zap.Error(err))
	}

	service, err := buildService(cfg, registry, metrics, logger)
	if err != nil {
		logger.Fatal("failed to assemble verification service", zap.Error(err))
	}

	handler := httptransport.NewHandler(service, cfg.Server, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httptransport.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting verification server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("default_provider", cfg.LLM.DefaultProvider),
			zap.String("extraction_model", cfg.LLM.ExtractionModel))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server", zap.Duration("grace", cfg.Server.ShutdownGrace))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
}

// buildService resolves the configured model specs against the registry and
// wires the pipeline components behind the application service.
func buildService(cfg application.Config, registry *llm.Registry, metrics ports.MetricsCollector, logger *zap.Logger) (*application.Service, error) {
	visionClient, err := registry.GetClient(cfg.LLM.ExtractionModel)
	if err != nil {
		return nil, fmt.Errorf("extraction model: %w", err)
	}
	ocrClient, err := registry.GetClient(cfg.LLM.TranscriptionModel)
	if err != nil {
		return nil, fmt.Errorf("transcription model: %w", err)
	}
	judgeClient, err := registry.GetClient(cfg.LLM.JudgeModelSpec())
	if err != nil {
		return nil, fmt.Errorf("judge model: %w", err)
	}
	authClient, err := registry.GetClient(cfg.LLM.AuthenticityModelSpec())
	if err != nil {
		return nil, fmt.Errorf("authenticity model: %w", err)
	}

	extractor, err := application.NewExtractor(visionClient, cfg.Prompts, logger)
	if err != nil {
		return nil, err
	}
	inferrer, err := application.NewTypeInferrer(ocrClient, cfg.Prompts.Transcription, logger)
	if err != nil {
		return nil, err
	}
	probe, err := application.NewAuthenticityProbe(authClient, cfg.Prompts, logger)
	if err != nil {
		return nil, err
	}
	judge, err := application.NewJudge(judgeClient, cfg.Prompts.Equivalence, logger)
	if err != nil {
		return nil, err
	}

	runner, err := application.BuildRunner(cfg.Pipeline, judge)
	if err != nil {
		return nil, err
	}
	schemas, err := cfg.SchemaRegistry()
	if err != nil {
		return nil, err
	}
	orchestrator, err := application.NewOrchestrator(hardening.NewHardener(logger), schemas, runner, metrics, logger)
	if err != nil {
		return nil, err
	}
	store, err := cases.NewFileStore(cfg.Store.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("case store: %w", err)
	}

	return application.NewService(cfg, application.ServiceDeps{
		Extractor:    extractor,
		Inferrer:     inferrer,
		Authenticity: probe,
		Orchestrator: orchestrator,
		Schemas:      schemas,
		Store:        store,
		Metrics:      metrics,
		Logger:       logger,
	})
}
