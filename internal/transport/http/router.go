// Package httptransport is the HTTP surface of the verification service.
// Handlers stay thin: decode the multipart request, call the application
// service, translate domain errors into the JSON error envelope. No
// business logic lives here.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veridoc/veridoc/internal/application"
	"github.com/veridoc/veridoc/internal/domain"
)

// Service is the slice of the application layer the transport needs.
type Service interface {
	Extract(ctx context.Context, image domain.ImageData, docType domain.DocumentType) (domain.ExtractedFields, error)
	ExtractBoth(ctx context.Context, passport, license domain.ImageData) (application.BothExtraction, error)
	Verify(ctx context.Context, in application.VerifyInput) (domain.VerificationResult, error)
	VerifyType(ctx context.Context, image domain.ImageData, expected domain.DocumentType) (application.TypeReport, error)
	CreateCase(ctx context.Context) (domain.CaseRecord, error)
	Case(ctx context.Context, caseID string) (domain.CaseRecord, error)
	RecentCases(ctx context.Context) ([]domain.CaseRecord, error)
	MarkForReview(ctx context.Context, caseID string, review bool) error
}

// Handler wires the verification endpoints to the application service.
type Handler struct {
	service Service
	limits  application.ServerConfig
	logger  *zap.Logger
}

// NewHandler creates the HTTP handler set. The server configuration
// supplies the upload constraints.
func NewHandler(service Service, limits application.ServerConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		limits:  limits,
		logger:  logger,
	}
}

// NewRouter builds the service router with the standard middleware stack
// and every endpoint mounted.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/verify_type", h.handleVerifyType)
	r.Post("/extract", h.handleExtract)
	r.Post("/extract/both", h.handleExtractBoth)
	r.Post("/verify", h.handleVerify)

	r.Route("/cases", func(r chi.Router) {
		r.Post("/", h.handleCreateCase)
		r.Get("/recent", h.handleRecentCases)
		r.Get("/{caseID}", h.handleGetCase)
		r.Post("/{caseID}/review", h.handleMarkReview)
	})

	return r
}
