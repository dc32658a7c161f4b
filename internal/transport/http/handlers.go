package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veridoc/veridoc/internal/application"
	"github.com/veridoc/veridoc/internal/domain"
)

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleVerifyType reports whether the uploaded document looks like the
// declared type.
func (h *Handler) handleVerifyType(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	image, err := h.formImage(r, formFieldFiles)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	expected, err := domain.ParseDocumentType(r.FormValue(formFieldDocType))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	report, err := h.service.VerifyType(r.Context(), image, expected)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// extractResponse carries one document's structured fields.
type extractResponse struct {
	DocType   domain.DocumentType    `json:"doc_type"`
	Extracted domain.ExtractedFields `json:"extracted"`
}

// handleExtract returns the hardened, schema-normalized fields of one
// document without running validators.
func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	image, err := h.formImage(r, formFieldFiles)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	docType, err := domain.ParseDocumentType(r.FormValue(formFieldDocType))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	fields, err := h.service.Extract(r.Context(), image, docType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{DocType: docType, Extracted: fields})
}

// handleExtractBoth extracts a passport and a driver's license from one
// request, concurrently.
func (h *Handler) handleExtractBoth(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	passport, err := h.formImage(r, formFieldPassport)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	license, err := h.formImage(r, formFieldDriversLicense)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	both, err := h.service.ExtractBoth(r.Context(), passport, license)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, both)
}

// handleVerify runs the full verification pipeline for one document.
// The document type is inferred when the form omits it; a case ID links
// the result into a case.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	image, err := h.formImage(r, formFieldFiles)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var docType domain.DocumentType
	if raw := r.FormValue(formFieldDocType); raw != "" {
		docType, err = domain.ParseDocumentType(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	result, err := h.service.Verify(r.Context(), application.VerifyInput{
		Image:   image,
		DocType: docType,
		CaseID:  r.FormValue(formFieldCaseID),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.CreateCase(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// casesResponse wraps the masked recent-cases listing.
type casesResponse struct {
	Cases []domain.CaseRecord `json:"cases"`
}

func (h *Handler) handleRecentCases(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.RecentCases(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.CaseRecord{}
	}
	writeJSON(w, http.StatusOK, casesResponse{Cases: records})
}

func (h *Handler) handleGetCase(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Case(r.Context(), chi.URLParam(r, "caseID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// reviewRequest toggles a case's manual-review flag.
type reviewRequest struct {
	Review bool `json:"review"`
}

func (h *Handler) handleMarkReview(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")

	var body reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request",
			`request body must be JSON with a boolean "review" field`)
		return
	}

	if err := h.service.MarkForReview(r.Context(), caseID, body.Review); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"case_id": caseID,
		"review":  body.Review,
	})
}
