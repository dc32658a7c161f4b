package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/veridoc/veridoc/internal/domain"
)

// errorBody is the error envelope every non-2xx response carries.
// Internal errors omit the description.
type errorBody struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// writeJSON encodes v with the JSON content type.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorCode writes the envelope directly. Handlers use it for
// request-shape problems that never reach the service.
func writeErrorCode(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorBody{Code: code, Description: description})
}

// writeError translates a service error into the envelope. Unrecognized
// errors become opaque 500s; their detail goes to the log, not the
// client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var upErr *uploadError
	switch {
	case errors.As(err, &upErr):
		writeErrorCode(w, http.StatusBadRequest, upErr.code, upErr.description)
	case domain.IsMalformedResponse(err):
		writeErrorCode(w, http.StatusBadGateway, "extraction_unrecoverable",
			"the model response could not be structured into fields")
	case errors.Is(err, domain.ErrDocTypeUndetermined):
		writeErrorCode(w, http.StatusUnprocessableEntity, "doc_type_undetermined",
			"the document type could not be inferred from the image")
	case errors.Is(err, domain.ErrCaseNotFound):
		writeErrorCode(w, http.StatusNotFound, "case_not_found", err.Error())
	case errors.Is(err, domain.ErrUnknownDocumentType):
		writeErrorCode(w, http.StatusBadRequest, "unknown_doc_type", err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeErrorCode(w, http.StatusInternalServerError, "internal_error", "")
	}
}
