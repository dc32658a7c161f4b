package httptransport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/veridoc/veridoc/internal/domain"
)

// Multipart form field names of the public API.
const (
	formFieldFiles          = "files"
	formFieldDocType        = "doc_type"
	formFieldCaseID         = "case_id"
	formFieldPassport       = "passport"
	formFieldDriversLicense = "drivers_license"
)

// multipartMemory caps how much of the parsed form stays in memory
// before spilling to disk.
const multipartMemory = 32 << 20

// uploadError is a request-shape violation in the multipart upload. The
// error writer maps every uploadError to a 400 with its code.
type uploadError struct {
	code        string
	description string
}

func (e *uploadError) Error() string { return e.description }

// parseMultipart bounds the request body, parses the form, and enforces
// the request-wide file count limit. Handlers call it once before
// reading any field.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	total := h.limits.MaxUploadBytes*int64(h.limits.MaxUploadFiles) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, total)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &uploadError{
				code:        "request_too_large",
				description: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit),
			}
		}
		return &uploadError{
			code:        "invalid_multipart",
			description: "request body is not valid multipart form data",
		}
	}

	count := 0
	for _, headers := range r.MultipartForm.File {
		count += len(headers)
	}
	if count == 0 {
		return &uploadError{code: "missing_file", description: "no file was uploaded"}
	}
	if count > h.limits.MaxUploadFiles {
		return &uploadError{
			code:        "too_many_files",
			description: fmt.Sprintf("at most %d files per request, got %d", h.limits.MaxUploadFiles, count),
		}
	}
	return nil
}

// formImage reads the first uploaded file under the named field and
// validates it against the upload constraints.
func (h *Handler) formImage(r *http.Request, field string) (domain.ImageData, error) {
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return domain.ImageData{}, &uploadError{
			code:        "missing_file",
			description: fmt.Sprintf("form field %q must carry a file", field),
		}
	}
	header := headers[0]

	if header.Size > h.limits.MaxUploadBytes {
		return domain.ImageData{}, &uploadError{
			code:        "file_too_large",
			description: fmt.Sprintf("file %q exceeds the %d byte limit", header.Filename, h.limits.MaxUploadBytes),
		}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !slices.Contains(h.limits.AllowedExtensions, ext) {
		return domain.ImageData{}, &uploadError{
			code:        "unsupported_file_type",
			description: fmt.Sprintf("file extension %q is not allowed (accepted: %s)", ext, strings.Join(h.limits.AllowedExtensions, ", ")),
		}
	}

	file, err := header.Open()
	if err != nil {
		return domain.ImageData{}, fmt.Errorf("open upload %q: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.ImageData{}, fmt.Errorf("read upload %q: %w", field, err)
	}

	return domain.ImageData{MIMEType: uploadMIMEType(header.Header.Get("Content-Type"), ext), Data: data}, nil
}

// uploadMIMEType resolves the stored MIME type: the part's declared type
// when it is specific, otherwise a type derived from the file extension.
func uploadMIMEType(declared, ext string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	switch ext {
	case "png":
		return "image/png"
	case "pdf":
		return "application/pdf"
	default:
		return "image/jpeg"
	}
}
