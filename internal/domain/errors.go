package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during verification operations.
var (
	// ErrUnknownDocumentType indicates a document type outside the
	// supported set.
	ErrUnknownDocumentType = errors.New("unknown document type")

	// ErrEmptyResponse indicates the extraction model returned no text.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrCaseNotFound indicates that a requested case does not exist.
	ErrCaseNotFound = errors.New("case not found")

	// ErrDocTypeUndetermined indicates document-type inference could not
	// classify the image.
	ErrDocTypeUndetermined = errors.New("document type could not be determined")

	// ErrInvalidConfiguration indicates that configuration is invalid or
	// incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// maxRawPreview bounds how much raw model output an error message shows.
// The full text stays on the error value for diagnostics.
const maxRawPreview = 120

// MalformedResponseError reports that no structured object could be
// recovered from the model's raw output. It is the only pipeline failure
// surfaced to callers as an error; every other failure mode is captured as
// data in the result. The original raw text is retained for diagnostics.
type MalformedResponseError struct {
	// Raw is the complete model output that failed hardening.
	Raw string

	// Err is the underlying parse error, when one exists.
	Err error
}

// Error implements the error interface. It previews rather than embeds the
// raw output, which can be arbitrarily large.
func (e *MalformedResponseError) Error() string {
	preview := e.Raw
	if len(preview) > maxRawPreview {
		preview = preview[:maxRawPreview] + "..."
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed model response (%d bytes): %v: %q", len(e.Raw), e.Err, preview)
	}
	return fmt.Sprintf("malformed model response (%d bytes): %q", len(e.Raw), preview)
}

// Unwrap returns the underlying parse error, supporting errors.Is/As.
func (e *MalformedResponseError) Unwrap() error { return e.Err }

// NewMalformedResponseError creates a MalformedResponseError carrying the
// raw model output.
func NewMalformedResponseError(raw string, err error) *MalformedResponseError {
	return &MalformedResponseError{Raw: raw, Err: err}
}

// IsMalformedResponse reports whether err is (or wraps) a
// MalformedResponseError.
func IsMalformedResponse(err error) bool {
	var target *MalformedResponseError
	return errors.As(err, &target)
}
