package testutils

import (
	"fmt"
	"time"

	"github.com/veridoc/veridoc/internal/domain"
)

// Canonical extraction payloads. The field values here line up with the
// built-in schemas and parse cleanly, so tests that are not exercising
// recovery can focus on pipeline behavior.
const (
	// PassportJSON is a clean passport extraction payload.
	PassportJSON = `{"name": "JANE DOE", "dob": "1990-01-15", "issuing_country": "USA", "id_number": "P123456789", "expiry_date": "2031-12-01"}`

	// LicenseJSON is a clean driver's-license extraction payload for the
	// same holder as PassportJSON.
	LicenseJSON = `{"name": "JANE DOE", "dob": "1990-01-15", "issuing_state": "CA", "id_number": "D1234567", "address": "123 MAIN ST, SPRINGFIELD, CA", "expiry_date": "2030-06-30"}`
)

// FixedNow is a stable evaluation date for deterministic age and expiry
// outcomes against the canonical payloads.
var FixedNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// SampleJPEG returns a tiny JPEG-tagged payload for upload and vision
// request tests. The bytes carry a real JPEG magic number but no image.
func SampleJPEG() domain.ImageData {
	return domain.ImageData{
		MIMEType: "image/jpeg",
		Data:     []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00},
	}
}

// SamplePNG returns a tiny PNG-tagged payload.
func SamplePNG() domain.ImageData {
	return domain.ImageData{
		MIMEType: "image/png",
		Data:     []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A},
	}
}

// Fenced wraps a payload in a markdown code fence the way chat models
// habitually do.
func Fenced(payload string) string {
	return "```json\n" + payload + "\n```"
}

// EquivalenceJSON builds a judge payload with the given verdict.
func EquivalenceJSON(equivalent bool, confidence float64) string {
	return fmt.Sprintf(`{"equivalent": %t, "confidence": %g, "reasoning": "scripted judgment"}`, equivalent, confidence)
}

// AuthenticityJSON builds an authenticity probe payload with the given
// verdict.
func AuthenticityJSON(fraud bool, confidence float64) string {
	return fmt.Sprintf(`{"is_suspected_fraud": %t, "confidence": %g, "explanation": "scripted finding"}`, fraud, confidence)
}
