package application

import (
	"fmt"

	"github.com/veridoc/veridoc/internal/domain"
)

// Default instruction text for every model call. Prompts are
// configuration, not constants: these are only the DefaultConfig seeds,
// and deployments override them per environment.
const (
	defaultPassportExtractionPrompt = `Extract the following fields from this passport.
Return only JSON with keys: name, dob (YYYY-MM-DD), issuing_country (ISO3),
id_number, expiry_date (YYYY-MM-DD).
If a field is missing, set it to null.
Ensure the output is only a valid JSON object.`

	defaultLicenseExtractionPrompt = `Extract the following fields from this driver's license.
Return only JSON with keys: name, dob (YYYY-MM-DD), issuing_state (USPS),
id_number, expiry_date (YYYY-MM-DD), address.
If a field is missing, set it to null.
Ensure the output is only a valid JSON object.`

	defaultTranscriptionPrompt = `Transcribe the prominent words visible in this document image exactly as seen (no summaries).`

	defaultPassportAuthenticityPrompt = `You are a cautious identity verification assistant.
You are shown an image of a passport.
Your task is to assess whether the document appears authentic or suspicious.

Return ONLY JSON with the following fields:
{
  "is_suspected_fraud": true | false,
  "confidence": 0.0-1.0,
  "explanation": "short rationale"
}
If the document is not a passport, return "is_suspected_fraud": true with high confidence and explain.

Guidelines:
- Look for tampering: mismatched fonts, cut-and-paste artifacts, blurred text, misaligned photo, missing hologram/barcode/MRZ.
- Look for validity: presence of MRZ lines, consistent fonts, correct placement of fields.
- If uncertain, return "is_suspected_fraud": false with low confidence and explain.
- Do not hallucinate security features that are not visible.`

	defaultLicenseAuthenticityPrompt = `You are a cautious identity verification assistant.
You are shown an image of a driver's license.
Your task is to assess whether the document appears authentic or suspicious.

Return ONLY JSON with the following fields:
{
  "is_suspected_fraud": true | false,
  "confidence": 0.0-1.0,
  "explanation": "short rationale"
}
If the document is not a driver's license, return "is_suspected_fraud": true with high confidence and explain.

Guidelines:
- Look for tampering: mismatched fonts, cut-and-paste artifacts, blurred text, misaligned photo, missing hologram/barcode.
- Look for validity: presence of a PDF417 barcode, consistent fonts, correct placement of fields.
- If uncertain, return "is_suspected_fraud": false with low confidence and explain.
- Do not hallucinate security features that are not visible.`

	defaultEquivalencePrompt = `You compare two values extracted from different identity documents of the same person and decide whether they refer to the same underlying fact.
Account for OCR noise, abbreviations, diacritics, and formatting differences.

Return ONLY JSON with the following fields:
{
  "equivalent": true | false,
  "confidence": 0.0-1.0,
  "reasoning": "short rationale"
}`
)

// PromptsConfig carries the instruction text for every model call the
// service makes. The extraction and authenticity prompts are complete
// instructions selected per document type; the equivalence prompt is a
// preamble the judge extends with the field name and the two values.
type PromptsConfig struct {
	// PassportExtraction instructs field extraction from a passport.
	PassportExtraction string `yaml:"passport_extraction" validate:"required"`

	// LicenseExtraction instructs field extraction from a driver's
	// license.
	LicenseExtraction string `yaml:"license_extraction" validate:"required"`

	// Transcription instructs the OCR-style call behind document-type
	// inference.
	Transcription string `yaml:"transcription" validate:"required"`

	// PassportAuthenticity instructs the fraud-signal probe for passports.
	PassportAuthenticity string `yaml:"passport_authenticity" validate:"required"`

	// LicenseAuthenticity instructs the fraud-signal probe for driver's
	// licenses.
	LicenseAuthenticity string `yaml:"license_authenticity" validate:"required"`

	// Equivalence is the preamble for semantic-equivalence judgments.
	Equivalence string `yaml:"equivalence" validate:"required"`
}

// DefaultPrompts returns the built-in instruction set.
func DefaultPrompts() PromptsConfig {
	return PromptsConfig{
		PassportExtraction:   defaultPassportExtractionPrompt,
		LicenseExtraction:    defaultLicenseExtractionPrompt,
		Transcription:        defaultTranscriptionPrompt,
		PassportAuthenticity: defaultPassportAuthenticityPrompt,
		LicenseAuthenticity:  defaultLicenseAuthenticityPrompt,
		Equivalence:          defaultEquivalencePrompt,
	}
}

// ExtractionPrompt returns the extraction instruction for the document
// type.
func (p PromptsConfig) ExtractionPrompt(docType domain.DocumentType) (string, error) {
	switch docType {
	case domain.DocumentTypePassport:
		return p.PassportExtraction, nil
	case domain.DocumentTypeDriversLicense:
		return p.LicenseExtraction, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownDocumentType, docType)
	}
}

// AuthenticityPrompt returns the fraud-probe instruction for the document
// type.
func (p PromptsConfig) AuthenticityPrompt(docType domain.DocumentType) (string, error) {
	switch docType {
	case domain.DocumentTypePassport:
		return p.PassportAuthenticity, nil
	case domain.DocumentTypeDriversLicense:
		return p.LicenseAuthenticity, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownDocumentType, docType)
	}
}
