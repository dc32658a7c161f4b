// Package application composes the verification pipeline behind a single
// service facade: configuration, prompt construction, LLM-backed
// capability adapters, and the per-document orchestration that turns a
// raw model response into a scored verification result.
package application

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/veridoc/veridoc/internal/checks"
	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/schema"
)

// Config is the complete service configuration. Thresholds, prompts,
// model names, and schema tables all live here rather than in constants;
// ParseConfig layers YAML over DefaultConfig so a partial file only
// overrides what it names.
type Config struct {
	// Server configures the HTTP listener and upload limits.
	Server ServerConfig `yaml:"server" validate:"required"`

	// LLM configures providers and per-capability model selection.
	LLM LLMConfig `yaml:"llm" validate:"required"`

	// Prompts carries the instruction text for every model call.
	Prompts PromptsConfig `yaml:"prompts" validate:"required"`

	// Pipeline configures the validators and the authenticity threshold.
	Pipeline PipelineConfig `yaml:"pipeline" validate:"required"`

	// Store configures case persistence.
	Store StoreConfig `yaml:"store" validate:"required"`

	// Schemas overrides the built-in document schema tables when present.
	// Keys are document type names; values declare the expected fields in
	// display order.
	Schemas map[string][]SchemaFieldConfig `yaml:"doc_type_schemas" validate:"omitempty,dive,min=1,dive"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	// Addr is the listen address, host optional (":8080").
	Addr string `yaml:"addr" validate:"required"`

	// MaxUploadFiles caps how many files one multipart request may carry.
	MaxUploadFiles int `yaml:"max_upload_files" validate:"min=1,max=10"`

	// MaxUploadBytes caps the size of each uploaded file.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" validate:"min=1"`

	// AllowedExtensions lists the accepted upload file extensions,
	// lowercase without the dot.
	AllowedExtensions []string `yaml:"allowed_extensions" validate:"required,min=1,dive,min=1"`

	// ShutdownGrace bounds how long in-flight requests may run after a
	// termination signal.
	ShutdownGrace time.Duration `yaml:"shutdown_grace" validate:"min=0"`
}

// LLMConfig selects providers and models per capability. Model references
// use the registry spec format "provider" or "provider/model"; Fireworks
// model identifiers contain slashes, so everything after the first
// separator belongs to the model.
type LLMConfig struct {
	// DefaultProvider names the provider used when a spec omits one.
	DefaultProvider string `yaml:"default_provider" validate:"required"`

	// ExtractionModel is the vision model for field extraction.
	ExtractionModel string `yaml:"extraction_model" validate:"required,modelspec"`

	// TranscriptionModel is the OCR-style model for document-type
	// inference.
	TranscriptionModel string `yaml:"transcription_model" validate:"required,modelspec"`

	// JudgeModel is the model for equivalence judgments. Empty shares the
	// extraction model.
	JudgeModel string `yaml:"judge_model" validate:"omitempty,modelspec"`

	// AuthenticityModel is the vision model for the authenticity probe.
	// Empty shares the extraction model.
	AuthenticityModel string `yaml:"authenticity_model" validate:"omitempty,modelspec"`

	// RequestTimeout bounds each model call end to end.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"min=0"`
}

// JudgeModelSpec returns the model spec for equivalence judgments,
// falling back to the extraction model when no dedicated judge model is
// configured.
func (c LLMConfig) JudgeModelSpec() string {
	if c.JudgeModel != "" {
		return c.JudgeModel
	}
	return c.ExtractionModel
}

// AuthenticityModelSpec returns the model spec for the authenticity
// probe, falling back to the extraction model.
func (c LLMConfig) AuthenticityModelSpec() string {
	if c.AuthenticityModel != "" {
		return c.AuthenticityModel
	}
	return c.ExtractionModel
}

// PipelineConfig tunes the validator sequence and the authenticity
// warning threshold.
type PipelineConfig struct {
	// Age configures the minimum-age check.
	Age checks.AgeConfig `yaml:"age"`

	// Expiry configures the imminent-expiry warning window.
	Expiry checks.ExpiryConfig `yaml:"expiry"`

	// Consistency configures the cross-document tolerance and judgment
	// tiers.
	Consistency checks.ConsistencyConfig `yaml:"consistency"`

	// AuthenticityThreshold is the minimum probe confidence at which a
	// suspected-fraud finding adds a warn validator entry.
	AuthenticityThreshold float64 `yaml:"authenticity_confidence_threshold" validate:"min=0,max=1"`
}

// StoreConfig holds case persistence settings.
type StoreConfig struct {
	// Dir is the root directory of the flat-file case store.
	Dir string `yaml:"dir" validate:"required"`

	// RecentLimit caps how many cases the recent-cases view returns.
	RecentLimit int `yaml:"recent_limit" validate:"min=1"`
}

// SchemaFieldConfig declares one expected field of a document schema.
type SchemaFieldConfig struct {
	// Name is the field name as the extraction prompt requests it.
	Name string `yaml:"name" validate:"required,min=1"`

	// Type is the value interpretation: "string" or "date".
	Type string `yaml:"type" validate:"required,oneof=string date"`
}

// DefaultConfig returns the production defaults: Fireworks vision models,
// the built-in schema tables, and the standard validator thresholds.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			MaxUploadFiles:    2,
			MaxUploadBytes:    20 << 20,
			AllowedExtensions: []string{"jpg", "jpeg", "png", "pdf"},
			ShutdownGrace:     10 * time.Second,
		},
		LLM: LLMConfig{
			DefaultProvider:    "fireworks",
			ExtractionModel:    "fireworks/accounts/fireworks/models/llama4-maverick-instruct-basic",
			TranscriptionModel: "fireworks/accounts/fireworks/models/firesearch-ocr-v6",
			RequestTimeout:     60 * time.Second,
		},
		Prompts: DefaultPrompts(),
		Pipeline: PipelineConfig{
			Age:                   checks.DefaultAgeConfig(),
			Expiry:                checks.DefaultExpiryConfig(),
			Consistency:           checks.DefaultConsistencyConfig(),
			AuthenticityThreshold: 0.7,
		},
		Store: StoreConfig{
			Dir:         "data/cases",
			RecentLimit: 5,
		},
	}
}

// ParseConfig decodes YAML over the defaults and validates the result.
// Keys absent from the document keep their default values.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads YAML configuration from a file. An empty path returns
// the validated defaults, so running without a config file works.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	return ParseConfig(data)
}

// Validate checks the configuration against its declared constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// SchemaRegistry builds the document schema registry from the configured
// doc_type_schemas tables, or the built-in tables when none are
// configured.
func (c Config) SchemaRegistry() (*schema.Registry, error) {
	if len(c.Schemas) == 0 {
		return schema.DefaultRegistry(), nil
	}

	tables := make(map[domain.DocumentType]domain.FieldSchema, len(c.Schemas))
	for name, fields := range c.Schemas {
		docType, err := domain.ParseDocumentType(name)
		if err != nil {
			return nil, fmt.Errorf("doc_type_schemas: %w", err)
		}
		sch := domain.FieldSchema{
			DocType:        docType,
			RequiredFields: make([]string, 0, len(fields)),
			FieldTypes:     make(map[string]domain.FieldType, len(fields)),
		}
		for _, field := range fields {
			sch.RequiredFields = append(sch.RequiredFields, field.Name)
			sch.FieldTypes[field.Name] = domain.FieldType(field.Type)
		}
		tables[docType] = sch
	}
	return schema.NewRegistry(tables)
}

// validate is the package-level validator shared by configuration
// checking and LLM payload validation.
var validate = newValidator()

// newValidator builds the validator instance with the custom model-spec
// rule registered.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("modelspec", validateModelSpec); err != nil {
		panic(fmt.Sprintf("application: modelspec validator registration: %v", err))
	}
	return v
}

// validateModelSpec accepts "provider" or "provider/model" references.
// The provider segment must be non-empty; the model segment, when a
// separator is present, must be non-empty too. Model identifiers may
// themselves contain slashes.
func validateModelSpec(fl validator.FieldLevel) bool {
	spec := fl.Field().String()
	if spec == "" {
		return true
	}
	provider, model, found := strings.Cut(spec, "/")
	if provider == "" {
		return false
	}
	if found && model == "" {
		return false
	}
	return true
}
