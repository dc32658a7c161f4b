package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc/internal/domain"
)

// TestParseConfig verifies that YAML documents layer over the defaults
// and that invalid settings are rejected by validation.
func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		errMsg  string
		verify  func(t *testing.T, cfg Config)
	}{
		{
			name: "empty document keeps defaults",
			yaml: "",
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, ":8080", cfg.Server.Addr)
				assert.Equal(t, 2, cfg.Server.MaxUploadFiles)
				assert.Equal(t, int64(20<<20), cfg.Server.MaxUploadBytes)
				assert.Equal(t, []string{"jpg", "jpeg", "png", "pdf"}, cfg.Server.AllowedExtensions)
				assert.Equal(t, "fireworks", cfg.LLM.DefaultProvider)
				assert.Equal(t, 18, cfg.Pipeline.Age.MinimumAgeYears)
				assert.Equal(t, 30, cfg.Pipeline.Expiry.WarningWindowDays)
				assert.InDelta(t, 0.85, cfg.Pipeline.Consistency.SimilarityThreshold, 1e-9)
				assert.InDelta(t, 0.7, cfg.Pipeline.Consistency.ConfidenceThreshold, 1e-9)
				assert.Equal(t, 10*time.Second, cfg.Pipeline.Consistency.JudgeTimeout)
				assert.InDelta(t, 0.7, cfg.Pipeline.AuthenticityThreshold, 1e-9)
				assert.Equal(t, 5, cfg.Store.RecentLimit)
			},
		},
		{
			name: "partial document overrides only named keys",
			yaml: `
server:
  addr: ":9090"
pipeline:
  age:
    minimum_age_years: 21
  expiry:
    warning_window_days: 14
`,
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, ":9090", cfg.Server.Addr)
				assert.Equal(t, 21, cfg.Pipeline.Age.MinimumAgeYears)
				assert.Equal(t, 14, cfg.Pipeline.Expiry.WarningWindowDays)
				// Unnamed keys keep their defaults.
				assert.Equal(t, 2, cfg.Server.MaxUploadFiles)
				assert.InDelta(t, 0.85, cfg.Pipeline.Consistency.SimilarityThreshold, 1e-9)
				assert.Equal(t, "fireworks", cfg.LLM.DefaultProvider)
			},
		},
		{
			name: "model selection and thresholds",
			yaml: `
llm:
  default_provider: openai
  extraction_model: "openai/gpt-4o"
  transcription_model: "openai/gpt-4o"
  judge_model: "anthropic/claude-3-5-sonnet-20241022"
  request_timeout: 30s
pipeline:
  consistency:
    similarity_threshold: 0.9
    confidence_threshold: 0.8
    judge_timeout: 5s
  authenticity_confidence_threshold: 0.6
`,
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, "openai", cfg.LLM.DefaultProvider)
				assert.Equal(t, "openai/gpt-4o", cfg.LLM.ExtractionModel)
				assert.Equal(t, "anthropic/claude-3-5-sonnet-20241022", cfg.LLM.JudgeModelSpec())
				assert.Equal(t, "openai/gpt-4o", cfg.LLM.AuthenticityModelSpec())
				assert.Equal(t, 30*time.Second, cfg.LLM.RequestTimeout)
				assert.InDelta(t, 0.9, cfg.Pipeline.Consistency.SimilarityThreshold, 1e-9)
				assert.InDelta(t, 0.8, cfg.Pipeline.Consistency.ConfidenceThreshold, 1e-9)
				assert.Equal(t, 5*time.Second, cfg.Pipeline.Consistency.JudgeTimeout)
				assert.InDelta(t, 0.6, cfg.Pipeline.AuthenticityThreshold, 1e-9)
			},
		},
		{
			name: "schema table override",
			yaml: `
doc_type_schemas:
  passport:
    - name: name
      type: string
    - name: dob
      type: date
`,
			verify: func(t *testing.T, cfg Config) {
				require.Contains(t, cfg.Schemas, "passport")
				require.Len(t, cfg.Schemas["passport"], 2)
				assert.Equal(t, "dob", cfg.Schemas["passport"][1].Name)
				assert.Equal(t, "date", cfg.Schemas["passport"][1].Type)
			},
		},
		{
			name: "malformed yaml",
			yaml: `
server:
  addr: [unclosed
`,
			wantErr: true,
			errMsg:  "failed to parse configuration",
		},
		{
			name: "upload file cap out of range",
			yaml: `
server:
  max_upload_files: 0
`,
			wantErr: true,
			errMsg:  "configuration validation failed",
		},
		{
			name: "authenticity threshold above one",
			yaml: `
pipeline:
  authenticity_confidence_threshold: 1.5
`,
			wantErr: true,
			errMsg:  "configuration validation failed",
		},
		{
			name: "model spec with empty model segment",
			yaml: `
llm:
  extraction_model: "fireworks/"
`,
			wantErr: true,
			errMsg:  "configuration validation failed",
		},
		{
			name: "schema field with unknown type",
			yaml: `
doc_type_schemas:
  passport:
    - name: dob
      type: timestamp
`,
			wantErr: true,
			errMsg:  "configuration validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			if tt.verify != nil {
				tt.verify(t, cfg)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7000\"\n"), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, ":7000", cfg.Server.Addr)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read configuration")
	})
}

func TestConfig_SchemaRegistry(t *testing.T) {
	t.Run("defaults when no tables configured", func(t *testing.T) {
		reg, err := DefaultConfig().SchemaRegistry()
		require.NoError(t, err)

		sch, err := reg.For(domain.DocumentTypePassport)
		require.NoError(t, err)
		assert.Contains(t, sch.RequiredFields, "issuing_country")
	})

	t.Run("configured tables replace defaults", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Schemas = map[string][]SchemaFieldConfig{
			"passport": {
				{Name: "name", Type: "string"},
				{Name: "dob", Type: "date"},
			},
			"drivers_license": {
				{Name: "name", Type: "string"},
			},
		}

		reg, err := cfg.SchemaRegistry()
		require.NoError(t, err)

		sch, err := reg.For(domain.DocumentTypePassport)
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "dob"}, sch.RequiredFields)
		assert.True(t, sch.IsDateField("dob"))
		assert.False(t, sch.IsDateField("name"))
	})

	t.Run("unknown document type rejected", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Schemas = map[string][]SchemaFieldConfig{
			"library_card": {{Name: "name", Type: "string"}},
		}

		_, err := cfg.SchemaRegistry()
		require.ErrorIs(t, err, domain.ErrUnknownDocumentType)
	})
}

func TestLLMConfig_ModelSpecFallbacks(t *testing.T) {
	cfg := LLMConfig{ExtractionModel: "fireworks/accounts/fireworks/models/llama4-maverick-instruct-basic"}
	assert.Equal(t, cfg.ExtractionModel, cfg.JudgeModelSpec())
	assert.Equal(t, cfg.ExtractionModel, cfg.AuthenticityModelSpec())

	cfg.JudgeModel = "openai/gpt-4o"
	cfg.AuthenticityModel = "google/gemini-2.0-flash"
	assert.Equal(t, "openai/gpt-4o", cfg.JudgeModelSpec())
	assert.Equal(t, "google/gemini-2.0-flash", cfg.AuthenticityModelSpec())
}
