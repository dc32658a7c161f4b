package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/testutils"
)

func TestClassifyTranscript(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		wantType   domain.DocumentType
		wantOK     bool
	}{
		{
			name:       "passport keyword",
			transcript: "PASSPORT\nUnited States of America\nP<USADOE<<JANE",
			wantType:   domain.DocumentTypePassport,
			wantOK:     true,
		},
		{
			name:       "lowercase passport",
			transcript: "passport of the republic",
			wantType:   domain.DocumentTypePassport,
			wantOK:     true,
		},
		{
			name:       "driver license keyword",
			transcript: "CALIFORNIA DRIVER LICENSE\nDOE JANE",
			wantType:   domain.DocumentTypeDriversLicense,
			wantOK:     true,
		},
		{
			name:       "license keyword alone",
			transcript: "OPERATOR LICENSE 123",
			wantType:   domain.DocumentTypeDriversLicense,
			wantOK:     true,
		},
		{
			name:       "dl as separate token",
			transcript: "TEXAS DL 12345678",
			wantType:   domain.DocumentTypeDriversLicense,
			wantOK:     true,
		},
		{
			name:       "dl inside a longer word does not match",
			transcript: "HANDLE WITH CARE",
			wantOK:     false,
		},
		{
			name:       "passport wins over driver keywords",
			transcript: "PASSPORT CARD accepted in lieu of DRIVER LICENSE",
			wantType:   domain.DocumentTypePassport,
			wantOK:     true,
		},
		{
			name:       "no keywords",
			transcript: "UTILITY BILL\nACCOUNT 42",
			wantOK:     false,
		},
		{
			name:       "empty transcript",
			transcript: "",
			wantOK:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docType, ok := ClassifyTranscript(tt.transcript)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantType, docType)
		})
	}
}

func TestNewTypeInferrer_Validation(t *testing.T) {
	client := testutils.NewStubLLMClient("stub-ocr")

	_, err := NewTypeInferrer(nil, "transcribe", zap.NewNop())
	require.Error(t, err)

	_, err = NewTypeInferrer(client, "", zap.NewNop())
	require.Error(t, err)

	inf, err := NewTypeInferrer(client, "transcribe", nil)
	require.NoError(t, err)
	require.NotNil(t, inf)
}

func TestTypeInferrer_Infer(t *testing.T) {
	t.Run("classifies transcript", func(t *testing.T) {
		client := testutils.NewStubLLMClient("stub-ocr").
			AddScript(testutils.Script{Pattern: "transcribe", Response: "UNITED STATES PASSPORT"})
		inf, err := NewTypeInferrer(client, "Transcribe the prominent words", zap.NewNop())
		require.NoError(t, err)

		docType, err := inf.Infer(context.Background(), testutils.SampleJPEG())
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentTypePassport, docType)

		// The image travels with the transcription request.
		require.Len(t, client.LastRequest().Images, 1)
	})

	t.Run("undetermined transcript", func(t *testing.T) {
		client := testutils.NewStubLLMClient("stub-ocr").SetFallback("GAS STATION RECEIPT")
		inf, err := NewTypeInferrer(client, "Transcribe the prominent words", zap.NewNop())
		require.NoError(t, err)

		_, err = inf.Infer(context.Background(), testutils.SampleJPEG())
		require.ErrorIs(t, err, domain.ErrDocTypeUndetermined)
	})

	t.Run("transcription failure", func(t *testing.T) {
		client := testutils.NewStubLLMClient("stub-ocr").FailWith(errors.New("provider down"))
		inf, err := NewTypeInferrer(client, "Transcribe the prominent words", zap.NewNop())
		require.NoError(t, err)

		_, err = inf.Infer(context.Background(), testutils.SampleJPEG())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "transcription")
	})
}

func TestTypeInferrer_Report(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		client := testutils.NewStubLLMClient("stub-ocr").SetFallback("CALIFORNIA DRIVER LICENSE")
		inf, err := NewTypeInferrer(client, "Transcribe the prominent words", zap.NewNop())
		require.NoError(t, err)

		report, err := inf.Report(context.Background(), testutils.SampleJPEG(), domain.DocumentTypeDriversLicense)
		require.NoError(t, err)
		assert.Equal(t, "drivers_license", report.ExpectedType)
		assert.Equal(t, "drivers_license", report.InferredType)
		assert.True(t, report.Match)
	})

	t.Run("mismatch", func(t *testing.T) {
		client := testutils.NewStubLLMClient("stub-ocr").SetFallback("UNITED STATES PASSPORT")
		inf, err := NewTypeInferrer(client, "Transcribe the prominent words", zap.NewNop())
		require.NoError(t, err)

		report, err := inf.Report(context.Background(), testutils.SampleJPEG(), domain.DocumentTypeDriversLicense)
		require.NoError(t, err)
		assert.Equal(t, "passport", report.InferredType)
		assert.False(t, report.Match)
	})

	t.Run("undetermined reports unknown instead of failing", func(t *testing.T) {
		client := testutils.NewStubLLMClient("stub-ocr").SetFallback("BLANK PAGE")
		inf, err := NewTypeInferrer(client, "Transcribe the prominent words", zap.NewNop())
		require.NoError(t, err)

		report, err := inf.Report(context.Background(), testutils.SampleJPEG(), domain.DocumentTypePassport)
		require.NoError(t, err)
		assert.Equal(t, "passport", report.ExpectedType)
		assert.Equal(t, "unknown", report.InferredType)
		assert.False(t, report.Match)
	})

	t.Run("transport errors still fail", func(t *testing.T) {
		client := testutils.NewStubLLMClient("stub-ocr").FailWith(errors.New("provider down"))
		inf, err := NewTypeInferrer(client, "Transcribe the prominent words", zap.NewNop())
		require.NoError(t, err)

		_, err = inf.Report(context.Background(), testutils.SampleJPEG(), domain.DocumentTypePassport)
		require.Error(t, err)
	})
}
