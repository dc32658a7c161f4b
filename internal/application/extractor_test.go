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

func TestNewExtractor_RequiresClient(t *testing.T) {
	_, err := NewExtractor(nil, DefaultPrompts(), zap.NewNop())
	require.Error(t, err)
}

func TestExtractor_Extract(t *testing.T) {
	t.Run("passport prompt routes to passport response", func(t *testing.T) {
		client := testutils.NewStubLLMClient("stub-vision").
			AddScript(testutils.Script{Pattern: "issuing_country", Response: testutils.PassportJSON}).
			AddScript(testutils.Script{Pattern: "issuing_state", Response: testutils.LicenseJSON})
		extractor, err := NewExtractor(client, DefaultPrompts(), zap.NewNop())
		require.NoError(t, err)

		raw, err := extractor.Extract(context.Background(), testutils.SampleJPEG(), domain.DocumentTypePassport)
		require.NoError(t, err)
		assert.Equal(t, testutils.PassportJSON, raw)

		// The image rides along with the instruction.
		last := client.LastRequest()
		require.Len(t, last.Images, 1)
		assert.Equal(t, "image/jpeg", last.Images[0].MIMEType)
	})

	t.Run("license prompt routes to license response", func(t *testing.T) {
		client := testutils.NewStubLLMClient("stub-vision").
			AddScript(testutils.Script{Pattern: "issuing_state", Response: testutils.LicenseJSON})
		extractor, err := NewExtractor(client, DefaultPrompts(), zap.NewNop())
		require.NoError(t, err)

		raw, err := extractor.Extract(context.Background(), testutils.SampleJPEG(), domain.DocumentTypeDriversLicense)
		require.NoError(t, err)
		assert.Equal(t, testutils.LicenseJSON, raw)
	})

	t.Run("unknown document type", func(t *testing.T) {
		client := testutils.NewStubLLMClient("stub-vision")
		extractor, err := NewExtractor(client, DefaultPrompts(), zap.NewNop())
		require.NoError(t, err)

		_, err = extractor.Extract(context.Background(), testutils.SampleJPEG(), domain.DocumentType("visa"))
		require.ErrorIs(t, err, domain.ErrUnknownDocumentType)
		assert.Equal(t, 0, client.CallCount())
	})

	t.Run("model failure wraps", func(t *testing.T) {
		client := testutils.NewStubLLMClient("stub-vision").FailWith(errors.New("provider down"))
		extractor, err := NewExtractor(client, DefaultPrompts(), zap.NewNop())
		require.NoError(t, err)

		_, err = extractor.Extract(context.Background(), testutils.SampleJPEG(), domain.DocumentTypePassport)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "vision extraction")
	})

	t.Run("model name passthrough", func(t *testing.T) {
		client := testutils.NewStubLLMClient("accounts/fireworks/models/llama4-maverick-instruct-basic")
		extractor, err := NewExtractor(client, DefaultPrompts(), zap.NewNop())
		require.NoError(t, err)

		assert.Equal(t, "accounts/fireworks/models/llama4-maverick-instruct-basic", extractor.Model())
	})
}
