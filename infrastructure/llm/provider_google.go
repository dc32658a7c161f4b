package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/veridoc/veridoc/internal/ports"
)

// GoogleDefaultModel is the default model for the google provider.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements the CoreLLM interface for Google's Gemini API.
// It handles Google-specific authentication, request formatting, and error
// handling, while conforming to the common interface for middleware
// compatibility.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newGoogleProvider creates a new Google Gemini provider instance.
// This factory function configures the provider with the necessary client and
// authenticates using the provided configuration.
// It returns an error if the required configuration is missing or invalid.
func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	authConfig, err := buildAuthConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to configure authentication: %w", err)
	}

	client, err := genai.NewClient(context.Background(), authConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// DoRequest sends a chat request to the Google Gemini API and returns the
// response. Image attachments are passed as inline byte parts ahead of the
// instruction text, and token usage comes from the response metadata when
// available.
func (p *googleProvider) DoRequest(ctx context.Context, req ports.ChatRequest) (string, int, int, error) {
	options := ParseRequestOptions(req.Options, p.GetModel())

	contents := p.buildContents(req, options)
	config := p.buildGenerationConfig(options)

	resp, err := p.client.Models.GenerateContent(ctx, options.Model, contents, config)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	tokensIn := p.getTokenCount(resp.UsageMetadata, true, req.Prompt)
	tokensOut := p.getTokenCount(resp.UsageMetadata, false, content)

	return content, tokensIn, tokensOut, nil
}

// getTokenCount retrieves the token count from the API response metadata.
// If the token count is not available in the metadata, it falls back to
// estimating the tokens based on the text content.
func (p *googleProvider) getTokenCount(usage *genai.GenerateContentResponseUsageMetadata, isInput bool, text string) int {
	if usage != nil {
		if isInput && usage.PromptTokenCount > 0 {
			return int(usage.PromptTokenCount)
		}
		if !isInput && usage.CandidatesTokenCount > 0 {
			return int(usage.CandidatesTokenCount)
		}
	}
	return p.tokenCounter.EstimateTokens(text)
}

// buildContents creates the content parts for a Gemini API request.
// Google's API has no separate system role, so any system prompt is
// prepended to the user prompt in a structured format.
func (p *googleProvider) buildContents(req ports.ChatRequest, options RequestOptions) []*genai.Content {
	finalPrompt := req.Prompt
	if options.System != "" {
		finalPrompt = fmt.Sprintf("System: %s\n\nUser: %s", options.System, req.Prompt)
	}

	if len(req.Images) == 0 {
		return []*genai.Content{genai.NewContentFromText(finalPrompt, genai.RoleUser)}
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(finalPrompt))

	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// buildGenerationConfig creates the generation configuration for a Gemini
// API request. It validates and sets parameters such as temperature, max
// tokens, and top P.
func (p *googleProvider) buildGenerationConfig(options RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if options.Temperature != nil {
		// Gemini supports a temperature range of 0.0 to 2.0.
		temp := ClampFloat64(*options.Temperature, 0.0, 2.0)
		config.Temperature = genai.Ptr(float32(temp))
	}

	if options.MaxTokens > 0 {
		if options.MaxTokens > math.MaxInt32 {
			config.MaxOutputTokens = math.MaxInt32
		} else {
			config.MaxOutputTokens = int32(options.MaxTokens)
		}
	}

	if options.TopP != nil {
		topP := ClampFloat64(*options.TopP, 0.0, 1.0)
		config.TopP = genai.Ptr(float32(topP))
	}

	if topK, ok := options.Extra["top_k"].(int); ok {
		// Gemini supports top K values between 1 and 40.
		topK = ClampInt(topK, 1, 40)
		config.TopK = genai.Ptr(float32(topK))
	}

	return config
}

// handleError provides structured error handling for Google API responses.
// It classifies errors based on their type, such as context errors or API
// errors, and returns a standardized ProviderError.
func (p *googleProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}

		if containsContentPolicyError(apiErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code,
				"request blocked by safety filters", err)
		}

		classified := p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
		classified.RetryAfter = ParseRetryAfter(apiErr.Header)
		return classified
	}

	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}

// buildAuthConfig creates the appropriate authentication configuration based
// on the client settings. Only API key authentication is supported; service
// account credentials files are rejected with a pointer to the supported
// alternatives.
func buildAuthConfig(config ClientConfig) (*genai.ClientConfig, error) {
	if looksLikeFilePath(config.APIKey) {
		if !fileExists(config.APIKey) {
			return nil, fmt.Errorf("credentials file not found: %s", config.APIKey)
		}

		return nil, fmt.Errorf("service account authentication requires additional configuration. " +
			"Please use API key authentication or set GOOGLE_APPLICATION_CREDENTIALS environment variable")
	}

	return &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}, nil
}

// looksLikeFilePath checks if a string appears to be a file path rather than
// an API key.
func looksLikeFilePath(s string) bool {
	if filepath.IsAbs(s) {
		return true
	}

	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}

	lower := strings.ToLower(s)
	if strings.HasSuffix(lower, ".json") ||
		strings.HasSuffix(lower, ".p12") ||
		strings.HasSuffix(lower, ".pem") ||
		strings.Contains(lower, "credentials") {
		return true
	}

	return false
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isContextError checks if an error is a context-related error, such as a
// deadline exceeded or cancellation.
func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// containsContentPolicyError checks if a Google API error is related to
// content policy violations.
func containsContentPolicyError(apiErr *googleapi.Error) bool {
	if apiErr.Message != "" {
		lower := strings.ToLower(apiErr.Message)
		if strings.Contains(lower, "safety") ||
			strings.Contains(lower, "policy") ||
			strings.Contains(lower, "blocked") {
			return true
		}
	}

	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}

	return false
}
