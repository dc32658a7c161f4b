package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/veridoc/veridoc/internal/ports"
)

// AnthropicDefaultModel is the default model for the anthropic provider.
const AnthropicDefaultModel = "claude-3-5-sonnet-20241022"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements the CoreLLM interface for Anthropic's Claude
// API. This provider handles Anthropic-specific request formatting, image
// attachment encoding, and response parsing while maintaining compatibility
// with the common middleware system.
type anthropicProvider struct {
	BaseProvider
	client          anthropic.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newAnthropicProvider creates a new Anthropic provider instance.
// This factory function configures the provider for Anthropic's API
// and validates that required configuration is present.
func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &anthropicProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// DoRequest sends a chat request to Anthropic's Claude API and returns the
// response. Image attachments become base64 image blocks preceding the
// instruction text, and token usage is taken from the API response when
// available.
func (p *anthropicProvider) DoRequest(ctx context.Context, req ports.ChatRequest) (string, int, int, error) {
	options := ParseRequestOptions(req.Options, p.GetModel())
	params := p.buildMessageParams(req, options)

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	return p.processResponse(message, req.Prompt)
}

// buildMessageParams creates the API request parameters.
func (p *anthropicProvider) buildMessageParams(req ports.ChatRequest, options RequestOptions) anthropic.MessageNewParams {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Images)+1)
	for _, img := range req.Images {
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, base64.StdEncoding.EncodeToString(img.Data)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(options.Model),
		MaxTokens: int64(options.MaxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}

	if options.Temperature != nil {
		// Anthropic supports a temperature range of 0.0 to 1.0.
		params.Temperature = anthropic.Float(ClampFloat64(*options.Temperature, 0.0, 1.0))
	}

	if options.TopP != nil {
		params.TopP = anthropic.Float(ClampFloat64(*options.TopP, 0.0, 1.0))
	}

	if options.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: options.System}}
	}

	return params
}

// processResponse extracts content and token counts from the API response.
func (p *anthropicProvider) processResponse(message *anthropic.Message, originalPrompt string) (string, int, int, error) {
	var responseText strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			responseText.WriteString(content.Text)
		}
	}

	responseStr := responseText.String()
	if responseStr == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	tokensIn := p.tokenCounter.GetTokenCount(int(message.Usage.InputTokens), originalPrompt)
	tokensOut := p.tokenCounter.GetTokenCount(int(message.Usage.OutputTokens), responseStr)

	return responseStr, tokensIn, tokensOut, nil
}

// handleError classifies errors from the Anthropic SDK into standardized
// provider errors, carrying the Retry-After hint through for rate limits.
func (p *anthropicProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		classified := p.errorClassifier.ClassifyHTTPError(anthropicErr.StatusCode, "", err)
		if anthropicErr.Response != nil {
			classified.RetryAfter = ParseRetryAfter(anthropicErr.Response.Header)
		}
		return classified
	}

	return NewProviderError("anthropic", ErrorTypeUnknown, 0, "request failed", err)
}
