package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
)

// OpenAIDefaultModel is the default model for the openai provider.
const OpenAIDefaultModel = "gpt-4o"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements the CoreLLM interface for OpenAI's chat API and
// any OpenAI-compatible endpoint reached through a BaseURL override, such as
// Fireworks. It handles request formatting, image attachment encoding, and
// response parsing while conforming to the common interface for middleware
// compatibility.
type openAIProvider struct {
	BaseProvider
	client          *openai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newOpenAIProvider creates a new OpenAI provider instance.
// This factory function initializes the provider with configuration
// and validates required settings like API key presence.
func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validatedURL
	}

	if config.Timeout > 0 {
		validatedTimeout := ValidateTimeout(config.Timeout)
		clientConfig.HTTPClient = &http.Client{
			Timeout: validatedTimeout,
		}
	}

	client := openai.NewClientWithConfig(clientConfig)

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoRequest sends a chat request to the OpenAI-compatible API and returns
// the response. Image attachments are encoded as base64 data URLs in the
// message content, which is the wire format both OpenAI and Fireworks
// vision models accept.
func (p *openAIProvider) DoRequest(ctx context.Context, req ports.ChatRequest) (string, int, int, error) {
	options := ParseRequestOptions(req.Options, p.GetModel())

	completionReq := p.buildChatCompletionRequest(req, options)
	resp, err := p.client.CreateChatCompletion(ctx, completionReq)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return "", 0, 0, ErrNoResponseChoice
	}

	content := resp.Choices[0].Message.Content

	tokensIn := p.tokenCounter.GetTokenCount(resp.Usage.PromptTokens, req.Prompt)
	tokensOut := p.tokenCounter.GetTokenCount(resp.Usage.CompletionTokens, content)

	return content, tokensIn, tokensOut, nil
}

// buildChatCompletionRequest creates an openai.ChatCompletionRequest from the
// request and parsed options. This method orchestrates message building and
// the application of request parameters.
func (p *openAIProvider) buildChatCompletionRequest(req ports.ChatRequest, options RequestOptions) openai.ChatCompletionRequest {
	completionReq := openai.ChatCompletionRequest{
		Model:    options.Model,
		Messages: p.buildMessages(req, options),
	}

	p.applyRequestParameters(&completionReq, options)
	return completionReq
}

// buildMessages creates the message slice for a chat completion request.
// Plain text requests use simple string content; requests with images use
// multi-part content with the attachments preceding the instruction text.
func (p *openAIProvider) buildMessages(req ports.ChatRequest, options RequestOptions) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)

	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}

	if len(req.Images) == 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})
		return messages
	}

	parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: imageDataURL(img),
			},
		})
	}
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: req.Prompt,
	})

	messages = append(messages, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})

	return messages
}

// applyRequestParameters applies and validates optional parameters to the
// request. This method centralizes parameter validation and application logic.
func (p *openAIProvider) applyRequestParameters(req *openai.ChatCompletionRequest, options RequestOptions) {
	if options.Temperature != nil {
		// The API supports a temperature range of 0.0 to 2.0.
		temp := ClampFloat64(*options.Temperature, 0.0, 2.0)
		req.Temperature = float32(temp)
	}

	if options.MaxTokens > 0 {
		req.MaxTokens = options.MaxTokens
	}

	if options.TopP != nil {
		topP := ClampFloat64(*options.TopP, 0.0, 1.0)
		req.TopP = float32(topP)
	}

	// Handle provider-specific options.
	if frequencyPenalty, ok := options.Extra["frequency_penalty"]; ok {
		if penalty, valid := SafeFloat32(frequencyPenalty); valid {
			req.FrequencyPenalty = float32(ClampFloat64(float64(penalty), MinPenalty, MaxPenalty))
		}
	}

	if presencePenalty, ok := options.Extra["presence_penalty"]; ok {
		if penalty, valid := SafeFloat32(presencePenalty); valid {
			req.PresencePenalty = float32(ClampFloat64(float64(penalty), MinPenalty, MaxPenalty))
		}
	}
}

// handleError classifies and wraps errors from the OpenAI API.
// It distinguishes between context-related errors, API errors, and other
// failures, wrapping them in standardized error types.
func (p *openAIProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}

		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	return NewProviderError("openai", ErrorTypeUnknown, 0, "request failed", err)
}

// imageDataURL encodes an image attachment as a base64 data URL.
func imageDataURL(img domain.ImageData) string {
	return fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
}
