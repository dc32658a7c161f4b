package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
)

// Mock response shapes for the OpenAI-compatible chat completions API.
type mockChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mockChatChoice struct {
	Index        int             `json:"index"`
	Message      mockChatMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type mockChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type mockChatResponse struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Created int64            `json:"created"`
	Model   string           `json:"model"`
	Choices []mockChatChoice `json:"choices"`
	Usage   mockChatUsage    `json:"usage"`
}

func chatResponse(content string, tokensIn, tokensOut int) mockChatResponse {
	return mockChatResponse{
		ID:      "chatcmpl-test123",
		Object:  "chat.completion",
		Created: 1677652288,
		Model:   "gpt-4o",
		Choices: []mockChatChoice{
			{
				Index:        0,
				Message:      mockChatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: mockChatUsage{
			PromptTokens:     tokensIn,
			CompletionTokens: tokensOut,
			TotalTokens:      tokensIn + tokensOut,
		},
	}
}

// TestOpenAIProvider_DoRequest verifies successful requests with and without
// optional parameters.
func TestOpenAIProvider_DoRequest(t *testing.T) {
	tests := []struct {
		name              string
		req               ports.ChatRequest
		mockResponse      mockChatResponse
		expectedResponse  string
		expectedTokensIn  int
		expectedTokensOut int
	}{
		{
			name:              "successful_basic_request",
			req:               ports.ChatRequest{Prompt: "Hello, world!"},
			mockResponse:      chatResponse("Hello! How can I help you today?", 10, 9),
			expectedResponse:  "Hello! How can I help you today?",
			expectedTokensIn:  10,
			expectedTokensOut: 9,
		},
		{
			name: "request_with_system_prompt",
			req: ports.ChatRequest{
				Prompt: "What's on this document?",
				Options: map[string]any{
					"system":      "You are a document analysis assistant.",
					"temperature": 0.2,
					"max_tokens":  100,
				},
			},
			mockResponse:      chatResponse(`{"name": "JANE DOE"}`, 25, 22),
			expectedResponse:  `{"name": "JANE DOE"}`,
			expectedTokensIn:  25,
			expectedTokensOut: 22,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "POST", r.Method)
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)

				authHeader := r.Header.Get("Authorization")
				assert.Contains(t, authHeader, "Bearer test-api-key")

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(tt.mockResponse)
			}))
			defer server.Close()

			config := ClientConfig{
				APIKey:  "test-api-key",
				Model:   "gpt-4o",
				BaseURL: server.URL + "/v1",
			}

			provider, err := newOpenAIProvider(config)
			require.NoError(t, err)

			response, tokensIn, tokensOut, err := provider.DoRequest(context.Background(), tt.req)

			require.NoError(t, err)
			assert.Equal(t, tt.expectedResponse, response)
			assert.Equal(t, tt.expectedTokensIn, tokensIn)
			assert.Equal(t, tt.expectedTokensOut, tokensOut)
		})
	}
}

// TestOpenAIProvider_VisionRequest verifies that image attachments are
// encoded as multi-part message content with base64 data URLs, the wire
// format OpenAI-compatible vision endpoints expect.
func TestOpenAIProvider_VisionRequest(t *testing.T) {
	imageBytes := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}

	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse(`{"name": null}`, 200, 15))
	}))
	defer server.Close()

	provider, err := newOpenAIProvider(ClientConfig{
		APIKey:  "test-api-key",
		Model:   "accounts/fireworks/models/llama4-maverick-instruct-basic",
		BaseURL: server.URL + "/v1",
	})
	require.NoError(t, err)

	response, _, _, err := provider.DoRequest(context.Background(), ports.ChatRequest{
		Prompt: "Extract the fields from this passport.",
		Images: []domain.ImageData{{MIMEType: "image/jpeg", Data: imageBytes}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"name": null}`, response)

	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)

	var parts []struct {
		Type     string `json:"type"`
		Text     string `json:"text,omitempty"`
		ImageURL *struct {
			URL string `json:"url"`
		} `json:"image_url,omitempty"`
	}
	require.NoError(t, json.Unmarshal(captured.Messages[0].Content, &parts))
	require.Len(t, parts, 2)

	// The attachment precedes the instruction text.
	assert.Equal(t, "image_url", parts[0].Type)
	require.NotNil(t, parts[0].ImageURL)
	expectedURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageBytes)
	assert.Equal(t, expectedURL, parts[0].ImageURL.URL)

	assert.Equal(t, "text", parts[1].Type)
	assert.Equal(t, "Extract the fields from this passport.", parts[1].Text)
}

// TestOpenAIProvider_ErrorHandling ensures that API errors, such as
// authentication and rate limiting, are classified correctly.
func TestOpenAIProvider_ErrorHandling(t *testing.T) {
	tests := []struct {
		name            string
		statusCode      int
		responseBody    string
		expectedErrMsg  string
		expectedType    ErrorType
		expectRetryable bool
	}{
		{
			name:       "authentication_error",
			statusCode: 401,
			responseBody: `{
				"error": {
					"message": "Invalid API key provided",
					"type": "invalid_request_error",
					"code": "invalid_api_key"
				}
			}`,
			expectedErrMsg:  "authentication failed",
			expectedType:    ErrorTypeAuthentication,
			expectRetryable: false,
		},
		{
			name:       "rate_limit_error",
			statusCode: 429,
			responseBody: `{
				"error": {
					"message": "Rate limit exceeded",
					"type": "insufficient_quota",
					"code": "rate_limit_exceeded"
				}
			}`,
			expectedErrMsg:  "rate limit exceeded",
			expectedType:    ErrorTypeRateLimit,
			expectRetryable: true,
		},
		{
			name:       "server_error",
			statusCode: 500,
			responseBody: `{
				"error": {
					"message": "Internal server error",
					"type": "server_error"
				}
			}`,
			expectedErrMsg:  "server error",
			expectedType:    ErrorTypeServerError,
			expectRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				fmt.Fprint(w, tt.responseBody)
			}))
			defer server.Close()

			provider, err := newOpenAIProvider(ClientConfig{
				APIKey:  "test-api-key",
				Model:   "gpt-4o",
				BaseURL: server.URL + "/v1",
			})
			require.NoError(t, err)

			_, _, _, err = provider.DoRequest(context.Background(), ports.ChatRequest{Prompt: "test prompt"})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErrMsg)

			var provErr *ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, tt.expectedType, provErr.Type)
			assert.Equal(t, tt.expectRetryable, provErr.IsRetryable())
		})
	}
}

// TestOpenAIProvider_ContextCancellation verifies that the provider
// correctly handles request cancellation through context.
func TestOpenAIProvider_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Server handler should not be called due to context cancellation")
	}))
	defer server.Close()

	provider, err := newOpenAIProvider(ClientConfig{
		APIKey:  "test-api-key",
		Model:   "gpt-4o",
		BaseURL: server.URL + "/v1",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err = provider.DoRequest(ctx, ports.ChatRequest{Prompt: "test prompt"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "request canceled")
}

// TestOpenAIProvider_Configuration validates configuration handling,
// including API key validation and model management.
func TestOpenAIProvider_Configuration(t *testing.T) {
	t.Run("missing_api_key", func(t *testing.T) {
		_, err := newOpenAIProvider(ClientConfig{Model: "gpt-4o"})
		assert.ErrorIs(t, err, ErrEmptyAPIKey)
	})

	t.Run("default_model", func(t *testing.T) {
		provider, err := newOpenAIProvider(ClientConfig{APIKey: "test-key"})
		require.NoError(t, err)
		assert.Equal(t, OpenAIDefaultModel, provider.GetModel())
	})

	t.Run("invalid_base_url", func(t *testing.T) {
		_, err := newOpenAIProvider(ClientConfig{
			APIKey:  "test-key",
			Model:   "gpt-4o",
			BaseURL: "ftp://example.com",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scheme must be http or https")
	})

	t.Run("model_update", func(t *testing.T) {
		provider, err := newOpenAIProvider(ClientConfig{APIKey: "test-key", Model: "gpt-4o"})
		require.NoError(t, err)

		provider.SetModel("gpt-4o-mini")
		assert.Equal(t, "gpt-4o-mini", provider.GetModel())
	})
}

// TestOpenAIProvider_ConcurrentRequests exercises the provider under
// concurrent load to verify thread safety of shared state.
func TestOpenAIProvider_ConcurrentRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("Test response", 5, 3))
	}))
	defer server.Close()

	provider, err := newOpenAIProvider(ClientConfig{
		APIKey:  "test-api-key",
		Model:   "gpt-4o",
		BaseURL: server.URL + "/v1",
	})
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, _, _, errs[idx] = provider.DoRequest(context.Background(), ports.ChatRequest{Prompt: "concurrent"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

// TestOpenAIProvider_Integration performs integration tests against a live
// Fireworks endpoint. These tests are skipped unless FIREWORKS_API_KEY is set.
func TestOpenAIProvider_Integration(t *testing.T) {
	apiKey := os.Getenv("FIREWORKS_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping integration tests: FIREWORKS_API_KEY environment variable not set")
	}

	provider, err := newOpenAIProvider(ClientConfig{
		APIKey:  apiKey,
		Model:   "accounts/fireworks/models/llama4-maverick-instruct-basic",
		BaseURL: FireworksBaseURL,
	})
	require.NoError(t, err)

	response, tokensIn, tokensOut, err := provider.DoRequest(
		context.Background(),
		ports.ChatRequest{
			Prompt: "Say 'Hello, World!' and nothing else.",
			Options: map[string]any{
				"max_tokens":  10,
				"temperature": 0.1,
			},
		},
	)

	require.NoError(t, err)
	assert.NotEmpty(t, response)
	assert.Greater(t, tokensIn, 0)
	assert.Greater(t, tokensOut, 0)
	t.Logf("Response: %s (tokens in: %d, out: %d)", response, tokensIn, tokensOut)
}
