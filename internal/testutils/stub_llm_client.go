// Package testutils provides deterministic test doubles and fixtures for
// the verification pipeline: a scripted LLM client and canonical document
// payloads shared across package tests.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/veridoc/veridoc/internal/ports"
)

// StubLLMClient implements ports.LLMClient with scripted responses
// selected by prompt substring. Scripts are matched in registration
// order, so more specific patterns should be added first. The stub
// records every request for assertion and is safe for concurrent use.
type StubLLMClient struct {
	mu       sync.Mutex
	model    string
	scripts  []Script
	fallback string
	err      error
	requests []ports.ChatRequest
}

// Script maps a prompt pattern to a canned outcome.
type Script struct {
	// Pattern is matched against the prompt as a case-insensitive
	// substring. An empty pattern matches every prompt.
	Pattern string

	// Response is the text returned for matching prompts.
	Response string

	// Err, when set, is returned instead of the response.
	Err error
}

// NewStubLLMClient creates a stub with no scripts. Unmatched prompts
// return the fallback response, which defaults to an empty JSON object so
// hardening-layer callers do not fail incidentally.
func NewStubLLMClient(model string) *StubLLMClient {
	return &StubLLMClient{
		model:    model,
		fallback: "{}",
	}
}

// AddScript registers a response pattern. It returns the stub so test
// setup can chain registrations.
func (s *StubLLMClient) AddScript(script Script) *StubLLMClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, script)
	return s
}

// SetFallback replaces the response returned when no script matches. It
// returns the stub for chaining.
func (s *StubLLMClient) SetFallback(response string) *StubLLMClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = response
	return s
}

// FailWith makes every subsequent call return err, overriding scripts.
// Passing nil restores normal operation. It returns the stub for
// chaining.
func (s *StubLLMClient) FailWith(err error) *StubLLMClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Complete implements ports.LLMClient. It honors context cancellation,
// records the request, and returns the first matching script's outcome.
func (s *StubLLMClient) Complete(ctx context.Context, req ports.ChatRequest) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if req.Prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)

	if s.err != nil {
		return "", s.err
	}

	promptLower := strings.ToLower(req.Prompt)
	for _, script := range s.scripts {
		if script.Pattern != "" && !strings.Contains(promptLower, strings.ToLower(script.Pattern)) {
			continue
		}
		if script.Err != nil {
			return "", script.Err
		}
		return script.Response, nil
	}

	return s.fallback, nil
}

// EstimateTokens implements ports.LLMClient with the usual four
// characters per token approximation.
func (s *StubLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tokens := len(text) / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens, nil
}

// GetModel implements ports.LLMClient.
func (s *StubLLMClient) GetModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Requests returns a copy of every recorded request in call order.
func (s *StubLLMClient) Requests() []ports.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.ChatRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request, or a zero request when no
// call was made.
func (s *StubLLMClient) LastRequest() ports.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ports.ChatRequest{}
	}
	return s.requests[len(s.requests)-1]
}

// CallCount returns how many Complete calls were recorded.
func (s *StubLLMClient) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Reset clears scripts, recorded requests, and any injected error.
func (s *StubLLMClient) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = nil
	s.requests = nil
	s.err = nil
	s.fallback = "{}"
}

// Verify interface compliance at compile time.
var _ ports.LLMClient = (*StubLLMClient)(nil)
