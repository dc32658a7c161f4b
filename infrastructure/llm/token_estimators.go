// token_estimators.go provides token estimation strategies for LLM clients.
// Estimates support usage accounting and metrics when providers don't
// return exact token counts.
package llm

import "strings"

// WordBasedTokenEstimator estimates tokens based on word count.
// This estimator provides fast, simple estimation using configurable
// tokens-per-word ratios. Best for general-purpose estimation where
// speed is more important than precision.
type WordBasedTokenEstimator struct{ TokensPerWord float64 }

// NewWordBasedTokenEstimator creates a word-based token estimator.
// The tokensPerWord parameter should be tuned based on the target language
// and LLM provider. Typical values: 0.75 for English, 0.6-0.9 for other
// languages.
func NewWordBasedTokenEstimator(tokensPerWord float64) *WordBasedTokenEstimator {
	if tokensPerWord <= 0 {
		tokensPerWord = 0.75
	}
	return &WordBasedTokenEstimator{
		TokensPerWord: tokensPerWord,
	}
}

// EstimateTokens calculates token count based on word count.
// This method splits text on whitespace and applies the configured
// tokens-per-word ratio for fast estimation.
func (e *WordBasedTokenEstimator) EstimateTokens(text string) int {
	words := strings.Fields(text)
	return int(float64(len(words)) * e.TokensPerWord)
}

// CharacterBasedTokenEstimator estimates tokens based on character count.
// More accurate for languages with consistent character density,
// less accurate for code or heavily punctuated text.
type CharacterBasedTokenEstimator struct{ charsPerToken float64 }

// NewCharacterBasedTokenEstimator creates a character-based token estimator.
// The charactersPerToken parameter should be tuned for the target provider.
// Typical values: 4.0 for GPT models, 3.5-4.5 for other providers.
func NewCharacterBasedTokenEstimator(charactersPerToken float64) *CharacterBasedTokenEstimator {
	if charactersPerToken <= 0 {
		charactersPerToken = 4.0
	}
	return &CharacterBasedTokenEstimator{
		charsPerToken: charactersPerToken,
	}
}

// EstimateTokens calculates token count based on character count.
func (e *CharacterBasedTokenEstimator) EstimateTokens(text string) int {
	return int(float64(len(text)) / e.charsPerToken)
}

// CachingTokenEstimator wraps another estimator with caching.
// This estimator caches estimation results to avoid repeated calculations
// for the same text, which pays off when the same prompts are estimated
// repeatedly.
type CachingTokenEstimator struct {
	underlying TokenEstimator
	cache      map[string]int
	maxSize    int
}

// NewCachingTokenEstimator creates a caching wrapper for any TokenEstimator.
// The maxSize parameter controls the memory usage vs. hit-rate tradeoff.
func NewCachingTokenEstimator(underlying TokenEstimator, maxSize int) *CachingTokenEstimator {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &CachingTokenEstimator{
		underlying: underlying,
		cache:      make(map[string]int),
		maxSize:    maxSize,
	}
}

// EstimateTokens provides cached token estimation with fallthrough to the
// underlying estimator. Results are cached until the cache fills.
func (e *CachingTokenEstimator) EstimateTokens(text string) int {
	if tokens, exists := e.cache[text]; exists {
		return tokens
	}

	tokens := e.underlying.EstimateTokens(text)

	if len(e.cache) < e.maxSize {
		e.cache[text] = tokens
	}

	return tokens
}

// ClearCache removes all cached estimation results.
func (e *CachingTokenEstimator) ClearCache() {
	for k := range e.cache {
		delete(e.cache, k)
	}
}

// CacheSize returns the current number of cached estimation results.
func (e *CachingTokenEstimator) CacheSize() int { return len(e.cache) }
