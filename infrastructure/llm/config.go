package llm

// config.go provides option-map parsing utilities for LLM provider requests.
// Providers use these to extract typed parameters from the generic Options
// map carried on each request.

// ExtractOptionalInt extracts an integer value from an options map with
// validation. Returns defaultVal if the key doesn't exist, the value is not
// an int, or the validator rejects it.
func ExtractOptionalInt(opts map[string]any, key string, defaultVal int, validator func(int) bool) int {
	if opts == nil {
		return defaultVal
	}

	val, ok := opts[key]
	if !ok {
		return defaultVal
	}

	intVal, ok := val.(int)
	if !ok {
		return defaultVal
	}

	if validator != nil && !validator(intVal) {
		return defaultVal
	}

	return intVal
}

// ExtractOptionalString extracts a string value from an options map with
// validation. Returns defaultVal if the key doesn't exist, the value is not
// a string, or the validator rejects it.
func ExtractOptionalString(opts map[string]any, key string, defaultVal string, validator func(string) bool) string {
	if opts == nil {
		return defaultVal
	}

	val, ok := opts[key]
	if !ok {
		return defaultVal
	}

	strVal, ok := val.(string)
	if !ok {
		return defaultVal
	}

	if validator != nil && !validator(strVal) {
		return defaultVal
	}

	return strVal
}

// ExtractOptionalFloat64 extracts a float64 value from an options map with
// validation. Returns defaultVal if the key doesn't exist, the value is not
// a float64, or the validator rejects it.
func ExtractOptionalFloat64(opts map[string]any, key string, defaultVal float64, validator func(float64) bool) float64 {
	if opts == nil {
		return defaultVal
	}

	val, ok := opts[key]
	if !ok {
		return defaultVal
	}

	floatVal, ok := val.(float64)
	if !ok {
		return defaultVal
	}

	if validator != nil && !validator(floatVal) {
		return defaultVal
	}

	return floatVal
}
