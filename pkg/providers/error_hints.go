package providers

import "strings"

// augmentProviderError appends a configuration hint to well-known
// provider failures so the WARN line in the logs says what to fix.
func augmentProviderError(providerName, message string) string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return msg
	}

	lower := strings.ToLower(msg)
	switch NormalizeProviderName(providerName) {
	case ProviderOpenRouter:
		switch {
		case strings.Contains(lower, "no auth credentials found"),
			strings.Contains(lower, "user not found"),
			strings.Contains(lower, "status: 401"):
			return msg + " Hint: check providers.openrouter.api_key or FACTKEEPER_PROVIDERS_OPENROUTER_API_KEY."
		case strings.Contains(lower, "insufficient credits"), strings.Contains(lower, "status: 402"):
			return msg + " Hint: the OpenRouter account is out of credits; replies fall back to templates until it is topped up."
		case strings.Contains(lower, "status: 429"):
			return msg + " Hint: OpenRouter is rate limiting this key; consider classifier.provider \"none\" for rules-only operation."
		}
	case ProviderGemini:
		switch {
		case strings.Contains(lower, "api key not valid"), strings.Contains(lower, "api_key_invalid"):
			return msg + " Hint: check providers.gemini.api_key or FACTKEEPER_PROVIDERS_GEMINI_API_KEY."
		case strings.Contains(lower, "resource_exhausted"), strings.Contains(lower, "quota"):
			return msg + " Hint: the Gemini quota is exhausted; replies fall back to templates."
		}
	}

	return msg
}

// hintSuffix returns only the appended hint, or "" when there is none.
func hintSuffix(providerName, message string) string {
	msg := strings.TrimSpace(message)
	return strings.TrimPrefix(augmentProviderError(providerName, msg), msg)
}
