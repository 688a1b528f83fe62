package logging

import (
	"fmt"
	"regexp"
	"strings"
)

// RedactedPlaceholder is the string used to replace sensitive data
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns are compiled once at package initialization.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(AIza[a-zA-Z0-9_-]{35})`),           // Google / Gemini API keys
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{20,})`),       // OpenAI keys, sk- and sk-proj-
	regexp.MustCompile(`(?i)([a-f0-9]{32})`),                // Azure OpenAI keys and other hex keys
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),
	regexp.MustCompile(`(?i)(x-goog-api-key\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)([?&]key=[^&\s]{8,})`), // key in a request URL
	regexp.MustCompile(`(?i)(api_key\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(apikey\s*[:=]\s*[^\s,;]{8,})`),
}

// dataURIPattern matches inline image payloads, which are collapsed to their size.
var dataURIPattern = regexp.MustCompile(`data:([a-zA-Z0-9.+/-]+);base64,([A-Za-z0-9+/=]{64,})`)

// sensitiveFieldNames are field-name fragments whose values are always redacted.
var sensitiveFieldNames = []string{
	"API_KEY",
	"APIKEY",
	"ELEVATED_KEY",
	"SECRET",
	"TOKEN",
	"PASSWORD",
	"AUTHORIZATION",
}

// RedactSensitiveData scans a string and replaces API keys and bearer tokens
// with RedactedPlaceholder. Base64 image payloads are shortened to
// "data:<mime>;base64,[N chars]" so that history records stay loggable.
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := dataURIPattern.ReplaceAllStringFunc(value, func(match string) string {
		parts := dataURIPattern.FindStringSubmatch(match)
		return fmt.Sprintf("data:%s;base64,[%d chars]", parts[1], len(parts[2]))
	})
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// IsSensitiveField reports whether a field name indicates a secret value.
//
//	IsSensitiveField("GEMINI_API_KEY") // true
//	IsSensitiveField("prompt")         // false
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)
	for _, fragment := range sensitiveFieldNames {
		if strings.Contains(upperName, fragment) {
			return true
		}
	}
	return false
}
