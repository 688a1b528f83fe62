package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeMissingAuth     = "MISSING_AUTH"
	ErrCodeMissingConfig   = "MISSING_CONFIG"
	ErrCodeInvalidValue    = "INVALID_VALUE"
	ErrCodeInvalidProvider = "INVALID_PROVIDER"
	ErrCodeInvalidStorage  = "INVALID_STORAGE"
	ErrCodeConfigFile      = "CONFIG_FILE"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeUnreachable     = "ENDPOINT_UNREACHABLE"
)

// ErrMissingAuth returns an error for missing provider credentials
func ErrMissingAuth(provider string) *ConfigError {
	var action string
	switch provider {
	case ProviderGemini:
		action = "Set GEMINI_API_KEY in your .env file"
	case ProviderOpenAI:
		action = "Set OPENAI_API_KEY in your .env file"
	case ProviderAzure:
		action = "Set AZURE_OPENAI_API_KEY (or OPENAI_API_KEY) in your .env file"
	default:
		action = fmt.Sprintf("Set the required API key for %s in your .env file", provider)
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for %s", provider),
		Action:  action,
	}
}

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file", varName),
	}
}

// ErrInvalidValue returns an error for a setting whose value is not accepted
func ErrInvalidValue(varName, value string, allowed []string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid value %q for %s", value, varName),
		Action:  fmt.Sprintf("Use one of: %v", allowed),
	}
}

// ErrInvalidProvider returns an error for an unknown IMAGE_PROVIDER
func ErrInvalidProvider(name string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidProvider,
		Message: fmt.Sprintf("Unknown image provider: %s", name),
		Action:  "Set IMAGE_PROVIDER to gemini, openai or azure",
	}
}

// ErrInvalidStorage returns an error for an unknown STORAGE_BACKEND
func ErrInvalidStorage(name string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidStorage,
		Message: fmt.Sprintf("Unknown storage backend: %s", name),
		Action:  "Set STORAGE_BACKEND to file or sqlite",
	}
}

// ErrConfigFile returns an error for an unreadable or malformed YAML config file
func ErrConfigFile(path string, err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFile,
		Message: fmt.Sprintf("Cannot read config file %s: %v", path, err),
		Action:  "Fix the file or unset STUDIO_CONFIG",
	}
}

// ErrInvalidEndpointURL returns an error for a malformed provider endpoint
func ErrInvalidEndpointURL(endpoint, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidURL,
		Message: fmt.Sprintf("Invalid endpoint URL %q: %s", endpoint, reason),
		Action:  "Use a full http:// or https:// URL",
	}
}

// ErrEndpointUnreachable returns an error for a provider endpoint that did not answer
func ErrEndpointUnreachable(endpoint, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnreachable,
		Message: fmt.Sprintf("Cannot reach %s: %s", endpoint, reason),
		Action:  "Check your network connection, proxy settings and the configured base URL",
	}
}

// IsConfigError checks if an error is (or wraps) a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
