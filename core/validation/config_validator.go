// Package validation runs the studio's environment checks: configuration,
// credentials, data directory and provider reachability. `lulu doctor`
// runs the full suite; `lulu serve` runs the offline checks at startup.
package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"lulu_studio/asset"
	"lulu_studio/core"
)

// ValidationResult is the outcome of one configuration check. Warning
// marks a passing check that still deserves attention.
type ValidationResult struct {
	Valid   bool
	Warning bool
	Message string
	Error   error
}

// ConfigValidator checks a loaded configuration.
type ConfigValidator struct {
	cfg     *core.Config
	envPath string
}

// NewConfigValidator creates a validator for cfg.
func NewConfigValidator(cfg *core.Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg, envPath: ".env"}
}

// WithEnvPath sets the .env path reported by CheckConfigSources.
func (v *ConfigValidator) WithEnvPath(path string) *ConfigValidator {
	v.envPath = path
	return v
}

// CheckConfigSources reports which files fed the configuration. Running on
// the environment alone is allowed, so a missing .env is only a warning; an
// env file that exists but cannot be read is a failure.
func (v *ConfigValidator) CheckConfigSources() ValidationResult {
	state, err := ProbeSourceFile(v.envPath)
	if state == SourceUnreadable {
		return ValidationResult{
			Message: v.envPath + " cannot be read",
			Error:   core.ErrConfigFile(v.envPath, err),
		}
	}
	envLoaded := state == SourcePresent
	switch {
	case envLoaded && v.cfg.ConfigFile != "":
		return ValidationResult{Valid: true, Message: fmt.Sprintf("%s and %s loaded", v.envPath, v.cfg.ConfigFile)}
	case envLoaded:
		return ValidationResult{Valid: true, Message: v.envPath + " loaded"}
	case v.cfg.ConfigFile != "":
		return ValidationResult{Valid: true, Message: v.cfg.ConfigFile + " loaded"}
	default:
		return ValidationResult{
			Valid:   true,
			Warning: true,
			Message: "No .env or studio.yaml found, using the environment only",
		}
	}
}

// CheckCredentials verifies the resolved provider has what it needs.
func (v *ConfigValidator) CheckCredentials() ValidationResult {
	provider := v.cfg.ResolveProvider()
	switch provider {
	case core.ProviderGemini:
		if v.cfg.GeminiAPIKey == "" {
			return ValidationResult{Message: "GEMINI_API_KEY is not set", Error: core.ErrMissingAuth(provider)}
		}
		msg := "Gemini API key configured"
		switch {
		case v.cfg.ElevatedAPIKey != "":
			msg += ", elevated key for upscaling configured"
		case !v.cfg.AllowKeySelection:
			return ValidationResult{
				Valid:   true,
				Warning: true,
				Message: msg + "; upscaling may need GEMINI_ELEVATED_API_KEY",
			}
		}
		return ValidationResult{Valid: true, Message: msg}
	case core.ProviderOpenAI:
		if v.cfg.OpenAIAPIKey == "" {
			return ValidationResult{Message: "OPENAI_API_KEY is not set", Error: core.ErrMissingAuth(provider)}
		}
		return ValidationResult{Valid: true, Message: "OpenAI API key configured"}
	case core.ProviderAzure:
		if v.cfg.OpenAIAPIKey == "" {
			return ValidationResult{Message: "AZURE_OPENAI_API_KEY is not set", Error: core.ErrMissingAuth(provider)}
		}
		if v.cfg.AzureOpenAIDeployment == "" {
			return ValidationResult{Message: "AZURE_OPENAI_DEPLOYMENT is not set", Error: core.ErrMissingConfig("AZURE_OPENAI_DEPLOYMENT")}
		}
		return ValidationResult{Valid: true, Message: "Azure OpenAI deployment " + v.cfg.AzureOpenAIDeployment}
	default:
		return ValidationResult{Message: "Unknown provider", Error: core.ErrInvalidProvider(provider)}
	}
}

// CheckDefaults verifies the default aspect ratio and style are known.
func (v *ConfigValidator) CheckDefaults() ValidationResult {
	if _, err := asset.ParseAspectRatio(v.cfg.DefaultAspectRatio); err != nil {
		return ValidationResult{
			Message: "Unknown default aspect ratio",
			Error:   core.ErrInvalidValue("DEFAULT_ASPECT_RATIO", v.cfg.DefaultAspectRatio, ratioValues()),
		}
	}
	if _, err := asset.ParseStyle(v.cfg.DefaultStyle); err != nil {
		return ValidationResult{
			Message: "Unknown default style",
			Error:   core.ErrInvalidValue("DEFAULT_STYLE", v.cfg.DefaultStyle, asset.Styles),
		}
	}
	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("%s, %s", v.cfg.DefaultAspectRatio, v.cfg.DefaultStyle),
	}
}

// CheckDataDir verifies the data directory exists (creating it if needed)
// and is writable.
func (v *ConfigValidator) CheckDataDir() ValidationResult {
	dir := v.cfg.DataDir
	if err := core.EnsureDirectory(dir); err != nil {
		return ValidationResult{Message: "Cannot create data directory", Error: err}
	}
	probe, err := os.CreateTemp(dir, ".lulu-write-check-*")
	if err != nil {
		return ValidationResult{
			Message: "Data directory is not writable",
			Error:   fmt.Errorf("validation: write check in %s: %w", dir, err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return ValidationResult{Valid: true, Message: abs}
}

func ratioValues() []string {
	values := make([]string, len(asset.AspectRatios))
	for i, r := range asset.AspectRatios {
		values[i] = string(r)
	}
	return values
}
