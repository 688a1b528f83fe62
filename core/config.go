package core

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted by IMAGE_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// DefaultConfigFile is read when STUDIO_CONFIG is unset and the file exists.
const DefaultConfigFile = "studio.yaml"

// Config holds all configuration for the studio.
type Config struct {
	// Provider selection. Empty means auto-detect from the credentials present.
	Provider string `yaml:"provider"`

	// Gemini
	GeminiAPIKey      string `yaml:"-"`
	ElevatedAPIKey    string `yaml:"-"`
	GeminiBaseURL     string `yaml:"gemini_base_url"`
	TextModel         string `yaml:"text_model"`
	ImageModel        string `yaml:"image_model"`
	UpscaleModel      string `yaml:"upscale_model"`
	AllowKeySelection bool   `yaml:"allow_key_selection"`

	// OpenAI / Azure OpenAI
	OpenAIAPIKey          string `yaml:"-"`
	OpenAIBaseURL         string `yaml:"openai_base_url"`
	OpenAITextModel       string `yaml:"openai_text_model"`
	OpenAIImageModel      string `yaml:"openai_image_model"`
	AzureOpenAIEndpoint   string `yaml:"azure_openai_endpoint"`
	AzureOpenAIDeployment string `yaml:"azure_openai_deployment"`
	AzureOpenAIAPIVersion string `yaml:"azure_openai_api_version"`

	// Storage
	DataDir        string `yaml:"data_dir"`
	HistorySlot    string `yaml:"history_slot"`
	StorageBackend string `yaml:"storage_backend"`
	HistoryLimit   int    `yaml:"history_limit"`
	DownloadsDir   string `yaml:"downloads_dir"`

	// Web UI
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Remote calls
	AITimeout            time.Duration `yaml:"ai_timeout"`
	AllowSelfSignedCerts bool          `yaml:"allow_self_signed_certs"`

	// Generation defaults
	DefaultAspectRatio string `yaml:"default_aspect_ratio"`
	DefaultStyle       string `yaml:"default_style"`

	// Logging
	DevMode  bool   `yaml:"dev_mode"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	// ConfigFile is the YAML file that was applied, if any.
	ConfigFile string `yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		TextModel:             "gemini-3-flash-preview",
		ImageModel:            "gemini-2.5-flash-image",
		UpscaleModel:          "gemini-3-pro-image-preview",
		AllowKeySelection:     true,
		OpenAITextModel:       "gpt-4o-mini",
		OpenAIImageModel:      "gpt-image-1",
		AzureOpenAIAPIVersion: "2024-02-01",
		DataDir:               GetDataDirectory(),
		HistorySlot:           "lulu_history_v2",
		StorageBackend:        StorageFile,
		HistoryLimit:          50,
		DownloadsDir:          "downloads",
		Host:                  "localhost",
		Port:                  3000,
		AITimeout:             120 * time.Second,
		DefaultAspectRatio:    "1:1",
		DefaultStyle:          "Cinematic",
		LogLevel:              "info",
		LogFile:               "app.log",
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// and the environment, in that order of precedence (environment wins).
// The caller is expected to have loaded .env already.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("STUDIO_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := cfg.applyFile(path, explicit); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile overlays a YAML file onto cfg. A missing default file is not an error.
func (c *Config) applyFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return ErrConfigFile(path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return ErrConfigFile(path, err)
	}
	c.ConfigFile = path
	return nil
}

func (c *Config) applyEnv() {
	c.Provider = strings.ToLower(GetEnvOrDefault("IMAGE_PROVIDER", c.Provider))

	c.GeminiAPIKey = FirstEnvOrDefault([]string{"GEMINI_API_KEY", "API_KEY", "GOOGLE_API_KEY"}, c.GeminiAPIKey)
	c.ElevatedAPIKey = GetEnvOrDefault("GEMINI_ELEVATED_API_KEY", c.ElevatedAPIKey)
	c.GeminiBaseURL = GetEnvOrDefault("GEMINI_BASE_URL", c.GeminiBaseURL)
	c.TextModel = GetEnvOrDefault("TEXT_MODEL", c.TextModel)
	c.ImageModel = GetEnvOrDefault("IMAGE_MODEL", c.ImageModel)
	c.UpscaleModel = GetEnvOrDefault("UPSCALE_MODEL", c.UpscaleModel)
	c.AllowKeySelection = ParseBoolEnv("ALLOW_KEY_SELECTION", c.AllowKeySelection)

	c.OpenAIAPIKey = FirstEnvOrDefault([]string{"OPENAI_API_KEY", "AZURE_OPENAI_API_KEY"}, c.OpenAIAPIKey)
	c.OpenAIBaseURL = GetEnvOrDefault("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAITextModel = GetEnvOrDefault("OPENAI_TEXT_MODEL", c.OpenAITextModel)
	c.OpenAIImageModel = GetEnvOrDefault("OPENAI_IMAGE_MODEL", c.OpenAIImageModel)
	c.AzureOpenAIEndpoint = GetEnvOrDefault("AZURE_OPENAI_ENDPOINT", c.AzureOpenAIEndpoint)
	c.AzureOpenAIDeployment = GetEnvOrDefault("AZURE_OPENAI_DEPLOYMENT", c.AzureOpenAIDeployment)
	c.AzureOpenAIAPIVersion = GetEnvOrDefault("AZURE_OPENAI_API_VERSION", c.AzureOpenAIAPIVersion)

	c.DataDir = GetEnvOrDefault("DATA_DIR", c.DataDir)
	c.HistorySlot = GetEnvOrDefault("HISTORY_SLOT", c.HistorySlot)
	c.StorageBackend = strings.ToLower(GetEnvOrDefault("STORAGE_BACKEND", c.StorageBackend))
	c.HistoryLimit = ParseIntEnv("HISTORY_LIMIT", c.HistoryLimit)
	c.DownloadsDir = GetEnvOrDefault("DOWNLOADS_DIR", c.DownloadsDir)

	c.Host = GetEnvOrDefault("HOST", c.Host)
	c.Port = ParseIntEnv("PORT", c.Port)

	c.AITimeout = ParseDurationEnv("AI_TIMEOUT", c.AITimeout)
	c.AllowSelfSignedCerts = ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", c.AllowSelfSignedCerts)

	c.DefaultAspectRatio = GetEnvOrDefault("DEFAULT_ASPECT_RATIO", c.DefaultAspectRatio)
	c.DefaultStyle = GetEnvOrDefault("DEFAULT_STYLE", c.DefaultStyle)

	c.DevMode = ParseBoolEnv("DEV_MODE", c.DevMode)
	c.LogLevel = GetEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFile = GetEnvOrDefault("LOG_FILE", c.LogFile)
}

// Validate checks the settings that do not depend on which command runs.
// Credentials are checked later, when a remote client is actually built.
func (c *Config) Validate() error {
	switch c.Provider {
	case "", ProviderGemini, ProviderOpenAI, ProviderAzure:
	default:
		return ErrInvalidProvider(c.Provider)
	}
	switch c.StorageBackend {
	case StorageFile, StorageSQLite:
	default:
		return ErrInvalidStorage(c.StorageBackend)
	}
	if c.HistorySlot == "" {
		return ErrMissingConfig("HISTORY_SLOT")
	}
	if c.HistoryLimit < 0 {
		return ErrInvalidValue("HISTORY_LIMIT", fmt.Sprint(c.HistoryLimit), []string{"0 (unlimited)", "a positive number"})
	}
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidValue("PORT", fmt.Sprint(c.Port), []string{"1-65535"})
	}
	return nil
}

// ResolveProvider returns the provider to use, auto-detecting when unset.
// Azure wins when an Azure endpoint is configured, then Gemini, then OpenAI.
func (c *Config) ResolveProvider() string {
	if c.Provider != "" {
		return c.Provider
	}
	switch {
	case c.AzureOpenAIEndpoint != "":
		return ProviderAzure
	case c.GeminiAPIKey != "":
		return ProviderGemini
	case c.OpenAIAPIKey != "":
		return ProviderOpenAI
	default:
		return ProviderGemini
	}
}

// SlotFilePath returns the JSON file backing the history slot for the file backend.
func (c *Config) SlotFilePath() string {
	return filepath.Join(c.DataDir, c.HistorySlot+".json")
}

// DatabasePath returns the SQLite database path for the sqlite backend.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "studio.db")
}

// GetHTTPClient returns an HTTP client with the given timeout honoring the TLS settings.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}

// GetDefaultHTTPClient returns an HTTP client using the configured AI timeout.
func GetDefaultHTTPClient(cfg *Config) *http.Client {
	return GetHTTPClient(cfg, cfg.AITimeout)
}
