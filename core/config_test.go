package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolateEnv clears every variable LoadConfig reads so the host environment cannot leak in.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STUDIO_CONFIG", "IMAGE_PROVIDER", "GEMINI_API_KEY", "API_KEY", "GOOGLE_API_KEY",
		"GEMINI_ELEVATED_API_KEY", "GEMINI_BASE_URL", "TEXT_MODEL", "IMAGE_MODEL", "UPSCALE_MODEL",
		"ALLOW_KEY_SELECTION", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "OPENAI_BASE_URL",
		"OPENAI_TEXT_MODEL", "OPENAI_IMAGE_MODEL", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT",
		"AZURE_OPENAI_API_VERSION", "DATA_DIR", "HISTORY_SLOT", "STORAGE_BACKEND", "HISTORY_LIMIT",
		"DOWNLOADS_DIR", "HOST", "PORT", "AI_TIMEOUT", "ALLOW_SELF_SIGNED_CERTS",
		"DEFAULT_ASPECT_RATIO", "DEFAULT_STYLE", "DEV_MODE", "LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(key, "")
	}
	// keep the default studio.yaml lookup away from the package directory
	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.HistorySlot != "lulu_history_v2" {
		t.Errorf("HistorySlot = %q", cfg.HistorySlot)
	}
	if cfg.TextModel != "gemini-3-flash-preview" || cfg.ImageModel != "gemini-2.5-flash-image" || cfg.UpscaleModel != "gemini-3-pro-image-preview" {
		t.Errorf("unexpected default models: %q %q %q", cfg.TextModel, cfg.ImageModel, cfg.UpscaleModel)
	}
	if cfg.StorageBackend != StorageFile {
		t.Errorf("StorageBackend = %q", cfg.StorageBackend)
	}
	if cfg.Host != "localhost" || cfg.Port != 3000 {
		t.Errorf("listen = %s:%d, want localhost:3000", cfg.Host, cfg.Port)
	}
	if cfg.DefaultStyle != "Cinematic" || cfg.DefaultAspectRatio != "1:1" {
		t.Errorf("defaults = %q %q", cfg.DefaultStyle, cfg.DefaultAspectRatio)
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile = %q, want empty", cfg.ConfigFile)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "studio.yaml")
	yamlDoc := "storage_backend: sqlite\nport: 4000\nhistory_limit: 10\nai_timeout: 45s\ndefault_style: Anime\n"
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STUDIO_CONFIG", path)
	t.Setenv("PORT", "5000")
	t.Setenv("API_KEY", "legacy-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.StorageBackend != StorageSQLite {
		t.Errorf("StorageBackend = %q, want sqlite from file", cfg.StorageBackend)
	}
	if cfg.Port != 5000 {
		t.Errorf("Port = %d, want env override 5000", cfg.Port)
	}
	if cfg.HistoryLimit != 10 {
		t.Errorf("HistoryLimit = %d", cfg.HistoryLimit)
	}
	if cfg.AITimeout != 45*time.Second {
		t.Errorf("AITimeout = %v", cfg.AITimeout)
	}
	if cfg.DefaultStyle != "Anime" {
		t.Errorf("DefaultStyle = %q", cfg.DefaultStyle)
	}
	if cfg.GeminiAPIKey != "legacy-key" {
		t.Errorf("GeminiAPIKey = %q, want API_KEY fallback", cfg.GeminiAPIKey)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	isolateEnv(t)
	t.Setenv("STUDIO_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := LoadConfig()
	if GetErrorCode(err) != ErrCodeConfigFile {
		t.Fatalf("LoadConfig() error = %v, want %s", err, ErrCodeConfigFile)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad provider", func(c *Config) { c.Provider = "midjourney" }, ErrCodeInvalidProvider},
		{"bad storage", func(c *Config) { c.StorageBackend = "redis" }, ErrCodeInvalidStorage},
		{"empty slot", func(c *Config) { c.HistorySlot = "" }, ErrCodeMissingConfig},
		{"negative limit", func(c *Config) { c.HistoryLimit = -1 }, ErrCodeInvalidValue},
		{"bad port", func(c *Config) { c.Port = 70000 }, ErrCodeInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if got := GetErrorCode(cfg.Validate()); got != tt.code {
				t.Errorf("Validate() code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestConfig_ResolveProvider(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit", Config{Provider: ProviderOpenAI, GeminiAPIKey: "g"}, ProviderOpenAI},
		{"azure endpoint", Config{AzureOpenAIEndpoint: "https://x.openai.azure.com", GeminiAPIKey: "g"}, ProviderAzure},
		{"gemini key", Config{GeminiAPIKey: "g", OpenAIAPIKey: "o"}, ProviderGemini},
		{"openai key", Config{OpenAIAPIKey: "o"}, ProviderOpenAI},
		{"nothing", Config{}, ProviderGemini},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ResolveProvider(); got != tt.want {
				t.Errorf("ResolveProvider() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetHTTPClient(t *testing.T) {
	cfg := DefaultConfig()
	client := GetHTTPClient(cfg, 5*time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", client.Timeout)
	}
	if client.Transport != nil {
		t.Error("Transport set without ALLOW_SELF_SIGNED_CERTS")
	}

	cfg.AllowSelfSignedCerts = true
	if GetDefaultHTTPClient(cfg).Transport == nil {
		t.Error("Transport not set with ALLOW_SELF_SIGNED_CERTS")
	}
}
