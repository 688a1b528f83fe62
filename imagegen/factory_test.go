package imagegen

import (
	"testing"

	"lulu_studio/core"
)

func TestNewClientFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *core.Config
		expected string
		errCode  string
	}{
		{
			name:     "gemini key",
			cfg:      &core.Config{GeminiAPIKey: "AIzaTest"},
			expected: core.ProviderGemini,
		},
		{
			name:     "openai key",
			cfg:      &core.Config{OpenAIAPIKey: "sk-test"},
			expected: core.ProviderOpenAI,
		},
		{
			name: "azure endpoint wins",
			cfg: &core.Config{
				GeminiAPIKey:          "AIzaTest",
				OpenAIAPIKey:          "azure-key",
				AzureOpenAIEndpoint:   "https://studio.openai.azure.com",
				AzureOpenAIDeployment: "gpt-image-1",
			},
			expected: core.ProviderAzure,
		},
		{
			name:     "explicit provider",
			cfg:      &core.Config{Provider: core.ProviderOpenAI, GeminiAPIKey: "AIzaTest", OpenAIAPIKey: "sk-test"},
			expected: core.ProviderOpenAI,
		},
		{
			name:    "no credentials",
			cfg:     &core.Config{},
			errCode: core.ErrCodeMissingAuth,
		},
		{
			name:    "unknown provider",
			cfg:     &core.Config{Provider: "midjourney"},
			errCode: core.ErrCodeInvalidProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClientFromConfig(tt.cfg, nil, nil)
			if tt.errCode != "" {
				if code := core.GetErrorCode(err); code != tt.errCode {
					t.Fatalf("expected %s, got %q (%v)", tt.errCode, code, err)
				}
				if client != nil {
					t.Error("client must be nil on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.Name() != tt.expected {
				t.Errorf("Name() = %s, expected %s", client.Name(), tt.expected)
			}
		})
	}
}

func TestNewClientFromConfig_UsesGivenKeyRing(t *testing.T) {
	keys := NewKeyRing("AIzaFromRing", true)
	client, err := NewClientFromConfig(&core.Config{Provider: core.ProviderGemini}, keys, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.(*GeminiProvider).keys != keys {
		t.Error("provider should share the given key ring")
	}
}
