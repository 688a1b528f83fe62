package validation

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lulu_studio/core"
)

func TestValidateEndpointURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://generativelanguage.googleapis.com", false},
		{"http://localhost:8080/v1", false},
		{"  https://api.openai.com/v1  ", false},
		{"", true},
		{"not-a-url", true},
		{"ftp://example.com", true},
		{"https://", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if err := ValidateEndpointURL(tt.url); (err != nil) != tt.wantErr {
				t.Errorf("ValidateEndpointURL(%q) = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestProviderEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*core.Config)
		want   string
	}{
		{"gemini default", func(c *core.Config) { c.GeminiAPIKey = "k" }, DefaultGeminiEndpoint},
		{"gemini override", func(c *core.Config) { c.GeminiBaseURL = "http://proxy.local" }, "http://proxy.local"},
		{"openai default", func(c *core.Config) { c.Provider = core.ProviderOpenAI }, DefaultOpenAIEndpoint},
		{"openai override", func(c *core.Config) {
			c.Provider = core.ProviderOpenAI
			c.OpenAIBaseURL = "http://localhost:1234/v1"
		}, "http://localhost:1234/v1"},
		{"azure", func(c *core.Config) { c.AzureOpenAIEndpoint = "https://res.openai.azure.com" }, "https://res.openai.azure.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := core.DefaultConfig()
			tt.mutate(cfg)
			if got := ProviderEndpoint(cfg); got != tt.want {
				t.Errorf("ProviderEndpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnectivityChecker_CheckEndpoint(t *testing.T) {
	var gotMethod, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAgent = r.UserAgent()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	res := NewConnectivityChecker().WithTimeout(2*time.Second).CheckEndpoint(context.Background(), server.URL)
	if !res.Reachable || res.StatusCode != http.StatusUnauthorized || res.Error != nil {
		t.Errorf("result = %+v", res)
	}
	if gotMethod != http.MethodHead || gotAgent != core.UserAgent() {
		t.Errorf("request = %s %q", gotMethod, gotAgent)
	}
}

func TestConnectivityChecker_Failures(t *testing.T) {
	// A listener closed right away gives an address nothing answers on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	closedAddr := "http://" + ln.Addr().String()
	ln.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	tests := []struct {
		name        string
		url         string
		wantMessage string
		wantCode    string
	}{
		{"invalid url", "not-a-url", "Invalid URL format", core.ErrCodeInvalidURL},
		{"refused", closedAddr, "Connection failed", core.ErrCodeUnreachable},
		{"timeout", slow.URL, "Connection timed out", core.ErrCodeUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewConnectivityChecker().WithTimeout(200*time.Millisecond).CheckEndpoint(context.Background(), tt.url)
			if res.Reachable || res.Message != tt.wantMessage {
				t.Errorf("result = %+v", res)
			}
			if got := core.GetErrorCode(res.Error); got != tt.wantCode {
				t.Errorf("error code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}
