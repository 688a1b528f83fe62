package validation

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lulu_studio/core"
)

// Public endpoints used when no base URL is configured.
const (
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com"
	DefaultOpenAIEndpoint = "https://api.openai.com/v1"
)

// ConnectivityResult represents the result of a connectivity check.
type ConnectivityResult struct {
	Reachable  bool
	StatusCode int
	Message    string
	Latency    time.Duration
	Error      error
}

// ConnectivityChecker checks that a provider endpoint answers HTTP.
// Any HTTP status counts as reachable: an unauthenticated HEAD is expected
// to be refused by the provider.
type ConnectivityChecker struct {
	timeout              time.Duration
	allowSelfSignedCerts bool
}

// NewConnectivityChecker creates a checker with a 10 second timeout.
func NewConnectivityChecker() *ConnectivityChecker {
	return &ConnectivityChecker{timeout: 10 * time.Second}
}

// WithTimeout sets the timeout for connectivity checks.
func (c *ConnectivityChecker) WithTimeout(timeout time.Duration) *ConnectivityChecker {
	c.timeout = timeout
	return c
}

// WithAllowSelfSignedCerts configures whether to allow self-signed certificates.
func (c *ConnectivityChecker) WithAllowSelfSignedCerts(allow bool) *ConnectivityChecker {
	c.allowSelfSignedCerts = allow
	return c
}

// ValidateEndpointURL checks that endpoint is an absolute http(s) URL.
func ValidateEndpointURL(endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return errors.New("URL cannot be empty")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if scheme := strings.ToLower(parsed.Scheme); scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

// ProviderEndpoint returns the base URL the configured provider talks to.
func ProviderEndpoint(cfg *core.Config) string {
	switch cfg.ResolveProvider() {
	case core.ProviderAzure:
		return cfg.AzureOpenAIEndpoint
	case core.ProviderOpenAI:
		if cfg.OpenAIBaseURL != "" {
			return cfg.OpenAIBaseURL
		}
		return DefaultOpenAIEndpoint
	default:
		if cfg.GeminiBaseURL != "" {
			return cfg.GeminiBaseURL
		}
		return DefaultGeminiEndpoint
	}
}

// CheckEndpoint sends a HEAD request to endpoint.
func (c *ConnectivityChecker) CheckEndpoint(ctx context.Context, endpoint string) ConnectivityResult {
	if err := ValidateEndpointURL(endpoint); err != nil {
		return ConnectivityResult{
			Message: "Invalid URL format",
			Error:   core.ErrInvalidEndpointURL(endpoint, err.Error()),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return ConnectivityResult{
			Message: "Failed to create request",
			Error:   core.ErrEndpointUnreachable(endpoint, err.Error()),
		}
	}
	req.Header.Set("User-Agent", core.UserAgent())

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	latency := time.Since(start)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ConnectivityResult{
				Message: "Connection timed out",
				Latency: latency,
				Error:   core.ErrEndpointUnreachable(endpoint, fmt.Sprintf("connection timed out after %v", c.timeout)),
			}
		}
		return ConnectivityResult{
			Message: "Connection failed",
			Latency: latency,
			Error:   core.ErrEndpointUnreachable(endpoint, err.Error()),
		}
	}
	defer resp.Body.Close()

	return ConnectivityResult{
		Reachable:  true,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("Endpoint reachable (status: %d)", resp.StatusCode),
		Latency:    latency,
	}
}

func (c *ConnectivityChecker) httpClient() *http.Client {
	client := &http.Client{Timeout: c.timeout}
	if c.allowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}
