package webui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		origin string
		want   bool
	}{
		{"no origin", "localhost:3000", "", true},
		{"same host", "localhost:3000", "http://localhost:3000", true},
		{"case differs", "LocalHost:3000", "http://localhost:3000", true},
		{"other site", "localhost:3000", "https://evil.example", false},
		{"other port", "localhost:3000", "http://localhost:8080", false},
		{"unparsable", "localhost:3000", "http://[::1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/state", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := sameOrigin(r); got != tt.want {
				t.Errorf("sameOrigin(host=%q, origin=%q) = %v, want %v", tt.host, tt.origin, got, tt.want)
			}
		})
	}
}

func (e *testEnv) doFrom(t *testing.T, origin, method, path, contentType, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := e.http.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestOriginGuard_RejectsForeignAPIRequests(t *testing.T) {
	env := newTestEnv(t, withKeySelection())
	const evil = "https://evil.example"

	resp := env.doFrom(t, evil, http.MethodPost, "/api/generate?wait=true", "application/json", `{"prompt":"spend quota"}`)
	expectStatus(t, resp, http.StatusForbidden)
	if n := len(env.studio.Snapshot().History); n != 0 {
		t.Errorf("history = %d, want 0", n)
	}

	resp = env.doFrom(t, evil, http.MethodPost, "/api/credentials", "application/json", `{"key":"attacker-key"}`)
	expectStatus(t, resp, http.StatusForbidden)
	if got := env.keys.Key(); got != "free-key" {
		t.Errorf("key = %q, want free-key", got)
	}

	resp = env.doFrom(t, evil, http.MethodGet, "/api/state", "", "")
	expectStatus(t, resp, http.StatusForbidden)
}

func TestOriginGuard_AllowsSameOriginAndPage(t *testing.T) {
	env := newTestEnv(t)

	resp := env.doFrom(t, env.http.URL, http.MethodPost, "/api/generate?wait=true", "application/json", `{"prompt":"a lighthouse"}`)
	expectStatus(t, resp, http.StatusOK)

	resp = env.doFrom(t, "https://evil.example", http.MethodGet, "/health", "", "")
	expectStatus(t, resp, http.StatusOK)
}

func TestDecodeBody_RequiresJSONContentType(t *testing.T) {
	env := newTestEnv(t)

	for _, ct := range []string{"", "text/plain", "application/x-www-form-urlencoded"} {
		resp := env.doFrom(t, "", http.MethodPost, "/api/generate?wait=true", ct, `{"prompt":"sneaky"}`)
		expectStatus(t, resp, http.StatusUnsupportedMediaType)
	}
	if n := len(env.studio.Snapshot().History); n != 0 {
		t.Errorf("history = %d, want 0", n)
	}

	resp := env.doFrom(t, "", http.MethodPut, "/api/prompt", "application/json; charset=utf-8", `{"prompt":"fine"}`)
	expectStatus(t, resp, http.StatusOK)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws"

	header := http.Header{"Origin": {"https://evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("Dial from foreign origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	header = http.Header{"Origin": {env.http.URL}}
	conn, _, err = websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial from same origin: %v", err)
	}
	conn.Close()
}
