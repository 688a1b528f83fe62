package webui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"lulu_studio/imagegen"
	"lulu_studio/shutdown"
	"lulu_studio/studio"
)

func (e *testEnv) generate(t *testing.T, prompt string) HistoryItem {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/generate?wait=true", `{"prompt":"`+prompt+`"}`)
	expectStatus(t, resp, http.StatusOK)
	out := decodeJSON[OutcomeView](t, resp)
	if out.Status != studio.OutcomeSucceeded || out.Asset == nil {
		t.Fatalf("generate %q = %+v", prompt, out)
	}
	return *out.Asset
}

func TestStudioAPI_InitialState(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/state", "")
	expectStatus(t, resp, http.StatusOK)

	state := decodeJSON[StateView](t, resp)
	if state.Phase != studio.PhaseIdle {
		t.Errorf("phase = %q, want idle", state.Phase)
	}
	if state.History == nil || len(state.History) != 0 {
		t.Errorf("history = %v, want empty list", state.History)
	}
	if state.Provider != "stub" {
		t.Errorf("provider = %q", state.Provider)
	}
	if state.Settings.AspectRatio != "1:1" || state.Settings.Style != "Cinematic" {
		t.Errorf("settings = %+v", state.Settings)
	}
}

func TestStudioAPI_Options(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/options", "")
	expectStatus(t, resp, http.StatusOK)

	opts := decodeJSON[OptionsResponse](t, resp)
	if len(opts.AspectRatios) != 5 {
		t.Errorf("aspect ratios = %v", opts.AspectRatios)
	}
	if opts.AspectRatios[0].Value != "1:1" || opts.AspectRatios[0].Label != "Square" {
		t.Errorf("first ratio = %+v", opts.AspectRatios[0])
	}
	if len(opts.Styles) == 0 || len(opts.Examples) == 0 {
		t.Errorf("options = %+v", opts)
	}
}

func TestStudioAPI_PromptAndSettings(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/prompt", `{"prompt":"a red kite"}`)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeJSON[StateView](t, resp).Settings.Prompt; got != "a red kite" {
		t.Errorf("prompt = %q", got)
	}

	resp = env.do(t, http.MethodPut, "/api/settings", `{"aspectRatio":"16:9","negativePrompt":"  blur  "}`)
	expectStatus(t, resp, http.StatusOK)
	settings := decodeJSON[StateView](t, resp).Settings
	if settings.AspectRatio != "16:9" || settings.NegativePrompt != "blur" || settings.Style != "Cinematic" {
		t.Errorf("settings = %+v", settings)
	}

	tests := []struct {
		name string
		body string
	}{
		{"unknown ratio", `{"aspectRatio":"2:1","style":"Anime"}`},
		{"unknown style", `{"aspectRatio":"4:3","style":"Baroque"}`},
		{"unknown field", `{"ratio":"4:3"}`},
		{"empty body", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.do(t, http.MethodPut, "/api/settings", tt.body), http.StatusBadRequest)
			if s := env.studio.Snapshot().Settings; s.AspectRatio != "16:9" || s.Style != "Cinematic" {
				t.Errorf("rejected request changed settings: %+v", s)
			}
		})
	}

	expectStatus(t, env.do(t, http.MethodPut, "/api/prompt", `{}`), http.StatusBadRequest)
}

func TestStudioAPI_GenerateWait(t *testing.T) {
	env := newTestEnv(t)
	item := env.generate(t, "a fox in snow")

	if item.Prompt != "a fox in snow" || item.ImageURL != "/api/history/"+item.ID+"/image" {
		t.Errorf("asset = %+v", item)
	}
	snap := env.studio.Snapshot()
	if snap.Phase != studio.PhaseDisplaying || snap.Current == nil || snap.Current.ID != item.ID {
		t.Errorf("snapshot = %+v", snap)
	}

	resp := env.do(t, http.MethodGet, item.ImageURL, "")
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "PNGDATA" || resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("image = %q (%s)", body, resp.Header.Get("Content-Type"))
	}

	resp = env.do(t, http.MethodGet, item.DownloadURL, "")
	expectStatus(t, resp, http.StatusOK)
	want := `attachment; filename="lulu-ai-` + item.ID + `.png"`
	if got := resp.Header.Get("Content-Disposition"); got != want {
		t.Errorf("Content-Disposition = %q, want %q", got, want)
	}
}

func TestStudioAPI_GenerateAsync(t *testing.T) {
	env := newTestEnv(t)
	release := make(chan struct{})
	env.client.set(func(c *stubClient) {
		c.generate = func(ctx context.Context, req imagegen.GenerateRequest) (*imagegen.Image, error) {
			<-release
			return &imagegen.Image{Data: []byte("X"), MimeType: "image/png"}, nil
		}
	})

	resp := env.do(t, http.MethodPost, "/api/generate", `{"prompt":"a lighthouse"}`)
	expectStatus(t, resp, http.StatusAccepted)
	waitFor(t, "generation to start", func() bool { return env.studio.Snapshot().Generating })

	resp = env.do(t, http.MethodPost, "/api/generate", `{"prompt":"another"}`)
	expectStatus(t, resp, http.StatusConflict)

	close(release)
	waitFor(t, "generation to finish", func() bool { return env.studio.Snapshot().Current != nil })
	if got := env.studio.Snapshot().Current.Prompt; got != "a lighthouse" {
		t.Errorf("current prompt = %q", got)
	}
}

func TestStudioAPI_ConcurrentDispatchAcceptsOne(t *testing.T) {
	env := newTestEnv(t)
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	env.client.set(func(c *stubClient) {
		c.generate = func(ctx context.Context, req imagegen.GenerateRequest) (*imagegen.Image, error) {
			once.Do(func() { close(started) })
			<-release
			return &imagegen.Image{Data: []byte("X"), MimeType: "image/png"}, nil
		}
	})

	const n = 8
	statuses := make(chan int, n)
	bodies := make(chan StateView, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := env.http.Client().Post(env.http.URL+"/api/generate", "application/json", strings.NewReader(`{"prompt":"race"}`))
			if err != nil {
				t.Errorf("POST: %v", err)
				return
			}
			defer resp.Body.Close()
			statuses <- resp.StatusCode
			if resp.StatusCode == http.StatusAccepted {
				var view StateView
				json.NewDecoder(resp.Body).Decode(&view)
				bodies <- view
			}
		}()
	}
	wg.Wait()
	close(statuses)
	close(bodies)

	accepted := 0
	for code := range statuses {
		switch code {
		case http.StatusAccepted:
			accepted++
		case http.StatusConflict:
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted = %d, want 1", accepted)
	}
	if view := <-bodies; view.Busy != studio.BusyGenerating || !view.Generating {
		t.Errorf("accepted view busy = %q, generating = %v", view.Busy, view.Generating)
	}

	<-started
	close(release)
	api := env.server.studioAPI
	waitFor(t, "operation slot release", func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.pending == studio.BusyNone
	})
	if n := len(env.studio.Snapshot().History); n != 1 {
		t.Errorf("history = %d, want 1", n)
	}
	expectStatus(t, env.do(t, http.MethodPost, "/api/generate?wait=true", `{"prompt":"after"}`), http.StatusOK)
}

func TestStudioAPI_GenerateUsesLivePrompt(t *testing.T) {
	env := newTestEnv(t)
	env.studio.SetPrompt("from the prompt box")

	resp := env.do(t, http.MethodPost, "/api/generate?wait=true", "")
	expectStatus(t, resp, http.StatusOK)
	if out := decodeJSON[OutcomeView](t, resp); out.Asset == nil || out.Asset.Prompt != "from the prompt box" {
		t.Errorf("outcome = %+v", out)
	}

	env.studio.SetPrompt("   ")
	expectStatus(t, env.do(t, http.MethodPost, "/api/generate", ""), http.StatusBadRequest)
}

func TestStudioAPI_GenerateFailure(t *testing.T) {
	env := newTestEnv(t)
	first := env.generate(t, "first")
	env.client.set(func(c *stubClient) {
		c.generate = func(context.Context, imagegen.GenerateRequest) (*imagegen.Image, error) {
			return nil, errors.New("quota exceeded")
		}
	})

	resp := env.do(t, http.MethodPost, "/api/generate?wait=true", `{"prompt":"second"}`)
	expectStatus(t, resp, http.StatusOK)
	out := decodeJSON[OutcomeView](t, resp)
	if out.Status != studio.OutcomeFailed {
		t.Errorf("status = %q", out.Status)
	}
	if out.Notice == nil || out.Notice.Message != studio.MessageGenerateFailed {
		t.Errorf("notice = %+v", out.Notice)
	}
	if out.State.Phase != studio.PhaseError || out.State.Current == nil || out.State.Current.ID != first.ID {
		t.Errorf("state = %+v", out.State)
	}

	resp = env.do(t, http.MethodPost, "/api/notice/dismiss", "")
	expectStatus(t, resp, http.StatusOK)
	if decodeJSON[StateView](t, resp).Notice != nil {
		t.Error("notice should be dismissed")
	}
}

func TestStudioAPI_Enhance(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/enhance?wait=true", `{"prompt":"cat"}`)
	expectStatus(t, resp, http.StatusOK)

	out := decodeJSON[OutcomeView](t, resp)
	if out.Text != "enhanced cat" || out.State.Settings.Prompt != "enhanced cat" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestStudioAPI_UpscaleAndRegenerate(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodPost, "/api/upscale", ""), http.StatusConflict)
	expectStatus(t, env.do(t, http.MethodPost, "/api/regenerate", ""), http.StatusConflict)

	base := env.generate(t, "a castle")

	resp := env.do(t, http.MethodPost, "/api/upscale?wait=true", "")
	expectStatus(t, resp, http.StatusOK)
	up := decodeJSON[OutcomeView](t, resp)
	if up.Asset == nil || !up.Asset.Upscaled || up.Asset.ID == base.ID {
		t.Fatalf("upscale = %+v", up)
	}
	if len(up.State.History) != 2 {
		t.Errorf("history = %d, want 2", len(up.State.History))
	}

	resp = env.do(t, http.MethodPost, "/api/regenerate?wait=true", "")
	expectStatus(t, resp, http.StatusOK)
	re := decodeJSON[OutcomeView](t, resp)
	if re.Asset == nil || re.Asset.Prompt != "a castle" || re.Asset.Upscaled {
		t.Errorf("regenerate = %+v", re.Asset)
	}
}

func TestStudioAPI_UpscaleElevatedAccess(t *testing.T) {
	env := newTestEnv(t, withKeySelection())
	first := env.generate(t, "a castle")
	env.client.set(func(c *stubClient) {
		c.upscale = func(context.Context, imagegen.UpscaleRequest) (*imagegen.Image, error) {
			return nil, imagegen.ErrElevatedAccessRequired
		}
	})

	resp := env.do(t, http.MethodPost, "/api/upscale?wait=true", "")
	expectStatus(t, resp, http.StatusOK)
	out := decodeJSON[OutcomeView](t, resp)
	if out.Status != studio.OutcomeElevatedAccess {
		t.Errorf("status = %q", out.Status)
	}
	if out.Notice == nil || out.Notice.Kind != studio.NoticeElevatedAccess {
		t.Errorf("notice = %+v", out.Notice)
	}
	if !out.State.CredentialSelection || len(out.State.History) != 1 || out.State.Current.ID != first.ID {
		t.Errorf("state = %+v", out.State)
	}

	resp = env.do(t, http.MethodPost, "/api/credentials", `{"key":"paid-key"}`)
	expectStatus(t, resp, http.StatusOK)
	if decodeJSON[StateView](t, resp).Notice != nil {
		t.Error("selecting a credential should clear the notice")
	}
	if env.keys.Key() != "paid-key" || !env.keys.Elevated() {
		t.Errorf("key ring = %q elevated=%v", env.keys.Key(), env.keys.Elevated())
	}
}

func TestStudioAPI_Credentials(t *testing.T) {
	t.Run("selection disabled", func(t *testing.T) {
		env := newTestEnv(t)
		expectStatus(t, env.do(t, http.MethodPost, "/api/credentials", `{"key":"paid"}`), http.StatusForbidden)
	})
	t.Run("blank key", func(t *testing.T) {
		env := newTestEnv(t, withKeySelection())
		expectStatus(t, env.do(t, http.MethodPost, "/api/credentials", `{"key":"  "}`), http.StatusBadRequest)
	})
}

func TestStudioAPI_History(t *testing.T) {
	env := newTestEnv(t)
	a := env.generate(t, "first")
	b := env.generate(t, "second")

	resp := env.do(t, http.MethodPost, "/api/history/"+a.ID+"/select", "")
	expectStatus(t, resp, http.StatusOK)
	if cur := decodeJSON[OutcomeView](t, resp).State.Current; cur == nil || cur.ID != a.ID {
		t.Errorf("current = %+v", cur)
	}

	resp = env.do(t, http.MethodDelete, "/api/history/"+a.ID, "")
	expectStatus(t, resp, http.StatusOK)
	state := decodeJSON[OutcomeView](t, resp).State
	if state.Current != nil || len(state.History) != 1 || state.History[0].ID != b.ID {
		t.Errorf("state after delete = %+v", state)
	}

	expectStatus(t, env.do(t, http.MethodDelete, "/api/history/"+a.ID, ""), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodPost, "/api/history/missing/select", ""), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/api/history/missing/image", ""), http.StatusNotFound)
}

func TestStudioAPI_Share(t *testing.T) {
	env := newTestEnv(t)
	item := env.generate(t, "a quiet harbor")

	resp := env.do(t, http.MethodGet, "/api/history/"+item.ID+"/share", "")
	expectStatus(t, resp, http.StatusOK)
	share := decodeJSON[ShareResponse](t, resp)
	if share.Text != "a quiet harbor" {
		t.Errorf("text = %q", share.Text)
	}
	if share.URL != env.http.URL+item.ImageURL {
		t.Errorf("url = %q, want %q", share.URL, env.http.URL+item.ImageURL)
	}
}

func TestStudioAPI_RejectsDuringShutdown(t *testing.T) {
	m := shutdown.NewManager(nil)
	m.Shutdown()
	env := newTestEnv(t, withRunner(m))

	resp := env.do(t, http.MethodPost, "/api/generate", `{"prompt":"late"}`)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	if !strings.Contains(decodeJSON[ErrorResponse](t, resp).Message, "shutting down") {
		t.Error("expected shutdown message")
	}
}
