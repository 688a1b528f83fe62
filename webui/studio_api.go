package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"lulu_studio/asset"
	"lulu_studio/imagegen"
	"lulu_studio/logging"
	"lulu_studio/shutdown"
	"lulu_studio/studio"
)

// maxBodyBytes caps JSON request bodies. Prompts are short; a credential
// is a single key.
const maxBodyBytes = 64 << 10

// Studio is the part of the orchestrator the API drives.
type Studio interface {
	Snapshot() studio.Snapshot
	Subscribe(l studio.Listener) func()
	SubmitPrompt(ctx context.Context, text string) studio.Outcome
	Enhance(ctx context.Context, text string) studio.Outcome
	UpscaleCurrent(ctx context.Context) studio.Outcome
	RegenerateCurrent(ctx context.Context) studio.Outcome
	SelectFromHistory(id string) studio.Outcome
	DeleteFromHistory(ctx context.Context, id string) studio.Outcome
	SetPrompt(text string)
	SetAspectRatio(ratio string) error
	SetStyle(style string) error
	SetNegativePrompt(text string)
	SelectCredential(key string) error
	DismissNotice()
}

// ImageSource resolves an asset's image reference to bytes.
type ImageSource interface {
	ImageBytes(ctx context.Context, ref string) (mimeType string, data []byte, err error)
}

// Runner runs background work that shutdown waits for. *shutdown.Manager
// implements it.
type Runner interface {
	Go(name string, fn func(context.Context)) error
}

// goRunner runs work on a bare goroutine, for tests and one-off servers.
type goRunner struct{}

func (goRunner) Go(_ string, fn func(context.Context)) error {
	go fn(context.Background())
	return nil
}

// StudioAPI serves the studio's JSON endpoints.
type StudioAPI struct {
	studio Studio
	images ImageSource
	runner Runner
	logger *logging.Logger

	// pending is the operation accepted by dispatch and not yet finished.
	mu      sync.Mutex
	pending studio.Busy
}

// NewStudioAPI returns the handlers. A nil runner runs operations on plain
// goroutines.
func NewStudioAPI(s Studio, images ImageSource, runner Runner, logger *logging.Logger) *StudioAPI {
	if runner == nil {
		runner = goRunner{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StudioAPI{studio: s, images: images, runner: runner, logger: logger.Named("api")}
}

// RegisterRoutes mounts the endpoints on mux.
func (api *StudioAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", api.HandleState)
	mux.HandleFunc("GET /api/options", api.HandleOptions)
	mux.HandleFunc("PUT /api/prompt", api.HandlePrompt)
	mux.HandleFunc("PUT /api/settings", api.HandleSettings)
	mux.HandleFunc("POST /api/enhance", api.HandleEnhance)
	mux.HandleFunc("POST /api/generate", api.HandleGenerate)
	mux.HandleFunc("POST /api/upscale", api.HandleUpscale)
	mux.HandleFunc("POST /api/regenerate", api.HandleRegenerate)
	mux.HandleFunc("POST /api/notice/dismiss", api.HandleDismissNotice)
	mux.HandleFunc("POST /api/credentials", api.HandleCredentials)
	mux.HandleFunc("POST /api/history/{id}/select", api.HandleSelect)
	mux.HandleFunc("DELETE /api/history/{id}", api.HandleDelete)
	mux.HandleFunc("GET /api/history/{id}/image", api.HandleImage)
	mux.HandleFunc("GET /api/history/{id}/download", api.HandleDownload)
	mux.HandleFunc("GET /api/history/{id}/share", api.HandleShare)
}

// HandleState handles GET /api/state.
func (api *StudioAPI) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewStateView(api.studio.Snapshot()))
}

// AspectRatioOption is one entry of the ratio picker.
type AspectRatioOption struct {
	Value asset.AspectRatio `json:"value"`
	Label string            `json:"label"`
}

// OptionsResponse is the body of /api/options.
type OptionsResponse struct {
	Styles       []string            `json:"styles"`
	AspectRatios []AspectRatioOption `json:"aspectRatios"`
	Examples     []string            `json:"examples"`
}

// HandleOptions handles GET /api/options.
func (api *StudioAPI) HandleOptions(w http.ResponseWriter, r *http.Request) {
	ratios := make([]AspectRatioOption, len(asset.AspectRatios))
	for i, ar := range asset.AspectRatios {
		ratios[i] = AspectRatioOption{Value: ar, Label: ar.Label()}
	}
	writeJSON(w, http.StatusOK, OptionsResponse{
		Styles:       asset.Styles,
		AspectRatios: ratios,
		Examples:     asset.PromptExamples,
	})
}

type promptRequest struct {
	Prompt *string `json:"prompt"`
}

// HandlePrompt handles PUT /api/prompt.
func (api *StudioAPI) HandlePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Prompt == nil {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	api.studio.SetPrompt(*req.Prompt)
	api.HandleState(w, r)
}

type settingsRequest struct {
	AspectRatio    *string `json:"aspectRatio"`
	Style          *string `json:"style"`
	NegativePrompt *string `json:"negativePrompt"`
}

// HandleSettings handles PUT /api/settings. Only the fields present change;
// nothing changes if any field is invalid.
func (api *StudioAPI) HandleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AspectRatio != nil {
		if _, err := asset.ParseAspectRatio(*req.AspectRatio); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Style != nil {
		if _, err := asset.ParseStyle(*req.Style); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if req.AspectRatio != nil {
		api.studio.SetAspectRatio(*req.AspectRatio)
	}
	if req.Style != nil {
		api.studio.SetStyle(*req.Style)
	}
	if req.NegativePrompt != nil {
		api.studio.SetNegativePrompt(*req.NegativePrompt)
	}
	api.HandleState(w, r)
}

// HandleEnhance handles POST /api/enhance. Without a prompt in the body
// the live prompt is enhanced.
func (api *StudioAPI) HandleEnhance(w http.ResponseWriter, r *http.Request) {
	text, ok := api.promptFromBody(w, r)
	if !ok {
		return
	}
	api.dispatch(w, r, "enhance", studio.BusyEnhancing, func(ctx context.Context) studio.Outcome {
		return api.studio.Enhance(ctx, text)
	})
}

// HandleGenerate handles POST /api/generate. Without a prompt in the body
// the live prompt is used.
func (api *StudioAPI) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	text, ok := api.promptFromBody(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "prompt is empty")
		return
	}
	api.dispatch(w, r, "generate", studio.BusyGenerating, func(ctx context.Context) studio.Outcome {
		return api.studio.SubmitPrompt(ctx, text)
	})
}

// HandleUpscale handles POST /api/upscale.
func (api *StudioAPI) HandleUpscale(w http.ResponseWriter, r *http.Request) {
	if api.studio.Snapshot().Current == nil {
		writeError(w, http.StatusConflict, "no image is displayed")
		return
	}
	api.dispatch(w, r, "upscale", studio.BusyUpscaling, api.studio.UpscaleCurrent)
}

// HandleRegenerate handles POST /api/regenerate.
func (api *StudioAPI) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	if api.studio.Snapshot().Current == nil {
		writeError(w, http.StatusConflict, "no image is displayed")
		return
	}
	api.dispatch(w, r, "regenerate", studio.BusyGenerating, api.studio.RegenerateCurrent)
}

// dispatch runs op as tracked background work and answers 202 with the
// state. With ?wait=true it runs op on the request and answers with the
// outcome instead.
//
// Only one dispatched operation runs at a time: a request arriving while
// another is accepted gets 409, even before the studio reports it busy.
func (api *StudioAPI) dispatch(w http.ResponseWriter, r *http.Request, name string, busy studio.Busy, op func(context.Context) studio.Outcome) {
	if current, ok := api.claim(busy); !ok {
		writeError(w, http.StatusConflict, fmt.Sprintf("busy: %s", current))
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		var outcome studio.Outcome
		done := make(chan struct{})
		err := api.runner.Go(name, func(ctx context.Context) {
			defer close(done)
			defer api.release()
			outcome = op(ctx)
		})
		if err != nil {
			api.release()
			api.rejected(w, name, err)
			return
		}
		<-done
		api.writeOutcome(w, outcome)
		return
	}

	err := api.runner.Go(name, func(ctx context.Context) {
		defer api.release()
		outcome := op(ctx)
		if outcome.Err != nil {
			api.logger.Debug("Operation finished with failure",
				zap.String("operation", name),
				zap.String("status", string(outcome.Status)),
				zap.Error(outcome.Err),
			)
		}
	})
	if err != nil {
		api.release()
		api.rejected(w, name, err)
		return
	}
	writeJSON(w, http.StatusAccepted, api.acceptedView(busy))
}

// claim reserves the single operation slot for busy. It fails when another
// dispatched operation holds it or the studio is already busy.
func (api *StudioAPI) claim(busy studio.Busy) (studio.Busy, bool) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.pending != studio.BusyNone {
		return api.pending, false
	}
	if current := api.studio.Snapshot().Busy; current != studio.BusyNone {
		return current, false
	}
	api.pending = busy
	return busy, true
}

func (api *StudioAPI) release() {
	api.mu.Lock()
	api.pending = studio.BusyNone
	api.mu.Unlock()
}

// acceptedView is the state answered with 202. The operation may not have
// reached the studio yet, so the claimed busy state is filled in.
func (api *StudioAPI) acceptedView(busy studio.Busy) StateView {
	view := NewStateView(api.studio.Snapshot())
	api.mu.Lock()
	stillPending := api.pending == busy
	api.mu.Unlock()
	if view.Busy == studio.BusyNone && stillPending {
		view.Busy = busy
		view.Generating = busy != studio.BusyEnhancing
		view.Enhancing = busy == studio.BusyEnhancing
	}
	return view
}

func (api *StudioAPI) rejected(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, shutdown.ErrTrackerClosed) {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	api.logger.Error("Failed to start operation", zap.String("operation", name), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "could not start operation")
}

// writeOutcome maps an outcome to a status code. Failures are not HTTP
// errors: the request worked and the body carries the notice.
func (api *StudioAPI) writeOutcome(w http.ResponseWriter, outcome studio.Outcome) {
	status := http.StatusOK
	if outcome.Status == studio.OutcomeIgnored {
		status = http.StatusConflict
	}
	writeJSON(w, status, NewOutcomeView(outcome, api.studio.Snapshot()))
}

// HandleDismissNotice handles POST /api/notice/dismiss.
func (api *StudioAPI) HandleDismissNotice(w http.ResponseWriter, r *http.Request) {
	api.studio.DismissNotice()
	api.HandleState(w, r)
}

type credentialsRequest struct {
	Key string `json:"key"`
}

// HandleCredentials handles POST /api/credentials, the answer to an
// elevated-access notice.
func (api *StudioAPI) HandleCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if err := api.studio.SelectCredential(req.Key); err != nil {
		if errors.Is(err, imagegen.ErrKeySelectionUnavailable) {
			writeError(w, http.StatusForbidden, "credential selection is not available")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	api.HandleState(w, r)
}

// HandleSelect handles POST /api/history/{id}/select.
func (api *StudioAPI) HandleSelect(w http.ResponseWriter, r *http.Request) {
	outcome := api.studio.SelectFromHistory(r.PathValue("id"))
	if outcome.Status == studio.OutcomeIgnored {
		writeError(w, http.StatusNotFound, "no such asset")
		return
	}
	api.writeOutcome(w, outcome)
}

// HandleDelete handles DELETE /api/history/{id}.
func (api *StudioAPI) HandleDelete(w http.ResponseWriter, r *http.Request) {
	outcome := api.studio.DeleteFromHistory(r.Context(), r.PathValue("id"))
	if outcome.Status == studio.OutcomeIgnored {
		writeError(w, http.StatusNotFound, "no such asset")
		return
	}
	api.writeOutcome(w, outcome)
}

// HandleImage handles GET /api/history/{id}/image.
func (api *StudioAPI) HandleImage(w http.ResponseWriter, r *http.Request) {
	rec, mimeType, data, ok := api.loadImage(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", mimeType)
	// Records never change after creation.
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	w.Header().Set("ETag", `"`+rec.ID+`"`)
	w.Write(data)
}

// HandleDownload handles GET /api/history/{id}/download.
func (api *StudioAPI) HandleDownload(w http.ResponseWriter, r *http.Request) {
	rec, mimeType, data, ok := api.loadImage(w, r)
	if !ok {
		return
	}
	name := rec.DownloadName(imagegen.ExtensionForMime(mimeType))
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}

// ShareResponse is the body of /api/history/{id}/share, shaped for the
// browser's navigator.share.
type ShareResponse struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// HandleShare handles GET /api/history/{id}/share.
func (api *StudioAPI) HandleShare(w http.ResponseWriter, r *http.Request) {
	rec, ok := api.find(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no such asset")
		return
	}
	writeJSON(w, http.StatusOK, ShareResponse{
		Title: "Lulu AI",
		Text:  rec.Prompt,
		URL:   requestBaseURL(r) + NewHistoryItem(rec).ImageURL,
	})
}

func (api *StudioAPI) find(id string) (asset.Record, bool) {
	snap := api.studio.Snapshot()
	if snap.Current != nil && snap.Current.ID == id {
		return *snap.Current, true
	}
	for _, rec := range snap.History {
		if rec.ID == id {
			return rec, true
		}
	}
	return asset.Record{}, false
}

func (api *StudioAPI) loadImage(w http.ResponseWriter, r *http.Request) (asset.Record, string, []byte, bool) {
	rec, ok := api.find(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no such asset")
		return asset.Record{}, "", nil, false
	}
	mimeType, data, err := api.images.ImageBytes(r.Context(), rec.ImageRef)
	if err != nil {
		api.logger.Warn("Failed to load image", zap.String("asset_id", rec.ID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "image could not be loaded")
		return asset.Record{}, "", nil, false
	}
	if rec.MimeType != "" {
		mimeType = rec.MimeType
	}
	return rec, mimeType, data, true
}

// promptFromBody reads an optional {"prompt": "..."} body, falling back to
// the live prompt.
func (api *StudioAPI) promptFromBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req promptRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return "", false
		}
	}
	if req.Prompt != nil {
		return *req.Prompt, true
	}
	return api.studio.Snapshot().Settings.Prompt, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body is empty")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

var _ Studio = (*studio.Orchestrator)(nil)
