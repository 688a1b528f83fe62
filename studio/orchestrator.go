// Package studio sequences prompt enhancement, generation and upscaling,
// and owns the state the presentation surfaces render.
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lulu_studio/asset"
	"lulu_studio/history"
	"lulu_studio/imagegen"
	"lulu_studio/logging"
	"lulu_studio/metrics"
)

// Listener receives a snapshot after every visible state change.
// Listeners run on the goroutine that changed the state and must not block
// or call back into the Orchestrator.
type Listener func(Snapshot)

// Config wires an Orchestrator.
type Config struct {
	Client  imagegen.Client
	History *history.Store

	// Credentials is the optional credential-selection capability.
	Credentials imagegen.CredentialSelector

	// Recorder receives every remote call (optional).
	Recorder metrics.TaskRecorder

	Logger *logging.Logger

	// Defaults seeds the live settings.
	Defaults Settings

	// Now and NewID are injectable for tests.
	Now   func() time.Time
	NewID func() string
}

// Orchestrator is the generation state machine. At most one remote call
// is in flight; calls made while busy are rejected, not queued.
//
// Thread Safety: all methods are safe for concurrent use. Remote calls run
// without holding the state lock, so reads and history selection stay
// responsive during a generation.
type Orchestrator struct {
	client      imagegen.Client
	history     *history.Store
	credentials imagegen.CredentialSelector
	recorder    metrics.TaskRecorder
	logger      *logging.Logger
	now         func() time.Time
	newID       func() string

	mu       sync.Mutex
	phase    Phase
	busy     Busy
	current  *asset.Record
	settings Settings
	notice   *Notice
	version  uint64

	// notifyMu serializes publication so listeners see versions in order.
	notifyMu     sync.Mutex
	listenersMu  sync.Mutex
	listeners    map[int]Listener
	nextListener int
}

// New creates an Orchestrator in PhaseIdle with no current asset.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("studio: client cannot be nil")
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("studio: history cannot be nil")
	}

	settings := cfg.Defaults
	if !settings.AspectRatio.Valid() {
		settings.AspectRatio = asset.DefaultAspectRatio
	}
	if settings.Style == "" {
		settings.Style = asset.DefaultStyle
	}

	o := &Orchestrator{
		client:      cfg.Client,
		history:     cfg.History,
		credentials: cfg.Credentials,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger,
		now:         cfg.Now,
		newID:       cfg.NewID,
		phase:       PhaseIdle,
		settings:    settings,
		listeners:   make(map[int]Listener),
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	o.logger = o.logger.Named("studio")
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = asset.NewID
	}
	if o.recorder == nil {
		o.recorder = metrics.Fanout()
	}
	return o, nil
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:             o.version,
		Phase:               o.phase,
		Busy:                o.busy,
		Generating:          o.busy == BusyGenerating || o.busy == BusyUpscaling,
		Enhancing:           o.busy == BusyEnhancing,
		History:             o.history.List(),
		Settings:            o.settings,
		CredentialSelection: o.credentials != nil && o.credentials.SelectionAvailable(),
		Provider:            o.client.Name(),
	}
	if o.current != nil {
		cur := *o.current
		snap.Current = &cur
	}
	if o.notice != nil {
		n := *o.notice
		snap.Notice = &n
	}
	return snap
}

// Subscribe registers l and returns a function that removes it.
func (o *Orchestrator) Subscribe(l Listener) func() {
	o.listenersMu.Lock()
	defer o.listenersMu.Unlock()
	id := o.nextListener
	o.nextListener++
	o.listeners[id] = l
	return func() {
		o.listenersMu.Lock()
		defer o.listenersMu.Unlock()
		delete(o.listeners, id)
	}
}

// changedLocked bumps the version. Callers publish after unlocking.
func (o *Orchestrator) changedLocked() {
	o.version++
}

func (o *Orchestrator) publish() {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	snap := o.Snapshot()
	o.listenersMu.Lock()
	listeners := make([]Listener, 0, len(o.listeners))
	for _, l := range o.listeners {
		listeners = append(listeners, l)
	}
	o.listenersMu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// begin claims the busy slot, applying prep to the live settings in the
// same step. It returns false when something is in flight.
func (o *Orchestrator) begin(b Busy, prep func(*Settings)) (Settings, bool) {
	o.mu.Lock()
	if o.busy != BusyNone {
		o.mu.Unlock()
		return Settings{}, false
	}
	o.busy = b
	if prep != nil {
		prep(&o.settings)
	}
	settings := o.settings
	o.changedLocked()
	o.mu.Unlock()
	o.publish()
	return settings, true
}

// SubmitPrompt generates an image from text with the live settings. It is
// ignored for a blank prompt or while another operation is in flight.
func (o *Orchestrator) SubmitPrompt(ctx context.Context, text string) Outcome {
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		return ignored()
	}

	settings, ok := o.begin(BusyGenerating, func(s *Settings) { s.Prompt = text })
	if !ok {
		return ignored()
	}

	started := o.now()
	img, err := o.client.Generate(ctx, imagegen.GenerateRequest{
		Prompt:         prompt,
		AspectRatio:    settings.AspectRatio,
		Style:          settings.Style,
		NegativePrompt: settings.NegativePrompt,
	})
	if err != nil {
		o.record(metrics.TaskTypeGenerate, o.client.Models().Generate, prompt, started, "", err)
		return o.fail(NoticeError, MessageGenerateFailed, err)
	}

	rec, err := asset.NewRecord(o.newID(), img.DataURI(), img.MimeType, prompt, settings.AspectRatio, o.now())
	if err != nil {
		o.record(metrics.TaskTypeGenerate, o.client.Models().Generate, prompt, started, "", err)
		return o.fail(NoticeError, MessageGenerateFailed, err)
	}
	o.record(metrics.TaskTypeGenerate, o.client.Models().Generate, prompt, started, rec.ID, nil)
	return o.display(ctx, rec)
}

// Enhance rewrites text with the text model and makes the result the live
// prompt. Failures leave the prompt untouched and raise no notice.
func (o *Orchestrator) Enhance(ctx context.Context, text string) Outcome {
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		return ignored()
	}
	if _, ok := o.begin(BusyEnhancing, nil); !ok {
		return ignored()
	}

	started := o.now()
	enhanced, err := o.client.Enhance(ctx, prompt)
	o.record(metrics.TaskTypeEnhance, o.client.Models().Enhance, prompt, started, "", err)

	o.mu.Lock()
	o.busy = BusyNone
	if err == nil {
		o.settings.Prompt = enhanced
	}
	o.changedLocked()
	o.mu.Unlock()
	o.publish()

	if err != nil {
		o.logger.Debug("enhancement failed, keeping prompt", zap.Error(err))
		return Outcome{Status: OutcomeFailed, Err: err}
	}
	return Outcome{Status: OutcomeSucceeded, Text: enhanced}
}

// UpscaleCurrent re-renders the current asset at 4K. It is a no-op without
// a current asset or while another operation is in flight.
func (o *Orchestrator) UpscaleCurrent(ctx context.Context) Outcome {
	o.mu.Lock()
	if o.current == nil || o.busy != BusyNone {
		o.mu.Unlock()
		return ignored()
	}
	source := *o.current
	o.busy = BusyUpscaling
	o.changedLocked()
	o.mu.Unlock()
	o.publish()

	base := asset.BasePrompt(source.Prompt)
	started := o.now()
	img, err := o.client.Upscale(ctx, imagegen.UpscaleRequest{
		ImageRef:    source.ImageRef,
		Prompt:      base,
		AspectRatio: source.AspectRatio,
	})
	if err != nil {
		o.record(metrics.TaskTypeUpscale, o.client.Models().Upscale, base, started, "", err)
		if errors.Is(err, imagegen.ErrElevatedAccessRequired) {
			return o.elevatedAccess(err)
		}
		return o.fail(NoticeError, MessageUpscaleFailed, err)
	}

	rec, err := asset.NewRecord(o.newID(), img.DataURI(), img.MimeType, asset.UpscaledPrompt(base), source.AspectRatio, o.now())
	if err != nil {
		o.record(metrics.TaskTypeUpscale, o.client.Models().Upscale, base, started, "", err)
		return o.fail(NoticeError, MessageUpscaleFailed, err)
	}
	o.record(metrics.TaskTypeUpscale, o.client.Models().Upscale, base, started, rec.ID, nil)
	return o.display(ctx, rec)
}

// RegenerateCurrent submits the current asset's prompt again. Upscale
// markers are stripped so the regenerated image is a fresh generation.
func (o *Orchestrator) RegenerateCurrent(ctx context.Context) Outcome {
	o.mu.Lock()
	if o.current == nil {
		o.mu.Unlock()
		return ignored()
	}
	prompt := asset.BasePrompt(o.current.Prompt)
	o.mu.Unlock()
	return o.SubmitPrompt(ctx, prompt)
}

// SelectFromHistory makes the record with id current. It is allowed while
// busy and does not affect the in-flight operation.
func (o *Orchestrator) SelectFromHistory(id string) Outcome {
	rec, ok := o.history.Get(id)
	if !ok {
		return ignored()
	}
	o.mu.Lock()
	o.current = &rec
	o.phase = PhaseDisplaying
	if o.notice != nil && o.notice.Kind == NoticeError {
		o.notice = nil
	}
	o.changedLocked()
	o.mu.Unlock()
	o.publish()
	return Outcome{Status: OutcomeSucceeded, Asset: &rec}
}

// DeleteFromHistory removes the record with id, clearing the current asset
// when it is the one removed. Deleting an unknown id changes nothing.
func (o *Orchestrator) DeleteFromHistory(ctx context.Context, id string) Outcome {
	o.mu.Lock()
	removed := o.history.Remove(context.WithoutCancel(ctx), id)
	if o.current != nil && o.current.ID == id {
		o.current = nil
		if o.phase == PhaseDisplaying {
			o.phase = PhaseIdle
		}
	}
	o.changedLocked()
	o.mu.Unlock()
	o.publish()

	if !removed {
		return ignored()
	}
	return Outcome{Status: OutcomeSucceeded}
}

// SetPrompt replaces the live prompt text.
func (o *Orchestrator) SetPrompt(text string) {
	o.update(func(s *Settings) { s.Prompt = text })
}

// SetAspectRatio selects the ratio for the next generation.
func (o *Orchestrator) SetAspectRatio(ratio string) error {
	r, err := asset.ParseAspectRatio(ratio)
	if err != nil {
		return err
	}
	o.update(func(s *Settings) { s.AspectRatio = r })
	return nil
}

// SetStyle selects the style for the next generation.
func (o *Orchestrator) SetStyle(style string) error {
	st, err := asset.ParseStyle(style)
	if err != nil {
		return err
	}
	o.update(func(s *Settings) { s.Style = st })
	return nil
}

// SetNegativePrompt sets the exclusion clause for the next generation.
func (o *Orchestrator) SetNegativePrompt(text string) {
	o.update(func(s *Settings) { s.NegativePrompt = strings.TrimSpace(text) })
}

func (o *Orchestrator) update(fn func(*Settings)) {
	o.mu.Lock()
	fn(&o.settings)
	o.changedLocked()
	o.mu.Unlock()
	o.publish()
}

// SelectCredential answers an elevated-access notice with a new key.
func (o *Orchestrator) SelectCredential(key string) error {
	if o.credentials == nil {
		return imagegen.ErrKeySelectionUnavailable
	}
	if err := o.credentials.SelectKey(key); err != nil {
		return err
	}
	o.logger.Info("credential selected")

	o.mu.Lock()
	if o.notice != nil && o.notice.Kind == NoticeElevatedAccess {
		o.notice = nil
	}
	o.changedLocked()
	o.mu.Unlock()
	o.publish()
	return nil
}

// DismissNotice clears the current notice.
func (o *Orchestrator) DismissNotice() {
	o.mu.Lock()
	if o.notice == nil {
		o.mu.Unlock()
		return
	}
	o.notice = nil
	o.changedLocked()
	o.mu.Unlock()
	o.publish()
}

// display inserts rec into the history and makes it current in one step.
// The insert is persisted even if ctx is already cancelled.
func (o *Orchestrator) display(ctx context.Context, rec asset.Record) Outcome {
	o.mu.Lock()
	o.history.InsertMostRecent(context.WithoutCancel(ctx), rec)
	cur := rec
	o.current = &cur
	o.phase = PhaseDisplaying
	o.busy = BusyNone
	o.notice = nil
	o.changedLocked()
	o.mu.Unlock()
	o.publish()

	return Outcome{Status: OutcomeSucceeded, Asset: &rec}
}

// fail ends the busy state in PhaseError. The current asset is kept.
func (o *Orchestrator) fail(kind NoticeKind, message string, err error) Outcome {
	notice := &Notice{Kind: kind, Message: message}
	o.logger.Warn("operation failed", zap.String("notice", message), zap.Error(err))

	o.mu.Lock()
	o.phase = PhaseError
	o.busy = BusyNone
	o.notice = notice
	o.changedLocked()
	o.mu.Unlock()
	o.publish()

	n := *notice
	return Outcome{Status: OutcomeFailed, Notice: &n, Err: err}
}

// elevatedAccess ends the busy state without touching phase or asset.
func (o *Orchestrator) elevatedAccess(err error) Outcome {
	notice := &Notice{Kind: NoticeElevatedAccess, Message: MessageElevatedAccess}
	o.logger.Info("upscale requires elevated access")

	o.mu.Lock()
	o.busy = BusyNone
	o.notice = notice
	o.changedLocked()
	o.mu.Unlock()
	o.publish()

	n := *notice
	return Outcome{Status: OutcomeElevatedAccess, Notice: &n, Err: err}
}

func (o *Orchestrator) record(taskType, model, prompt string, started time.Time, assetID string, err error) {
	ended := o.now()
	task := metrics.TaskRecord{
		ID:            uuid.NewString()[:8],
		Type:          taskType,
		Provider:      o.client.Name(),
		Model:         model,
		Status:        metrics.TaskStatusSuccess,
		AssetID:       assetID,
		PromptPreview: logging.PromptPreview(prompt),
		StartTime:     started,
		EndTime:       ended,
		Duration:      ended.Sub(started),
	}
	if err != nil {
		task.Status = metrics.TaskStatusError
		if errors.Is(err, imagegen.ErrElevatedAccessRequired) {
			task.Status = metrics.TaskStatusElevatedAccess
		}
		task.ErrorMsg = err.Error()
	}
	o.logger.Debug("remote call finished",
		zap.String("correlation_id", task.ID),
		zap.String("operation", taskType),
		zap.String("status", task.Status),
		zap.Duration("duration", task.Duration))
	o.recorder.RecordTask(task)
}
