// Package webui serves the studio's browser interface: the embedded single
// page, its JSON API and a WebSocket feed of state snapshots.
package webui

import (
	"time"

	"lulu_studio/asset"
	"lulu_studio/metrics"
	"lulu_studio/studio"
)

// WebSocket message types.
const (
	// MessageTypeInitial carries the state sent right after connecting.
	MessageTypeInitial = "initial"
	// MessageTypeState carries a new state after every visible change.
	MessageTypeState = "state"
	// MessageTypeTaskUpdate reports a finished remote call.
	MessageTypeTaskUpdate = "task_update"
	// MessageTypeSystemStatus reports server health.
	MessageTypeSystemStatus = "system_status"
	// MessageTypeError reports a server-side failure.
	MessageTypeError = "error"
)

// WSMessage is the envelope of every WebSocket message.
type WSMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// NewWSMessage stamps a message with the current time.
func NewWSMessage(msgType string, data any) WSMessage {
	return WSMessage{Type: msgType, Timestamp: time.Now(), Data: data}
}

// HistoryItem is an asset as the browser sees it. Images are referenced by
// URL instead of inlined, so a state message stays small however long the
// history gets.
type HistoryItem struct {
	ID          string            `json:"id"`
	Prompt      string            `json:"prompt"`
	AspectRatio asset.AspectRatio `json:"aspectRatio"`
	Timestamp   int64             `json:"timestamp"`
	MimeType    string            `json:"mimeType,omitempty"`
	Upscaled    bool              `json:"upscaled"`
	ImageURL    string            `json:"imageUrl"`
	DownloadURL string            `json:"downloadUrl"`
}

// NewHistoryItem builds the browser view of rec.
func NewHistoryItem(rec asset.Record) HistoryItem {
	base := "/api/history/" + rec.ID
	return HistoryItem{
		ID:          rec.ID,
		Prompt:      rec.Prompt,
		AspectRatio: rec.AspectRatio,
		Timestamp:   rec.CreatedAt.UnixMilli(),
		MimeType:    rec.MimeType,
		Upscaled:    rec.IsUpscaled(),
		ImageURL:    base + "/image",
		DownloadURL: base + "/download",
	}
}

// StateView is the snapshot as served by /api/state and the WebSocket feed.
type StateView struct {
	Version             uint64          `json:"version"`
	Phase               studio.Phase    `json:"phase"`
	Busy                studio.Busy     `json:"busy"`
	Generating          bool            `json:"generating"`
	Enhancing           bool            `json:"enhancing"`
	Current             *HistoryItem    `json:"current,omitempty"`
	History             []HistoryItem   `json:"history"`
	Settings            studio.Settings `json:"settings"`
	Notice              *studio.Notice  `json:"notice,omitempty"`
	CredentialSelection bool            `json:"credentialSelection"`
	Provider            string          `json:"provider"`
}

// NewStateView converts a snapshot.
func NewStateView(s studio.Snapshot) StateView {
	view := StateView{
		Version:             s.Version,
		Phase:               s.Phase,
		Busy:                s.Busy,
		Generating:          s.Generating,
		Enhancing:           s.Enhancing,
		History:             make([]HistoryItem, len(s.History)),
		Settings:            s.Settings,
		Notice:              s.Notice,
		CredentialSelection: s.CredentialSelection,
		Provider:            s.Provider,
	}
	for i, rec := range s.History {
		view.History[i] = NewHistoryItem(rec)
	}
	if s.Current != nil {
		item := NewHistoryItem(*s.Current)
		view.Current = &item
	}
	return view
}

// OutcomeView is the JSON answer of a synchronous operation.
type OutcomeView struct {
	Status studio.OutcomeStatus `json:"status"`
	Asset  *HistoryItem         `json:"asset,omitempty"`
	Text   string               `json:"text,omitempty"`
	Notice *studio.Notice       `json:"notice,omitempty"`
	State  StateView            `json:"state"`
}

// NewOutcomeView converts an outcome and attaches the state it left behind.
func NewOutcomeView(o studio.Outcome, s studio.Snapshot) OutcomeView {
	view := OutcomeView{
		Status: o.Status,
		Text:   o.Text,
		Notice: o.Notice,
		State:  NewStateView(s),
	}
	if o.Asset != nil {
		item := NewHistoryItem(*o.Asset)
		view.Asset = &item
	}
	return view
}

// TaskUpdateData reports one finished remote call.
type TaskUpdateData struct {
	TaskID   string `json:"task_id"`
	TaskType string `json:"task_type"`
	Status   string `json:"status"`
	Model    string `json:"model,omitempty"`
	AssetID  string `json:"asset_id,omitempty"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// NewTaskUpdateData converts a task record.
func NewTaskUpdateData(task metrics.TaskRecord) TaskUpdateData {
	return TaskUpdateData{
		TaskID:   task.ID,
		TaskType: task.Type,
		Status:   task.Status,
		Model:    task.Model,
		AssetID:  task.AssetID,
		Duration: task.Duration.Round(time.Millisecond).String(),
		Error:    task.ErrorMsg,
	}
}

// ErrorData is the payload of MessageTypeError.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewStateMessage wraps a snapshot for the feed.
func NewStateMessage(s studio.Snapshot) WSMessage {
	return NewWSMessage(MessageTypeState, NewStateView(s))
}

// NewInitialMessage wraps the state sent on connect.
func NewInitialMessage(s studio.Snapshot) WSMessage {
	return NewWSMessage(MessageTypeInitial, NewStateView(s))
}

// NewTaskUpdateMessage wraps a finished task.
func NewTaskUpdateMessage(task metrics.TaskRecord) WSMessage {
	return NewWSMessage(MessageTypeTaskUpdate, NewTaskUpdateData(task))
}

// NewErrorMessage wraps a server-side error.
func NewErrorMessage(code, message string) WSMessage {
	return NewWSMessage(MessageTypeError, ErrorData{Code: code, Message: message})
}
