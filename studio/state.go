package studio

import "lulu_studio/asset"

// Phase is the rest state of the orchestrator.
type Phase string

const (
	// PhaseIdle is the state before anything has been displayed.
	PhaseIdle Phase = "idle"
	// PhaseDisplaying means the current asset is shown.
	PhaseDisplaying Phase = "displaying"
	// PhaseError means the last generation or upscale failed. The previous
	// current asset, if any, is still held.
	PhaseError Phase = "error"
)

// Busy is the single in-flight operation, if any.
type Busy string

const (
	BusyNone       Busy = ""
	BusyEnhancing  Busy = "enhancing"
	BusyGenerating Busy = "generating"
	BusyUpscaling  Busy = "upscaling"
)

// NoticeKind tags a user-visible notice.
type NoticeKind string

const (
	// NoticeError is a generic "please try again" failure.
	NoticeError NoticeKind = "error"
	// NoticeElevatedAccess asks the user to select a paid credential.
	NoticeElevatedAccess NoticeKind = "elevated_access"
)

// User-visible notice texts.
const (
	MessageGenerateFailed = "Failed to generate image. Please try again."
	MessageUpscaleFailed  = "Failed to upscale image. Please try again."
	MessageElevatedAccess = "Upscaling to 4K requires a paid API key. Please select one."
)

// Notice is an advisory message for the presentation layer.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Settings are the live inputs of the next generation.
type Settings struct {
	Prompt         string            `json:"prompt"`
	AspectRatio    asset.AspectRatio `json:"aspectRatio"`
	Style          string            `json:"style"`
	NegativePrompt string            `json:"negativePrompt"`
}

// Snapshot is a consistent view of the orchestrator state.
type Snapshot struct {
	Version uint64 `json:"version"`
	Phase   Phase  `json:"phase"`
	Busy    Busy   `json:"busy"`
	// Generating covers both generation and upscaling, which share one
	// loading indicator.
	Generating bool `json:"generating"`
	Enhancing  bool `json:"enhancing"`

	Current  *asset.Record  `json:"current,omitempty"`
	History  []asset.Record `json:"history"`
	Settings Settings       `json:"settings"`
	Notice   *Notice        `json:"notice,omitempty"`

	// CredentialSelection reports whether a credential can be selected
	// in response to an elevated-access notice.
	CredentialSelection bool   `json:"credentialSelection"`
	Provider            string `json:"provider"`
}

// OutcomeStatus is how an operation ended.
type OutcomeStatus string

const (
	// OutcomeIgnored means a guard rejected the call; nothing changed.
	OutcomeIgnored OutcomeStatus = "ignored"
	// OutcomeSucceeded means the operation completed.
	OutcomeSucceeded OutcomeStatus = "succeeded"
	// OutcomeFailed means the remote call failed. Enhancement failures
	// carry no notice.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeElevatedAccess means an upscale needs a paid credential.
	OutcomeElevatedAccess OutcomeStatus = "elevated_access"
)

// Outcome reports the result of an operation. Failures never surface as
// errors; they are outcomes with an optional notice.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Asset  *asset.Record `json:"asset,omitempty"`
	// Text is the enhanced prompt of a successful Enhance.
	Text   string  `json:"text,omitempty"`
	Notice *Notice `json:"notice,omitempty"`
	// Err is the underlying failure, for logs and CLI output.
	Err error `json:"-"`
}

func ignored() Outcome { return Outcome{Status: OutcomeIgnored} }
