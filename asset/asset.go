// Package asset defines the immutable generated-image record and the
// catalog of aspect ratios, styles and prompt suggestions the studio offers.
package asset

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind tags what a record holds. Only images exist today; the tag lets
// older or newer histories carry entries this build does not understand.
type Kind string

// KindImage is the only recognized kind.
const KindImage Kind = "image"

// Known reports whether k is a kind this build can display.
func (k Kind) Known() bool {
	return k == KindImage
}

// UpscaledMarker is appended to the prompt of an upscaled record.
const UpscaledMarker = " (Upscaled)"

// ErrInvalidRecord is returned by NewRecord for incomplete input.
var ErrInvalidRecord = errors.New("asset: invalid record")

// Record is one generated image. Records are values: every accessor in the
// studio hands out copies and nothing mutates a record after NewRecord.
type Record struct {
	ID          string
	ImageRef    string // data URI or URL
	MimeType    string
	Prompt      string
	CreatedAt   time.Time
	AspectRatio AspectRatio
	Kind        Kind
}

// NewRecord builds an image record.
func NewRecord(id, imageRef, mimeType, prompt string, ratio AspectRatio, createdAt time.Time) (Record, error) {
	switch {
	case strings.TrimSpace(id) == "":
		return Record{}, fmt.Errorf("%w: empty id", ErrInvalidRecord)
	case strings.TrimSpace(imageRef) == "":
		return Record{}, fmt.Errorf("%w: empty image reference", ErrInvalidRecord)
	case strings.TrimSpace(prompt) == "":
		return Record{}, fmt.Errorf("%w: empty prompt", ErrInvalidRecord)
	case !ratio.Valid():
		return Record{}, fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidRecord, ratio)
	}
	return Record{
		ID:          id,
		ImageRef:    imageRef,
		MimeType:    mimeType,
		Prompt:      prompt,
		CreatedAt:   createdAt,
		AspectRatio: ratio,
		Kind:        KindImage,
	}, nil
}

// DownloadName is the file name offered when the record is saved to disk.
func (r Record) DownloadName(ext string) string {
	if ext == "" {
		ext = "png"
	}
	return fmt.Sprintf("lulu-ai-%s.%s", r.ID, strings.TrimPrefix(ext, "."))
}

// IsUpscaled reports whether the record came from an upscale.
func (r Record) IsUpscaled() bool {
	return strings.HasSuffix(r.Prompt, UpscaledMarker)
}

// UpscaledPrompt marks prompt as upscaled. The marker is never stacked:
// upscaling an upscaled record keeps a single marker.
func UpscaledPrompt(prompt string) string {
	return BasePrompt(prompt) + UpscaledMarker
}

// BasePrompt strips any upscale markers from prompt.
func BasePrompt(prompt string) string {
	for strings.HasSuffix(prompt, UpscaledMarker) {
		prompt = strings.TrimSuffix(prompt, UpscaledMarker)
	}
	return prompt
}
