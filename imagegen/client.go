// Package imagegen talks to the remote generative models: prompt
// enhancement, image generation and 4K upscaling. Every call is a single
// stateless request/response; retries and state belong to the caller.
package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"lulu_studio/asset"
)

// Sentinel errors returned by every Client implementation.
var (
	// ErrEmptyPrompt is returned before any request is made.
	ErrEmptyPrompt = errors.New("imagegen: prompt is empty")
	// ErrEmptyEnhancement means the text model answered without usable text.
	ErrEmptyEnhancement = errors.New("imagegen: enhancement returned no text")
	// ErrNoImageReturned means the response carried no inline image.
	ErrNoImageReturned = errors.New("imagegen: no image data returned")
	// ErrElevatedAccessRequired means the upscale model refused the current
	// credential and the host can offer a credential selection.
	ErrElevatedAccessRequired = errors.New("imagegen: upscaling requires a paid API key")
	// ErrInvalidImageRef means the source image reference could not be decoded.
	ErrInvalidImageRef = errors.New("imagegen: invalid image reference")
)

// Client is the remote generation surface used by the studio.
type Client interface {
	// Enhance rewrites prompt into a richer one. It never falls back to the
	// input: an empty answer is ErrEmptyEnhancement.
	Enhance(ctx context.Context, prompt string) (string, error)
	// Generate produces one image.
	Generate(ctx context.Context, req GenerateRequest) (*Image, error)
	// Upscale re-renders an existing image at high resolution.
	Upscale(ctx context.Context, req UpscaleRequest) (*Image, error)
	// Name identifies the provider in logs and metrics.
	Name() string
	// Models returns the model used for each operation.
	Models() ModelSet
}

// ModelSet names the remote model behind each operation.
type ModelSet struct {
	Enhance  string `json:"enhance"`
	Generate string `json:"generate"`
	Upscale  string `json:"upscale"`
}

// GenerateRequest describes one image generation.
type GenerateRequest struct {
	Prompt         string
	AspectRatio    asset.AspectRatio
	Style          string // catalog style or asset.StyleNone
	NegativePrompt string
}

// UpscaleRequest describes one upscale of an existing image.
type UpscaleRequest struct {
	// ImageRef is the data URI of the source image.
	ImageRef    string
	Prompt      string
	AspectRatio asset.AspectRatio
}

// Image is the raw payload returned by a provider.
type Image struct {
	Data     []byte
	MimeType string
}

// DataURI returns the embeddable reference for the image.
func (img *Image) DataURI() string {
	return BuildDataURI(img.MimeType, img.Data)
}

func (img *Image) String() string {
	return fmt.Sprintf("%s (%d bytes)", img.mimeType(), len(img.Data))
}

func (img *Image) mimeType() string {
	if img.MimeType == "" {
		return DefaultMimeType
	}
	return img.MimeType
}

// BuildDataURI encodes data as "data:<mime>;base64,<payload>".
// An empty mime type defaults to image/png.
func BuildDataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
