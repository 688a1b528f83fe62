package imagegen

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"lulu_studio/asset"
)

// DefaultMimeType is assumed when a provider omits the image type.
const DefaultMimeType = "image/png"

// UpscaleImageSize is the resolution requested from the upscale model.
const UpscaleImageSize = "4K"

// entityNotFoundMessage is how the upscale endpoint rejects a free-tier key.
const entityNotFoundMessage = "requested entity was not found"

var upscalePrefixPattern = regexp.MustCompile(`^data:image/(png|jpeg|webp);base64,`)

// ComposePrompt builds the generation prompt:
//
//	"<style> style. <prompt> Exclude: <negative>"
//
// The style prefix is skipped for asset.StyleNone or an empty style and the
// exclusion clause is skipped when negative is blank.
func ComposePrompt(prompt, style, negative string) string {
	var b strings.Builder
	if style = strings.TrimSpace(style); style != "" && style != asset.StyleNone {
		b.WriteString(style)
		b.WriteString(" style. ")
	}
	b.WriteString(strings.TrimSpace(prompt))
	if negative = strings.TrimSpace(negative); negative != "" {
		b.WriteString(" Exclude: ")
		b.WriteString(negative)
	}
	return strings.TrimSpace(b.String())
}

// EnhanceInstruction wraps prompt in the rewording instruction sent to the text model.
func EnhanceInstruction(prompt string) string {
	return "Reword the following image prompt to be highly detailed, artistic, and suitable for a " +
		"high-quality AI image generator. Add keywords for lighting, texture, and composition. " +
		"Keep it under 50 words. Original Prompt: \"" + prompt + "\""
}

// UpscaleInstruction is the text part sent alongside the source image.
func UpscaleInstruction(prompt string) string {
	return strings.TrimSpace("Upscale this image to 4K resolution. Enhance details, sharpen focus, and " +
		"improve textures while maintaining the original composition and style. " + prompt)
}

// StripDataURIPrefix removes a "data:image/(png|jpeg|webp);base64," envelope.
// Other strings are returned unchanged.
func StripDataURIPrefix(ref string) string {
	return upscalePrefixPattern.ReplaceAllString(ref, "")
}

// ParseDataURI splits a base64 data URI into mime type and bytes.
func ParseDataURI(ref string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: not a data URI", ErrInvalidImageRef)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload", ErrInvalidImageRef)
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: only base64 data URIs are supported", ErrInvalidImageRef)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidImageRef, err)
	}
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	return mimeType, data, nil
}

// upscaleSource extracts the bytes sent to the upscale model. The source is
// always declared as PNG to the remote side, whatever the envelope says.
func upscaleSource(ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidImageRef)
	}
	data, err := base64.StdEncoding.DecodeString(StripDataURIPrefix(ref))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageRef, err)
	}
	return data, nil
}

// IsEntityNotFound reports whether err is the upscale endpoint's
// "Requested entity was not found" rejection.
func IsEntityNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), entityNotFoundMessage)
}

// IsAzureEndpoint reports whether endpoint is an Azure OpenAI resource.
func IsAzureEndpoint(endpoint string) bool {
	lower := strings.ToLower(endpoint)
	return strings.Contains(lower, "openai.azure.com") ||
		strings.Contains(lower, "cognitiveservices.azure.com")
}

// OpenAISize maps an aspect ratio onto the closest size the OpenAI image API accepts.
func OpenAISize(ratio asset.AspectRatio) string {
	switch ratio {
	case asset.AspectWide, asset.AspectLandscape:
		return "1536x1024"
	case asset.AspectTall, asset.AspectPortrait:
		return "1024x1536"
	default:
		return "1024x1024"
	}
}

// ExtensionForMime returns the file extension (with dot) for an image mime type.
func ExtensionForMime(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0])) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
