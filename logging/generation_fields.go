package logging

import (
	"time"

	"go.uber.org/zap"
)

// PromptPreviewLength bounds how much of a prompt is written to logs.
const PromptPreviewLength = 80

// GenerationFields describes one remote model call.
func GenerationFields(operation, model, prompt string) []zap.Field {
	return []zap.Field{
		zap.String("operation", operation),
		zap.String("model", model),
		zap.String("prompt_preview", PromptPreview(prompt)),
		zap.Int("prompt_length", len(prompt)),
	}
}

// ResultFields describes the image a remote call produced.
func ResultFields(mimeType string, size int, started time.Time) []zap.Field {
	return []zap.Field{
		zap.String("mime_type", mimeType),
		zap.Int("image_bytes", size),
		zap.Duration("duration", time.Since(started)),
	}
}

// PromptPreview shortens a prompt to PromptPreviewLength runes for logging.
func PromptPreview(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= PromptPreviewLength {
		return prompt
	}
	return string(runes[:PromptPreviewLength]) + "..."
}
