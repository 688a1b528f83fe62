package shutdown

import (
	"context"
	"os"
	"path/filepath"

	"lulu_studio/core"
	"lulu_studio/logging"

	"go.uber.org/zap"
)

// UpscaleTempPattern matches the scratch files the OpenAI upscale path
// writes to the OS temp directory.
const UpscaleTempPattern = "lulu-upscale-*.png"

// CleanupTempFiles returns a cleanup that removes files in dir matching
// pattern. Individual failures are logged, never returned, so one stuck
// file cannot fail the whole shutdown.
func CleanupTempFiles(logger *logging.Logger, dir, pattern string) core.ShutdownFunc {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(ctx context.Context) error {
		removed, failed := removeMatching(ctx, logger, dir, pattern)
		if removed+failed > 0 {
			logger.Info("Removed temporary files",
				zap.String("directory", dir),
				zap.Int("removed", removed),
				zap.Int("failed", failed),
			)
		}
		return nil
	}
}

// CleanupUpscaleTemp removes leftover upscale scratch files from os.TempDir.
func CleanupUpscaleTemp(logger *logging.Logger) core.ShutdownFunc {
	return CleanupTempFiles(logger, os.TempDir(), UpscaleTempPattern)
}

func removeMatching(ctx context.Context, logger *logging.Logger, dir, pattern string) (removed, failed int) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		logger.Warn("Bad temp file pattern", zap.String("pattern", pattern), zap.Error(err))
		return 0, 0
	}
	for _, match := range matches {
		if ctx.Err() != nil {
			logger.Warn("Cleanup interrupted", zap.Int("remaining", len(matches)-removed-failed))
			return removed, failed
		}
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			failed++
			logger.Warn("Failed to remove temporary file",
				zap.String("file", filepath.Base(match)),
				zap.Error(err),
			)
			continue
		}
		removed++
	}
	return removed, failed
}
