package imagegen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"lulu_studio/asset"
	"lulu_studio/core"
	"lulu_studio/logging"
)

// maxRemoteImageBytes bounds an image fetched from a URL reference.
const maxRemoteImageBytes = 64 << 20

// Exporter saves history records to disk as lulu-ai-<id>.<ext>.
//
// Records normally hold data URIs; URL references (older histories or
// hosted providers) are fetched over HTTP.
//
// Thread Safety: Exporter is safe for concurrent use.
type Exporter struct {
	client       *http.Client
	downloadsDir string
	logger       *logging.Logger
}

// ExporterConfig holds configuration for the Exporter.
type ExporterConfig struct {
	// HTTPClient fetches URL references (optional)
	HTTPClient *http.Client

	// DownloadsDir receives exported files
	// Default: "downloads"
	DownloadsDir string

	Logger *logging.Logger
}

// NewExporter creates an exporter using the configured downloads directory
// and HTTP settings.
func NewExporter(cfg *core.Config, logger *logging.Logger) (*Exporter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	return NewExporterWithConfig(ExporterConfig{
		HTTPClient:   core.GetDefaultHTTPClient(cfg),
		DownloadsDir: cfg.DownloadsDir,
		Logger:       logger,
	})
}

// NewExporterWithConfig creates an exporter with explicit configuration.
// The downloads directory is created on first export.
func NewExporterWithConfig(cfg ExporterConfig) (*Exporter, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	downloadsDir := cfg.DownloadsDir
	if downloadsDir == "" {
		downloadsDir = "downloads"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Exporter{
		client:       httpClient,
		downloadsDir: downloadsDir,
		logger:       logger.Named("exporter"),
	}, nil
}

// ExportResult describes an exported file.
type ExportResult struct {
	// Path is the local file path
	Path string

	// Size is the file size in bytes
	Size int64

	// MimeType of the written image
	MimeType string

	// Info is the decoded header, when the format is recognized
	Info *ImageInfo
}

// DownloadsDir returns the directory exports are written to.
func (e *Exporter) DownloadsDir() string {
	return e.downloadsDir
}

// Export writes rec's image into the downloads directory.
func (e *Exporter) Export(ctx context.Context, rec asset.Record) (*ExportResult, error) {
	return e.ExportTo(ctx, rec, e.downloadsDir)
}

// ExportTo writes rec's image into dir.
func (e *Exporter) ExportTo(ctx context.Context, rec asset.Record, dir string) (*ExportResult, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("imagegen: record id cannot be empty")
	}
	mimeType, data, err := e.ImageBytes(ctx, rec.ImageRef)
	if err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = rec.MimeType
	}

	if err := core.EnsureDirectory(dir); err != nil {
		return nil, fmt.Errorf("imagegen: failed to create downloads directory: %w", err)
	}
	fullPath := filepath.Join(dir, sanitizeFilename(rec.DownloadName(ExtensionForMime(mimeType))))
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("imagegen: failed to write image file: %w", err)
	}

	result := &ExportResult{Path: fullPath, Size: int64(len(data)), MimeType: mimeType}
	if info, err := ProbeImage(data); err == nil {
		result.Info = info
	}

	fields := []zap.Field{
		zap.String("asset_id", rec.ID),
		zap.String("path", fullPath),
		zap.String("size", core.FormatBytes(result.Size)),
	}
	if result.Info != nil {
		fields = append(fields, zap.Int("width", result.Info.Width), zap.Int("height", result.Info.Height))
	}
	e.logger.Info("image exported", fields...)
	return result, nil
}

// ImageBytes resolves an image reference to its mime type and bytes.
// Data URIs are decoded in place; http(s) references are fetched.
func (e *Exporter) ImageBytes(ctx context.Context, ref string) (string, []byte, error) {
	switch {
	case ref == "":
		return "", nil, fmt.Errorf("%w: empty", ErrInvalidImageRef)
	case strings.HasPrefix(ref, "data:"):
		return ParseDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return e.fetch(ctx, ref)
	default:
		return "", nil, fmt.Errorf("%w: unsupported reference", ErrInvalidImageRef)
	}
}

func (e *Exporter) fetch(ctx context.Context, url string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("imagegen: failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", core.UserAgent())

	resp, err := e.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("imagegen: failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("imagegen: download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteImageBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("imagegen: failed to read image data: %w", err)
	}
	if len(data) > maxRemoteImageBytes {
		return "", nil, fmt.Errorf("imagegen: image exceeds %s", core.FormatBytes(maxRemoteImageBytes))
	}

	mimeType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	return mimeType, data, nil
}

// sanitizeFilename removes or replaces characters that are unsafe for filenames.
func sanitizeFilename(filename string) string {
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "\n", "\r", "\t"}
	result := filename
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}
	if len(result) > 200 {
		result = result[:200]
	}
	if result == "" {
		result = "image"
	}
	return result
}
