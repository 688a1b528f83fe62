package webui

import (
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"lulu_studio/webui/static"
)

// StaticAssetHandler serves the embedded page under Prefix. Directory
// listings are never served.
type StaticAssetHandler struct {
	fs          fs.FS
	prefix      string
	indexFile   string
	cacheMaxAge int
}

// StaticAssetConfig configures a StaticAssetHandler.
type StaticAssetConfig struct {
	// Prefix is the URL prefix of the assets (default "/static").
	Prefix string
	// IndexFile is served by ServeIndex (default "index.html").
	IndexFile string
	// CacheMaxAge is the max-age in seconds for assets; 0 disables caching.
	CacheMaxAge int
}

// DefaultStaticAssetConfig caches assets for an hour.
func DefaultStaticAssetConfig() StaticAssetConfig {
	return StaticAssetConfig{
		Prefix:      "/static",
		IndexFile:   "index.html",
		CacheMaxAge: 3600,
	}
}

// NewStaticAssetHandler serves the embedded assets.
func NewStaticAssetHandler(config StaticAssetConfig) *StaticAssetHandler {
	return NewStaticAssetHandlerWithFS(static.GetFS(), config)
}

// NewStaticAssetHandlerWithFS serves fsys instead of the embedded assets.
func NewStaticAssetHandlerWithFS(fsys fs.FS, config StaticAssetConfig) *StaticAssetHandler {
	if config.Prefix == "" {
		config.Prefix = "/static"
	}
	if config.IndexFile == "" {
		config.IndexFile = "index.html"
	}
	return &StaticAssetHandler{
		fs:          fsys,
		prefix:      strings.TrimSuffix(config.Prefix, "/"),
		indexFile:   config.IndexFile,
		cacheMaxAge: config.CacheMaxAge,
	}
}

// ServeHTTP serves one asset.
func (h *StaticAssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, h.prefix)
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" || name == "." {
		http.NotFound(w, r)
		return
	}

	info, err := fs.Stat(h.fs, name)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	if h.cacheMaxAge > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", h.cacheMaxAge))
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	http.ServeFileFS(w, r, h.fs, name)
}

// ServeIndex serves the single page. The page is never cached so a new
// build is picked up on reload.
func (h *StaticAssetHandler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.fs, h.indexFile)
	if err != nil {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(data)
	}
}

// RegisterRoutes mounts the assets and the page on mux.
func (h *StaticAssetHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET "+h.prefix+"/", h)
	mux.HandleFunc("GET /{$}", h.ServeIndex)
}
