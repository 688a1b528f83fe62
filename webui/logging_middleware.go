package webui

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lulu_studio/logging"
)

// LoggingMiddleware logs one line per HTTP request through zap. 5xx
// responses log at error, 4xx at warn, everything else at debug so a busy
// polling browser does not flood the info log.
type LoggingMiddleware struct {
	logger    *logging.Logger
	skipPaths map[string]bool
}

// LoggingMiddlewareConfig configures a LoggingMiddleware.
type LoggingMiddlewareConfig struct {
	Logger *logging.Logger
	// SkipPaths are never logged.
	SkipPaths []string
}

// DefaultLoggingMiddlewareConfig skips the health and Prometheus endpoints.
func DefaultLoggingMiddlewareConfig(logger *logging.Logger) LoggingMiddlewareConfig {
	return LoggingMiddlewareConfig{
		Logger:    logger,
		SkipPaths: []string{"/health", "/metrics"},
	}
}

// NewLoggingMiddleware returns a middleware.
func NewLoggingMiddleware(cfg LoggingMiddlewareConfig) *LoggingMiddleware {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}
	return &LoggingMiddleware{
		logger:    cfg.Logger.Named("http"),
		skipPaths: skip,
	}
}

// Handler wraps next.
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", getClientIP(r)),
			zap.Int64("bytes", wrapped.bytesWritten),
		}
		if ua := r.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}

		if ce := m.logger.Zap().Check(levelForStatus(wrapped.statusCode), "HTTP request"); ce != nil {
			ce.Write(fields...)
		}
	})
}

func levelForStatus(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.DebugLevel
	}
}

// responseWriterWrapper records the status and size of a response.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

func (w *responseWriterWrapper) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack lets the WebSocket upgrade pass through the middleware.
func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("webui: response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (w *responseWriterWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// getClientIP prefers proxy headers over the socket address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
