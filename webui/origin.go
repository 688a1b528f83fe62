package webui

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"lulu_studio/logging"
)

// sameOrigin reports whether the request's Origin header, when present,
// names the host the request was sent to. Requests without an Origin
// (curl, the CLI, same-origin GETs) pass.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// OriginGuard rejects API and WebSocket requests whose Origin is another site.
type OriginGuard struct {
	logger   *logging.Logger
	prefixes []string
}

// NewOriginGuard guards every path that starts with one of prefixes.
func NewOriginGuard(logger *logging.Logger, prefixes ...string) *OriginGuard {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &OriginGuard{logger: logger.Named("origin"), prefixes: prefixes}
}

func (g *OriginGuard) guards(path string) bool {
	for _, p := range g.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Handler wraps next.
func (g *OriginGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.guards(r.URL.Path) && !sameOrigin(r) {
			g.logger.Warn("Rejected cross-origin request",
				zap.String("origin", r.Header.Get("Origin")),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			writeError(w, http.StatusForbidden, "cross-origin request rejected")
			return
		}
		next.ServeHTTP(w, r)
	})
}
