package core

import (
	"context"
)

// ShutdownFunc is the function signature for cleanup handlers during graceful shutdown.
// The context may carry a deadline; implementations should honor it and be safe to call twice.
type ShutdownFunc func(ctx context.Context) error
