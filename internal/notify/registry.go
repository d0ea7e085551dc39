// internal/notify/registry.go
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/user/auticonnect/internal/types"
)

// Handler delivers an alert through one notification channel.
type Handler func(ctx context.Context, alert *types.AlertRecord) error

// Registry routes alerts to notification channels in registration order.
// The first channel that accepts the alert wins; later channels are
// fallbacks. It implements types.Notifier.
type Registry struct {
	mu       sync.RWMutex
	names    []string
	handlers map[string]Handler
}

// NewRegistry creates an empty notification registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a named channel. Channels are tried in registration order.
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; !ok {
		r.names = append(r.names, name)
	}
	r.handlers[name] = handler
}

// Deliver hands the alert to the first channel that accepts it. Failures of
// earlier channels are logged and the next channel is tried; if every
// channel fails, the joined errors are returned.
func (r *Registry) Deliver(ctx context.Context, alert *types.AlertRecord) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.names) == 0 {
		return fmt.Errorf("no notification channels registered")
	}

	var errs []error
	for _, name := range r.names {
		if err := r.handlers[name](ctx, alert); err != nil {
			slog.Warn("notification channel failed",
				"channel", name, "alert_id", string(alert.ID), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		return nil
	}
	return errors.Join(errs...)
}
