package logging

import (
	"context"
	"log/slog"
	"sync"
)

// ContextProvider is a function that returns dynamic context attributes.
type ContextProvider func() []slog.Attr

// SessionContext tracks the clip and session being recorded so every log
// record can carry them. Its Attrs method is a ContextProvider.
type SessionContext struct {
	mu      sync.RWMutex
	version string
	clip    string
	id      uint
}

// NewSessionContext returns a context that reports only the version until
// Set is called.
func NewSessionContext(version string) *SessionContext {
	return &SessionContext{version: version}
}

// Set records the active clip and session ID.
func (c *SessionContext) Set(clip string, sessionID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clip = clip
	c.id = sessionID
}

// Clear drops the active session.
func (c *SessionContext) Clear() {
	c.Set("", 0)
}

// Attrs returns the version plus the clip and session ID when a session is active.
func (c *SessionContext) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	attrs := []slog.Attr{slog.String("version", c.version)}
	if c.clip != "" {
		attrs = append(attrs,
			slog.String("clip", c.clip),
			slog.Uint64("session_id", uint64(c.id)))
	}
	return attrs
}

// ContextHandler wraps another handler and injects dynamic context attributes.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler creates a handler that adds dynamic context to each record.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{
		inner:    inner,
		provider: provider,
	}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds dynamic context attributes and delegates to the inner handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		attrs := h.provider()
		r.AddAttrs(attrs...)
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler with the given attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{
		inner:    h.inner.WithAttrs(attrs),
		provider: h.provider,
	}
}

// WithGroup returns a new ContextHandler with the given group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{
		inner:    h.inner.WithGroup(name),
		provider: h.provider,
	}
}
