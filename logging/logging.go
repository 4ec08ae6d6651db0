// Package logging wires log/slog for the whole binary. Loggers obtained with L
// before Init is called follow the handler that Init installs.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Structured field keys shared across packages.
const (
	KeyComponent  = "component"
	KeyCaseID     = "caseId"
	KeyPlugin     = "plugin"
	KeyItem       = "item"
	KeyDurationMs = "durationMs"
	KeyError      = "error"
)

type contextKey struct{}

type switchableHandler struct {
	current *atomic.Value // slog.Handler
	attrs   []slog.Attr
	groups  []string
}

func (h *switchableHandler) materialize() slog.Handler {
	handler := h.current.Load().(slog.Handler)
	for _, g := range h.groups {
		handler = handler.WithGroup(g)
	}
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	return handler
}

func (h *switchableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.materialize().Enabled(ctx, level)
}

func (h *switchableHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.materialize().Handle(ctx, r)
}

func (h *switchableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &switchableHandler{current: h.current, attrs: merged, groups: append([]string(nil), h.groups...)}
}

func (h *switchableHandler) WithGroup(name string) slog.Handler {
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)
	return &switchableHandler{current: h.current, attrs: append([]slog.Attr(nil), h.attrs...), groups: groups}
}

var (
	rootHandler   = newRootHandler()
	defaultLogger = slog.New(rootHandler)
)

func newRootHandler() *switchableHandler {
	v := &atomic.Value{}
	v.Store(slog.Handler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	return &switchableHandler{current: v}
}

func init() {
	slog.SetDefault(defaultLogger)
}

// Init installs the process-wide handler.
// format: "json" or "text" (default "text")
// level: "debug", "info", "warn", "error" (default "info")
// output: nil means os.Stderr, keeping stdout free for command results.
func Init(format, level string, output io.Writer) {
	if output == nil {
		output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	rootHandler.current.Store(handler)
}

// L returns a logger tagged with the given component name.
func L(component string) *slog.Logger {
	return defaultLogger.With(slog.String(KeyComponent, component))
}

// NewContext returns a context carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return defaultLogger
	}
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// For returns ctx's logger tagged with component. Loggers stored in a context
// should carry request attributes only, not a component.
func For(ctx context.Context, component string) *slog.Logger {
	return FromContext(ctx).With(slog.String(KeyComponent, component))
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
