package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/schema"
)

type contextKey int

const (
	tabKey contextKey = iota
	windowKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithTab annotates the logger with the tab id if present.
func WithTab(ctx context.Context, tabID schema.TabID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if !tabID.Valid() {
		return log
	}
	if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
		return log
	}
	return log.With("tab", int(tabID))
}

// WithWindow annotates the logger with a window id when it refers to a window.
func WithWindow(log pslog.Logger, windowID schema.WindowID) pslog.Logger {
	if windowID.Valid() {
		log = log.With("window", int(windowID))
	}
	return log
}

// WithSession annotates the logger with a browsing session id when available.
func WithSession(log pslog.Logger, sessionID string) pslog.Logger {
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// ContextWithTab annotates the context logger with the tab id once and
// marks the context so later WithTab calls do not repeat the field.
func ContextWithTab(ctx context.Context, tabID schema.TabID) context.Context {
	if ctx == nil || !tabID.Valid() {
		return ctx
	}
	if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
		return ctx
	}
	log := WithTab(ctx, tabID)
	ctx = pslog.ContextWithLogger(ctx, log)
	return context.WithValue(ctx, tabKey, tabID)
}

// ContextWithTabLogger attaches the logger and tab marker to the context.
func ContextWithTabLogger(ctx context.Context, log pslog.Logger, tabID schema.TabID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithTab(ctx, tabID)
}

// CopyContextFields copies the tab marker from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil || dst == nil {
		return dst
	}
	if tab, ok := src.Value(tabKey).(schema.TabID); ok && tab.Valid() {
		dst = context.WithValue(dst, tabKey, tab)
	}
	return dst
}
