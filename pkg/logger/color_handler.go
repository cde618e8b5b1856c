package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
)

// ColorHandler is a minimal slog.Handler that colors output by level:
// errors red, warnings yellow, and ingestion milestones ("ingested",
// "index") green so batch loads are easy to scan.
type ColorHandler struct {
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
	mu    sync.Mutex
}

// NewColorHandler creates a colored handler writing directly to w.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	level := slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level.Level()
	}
	return &ColorHandler{w: w, level: level}
}

// Enabled implements slog.Handler.
func (h *ColorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler.
func (h *ColorHandler) Handle(ctx context.Context, r slog.Record) error {
	var line strings.Builder
	line.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	line.WriteString(" ")
	line.WriteString(r.Level.String())
	line.WriteString(" ")

	if color := messageColor(r); color != "" {
		line.WriteString(color)
		line.WriteString(r.Message)
		line.WriteString(colorReset)
	} else {
		line.WriteString(r.Message)
	}

	writeAttr := func(a slog.Attr) {
		fmt.Fprintf(&line, " %s=%s", a.Key, a.Value.String())
	}
	for _, attr := range h.attrs {
		writeAttr(attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})
	line.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line.String())
	return err
}

// WithAttrs implements slog.Handler.
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &ColorHandler{w: h.w, level: h.level, attrs: merged}
}

// WithGroup implements slog.Handler. Groups are not rendered by this
// handler; attributes keep their plain keys.
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	return h
}

func messageColor(r slog.Record) string {
	switch r.Level {
	case slog.LevelError:
		return colorRed
	case slog.LevelWarn:
		return colorYellow
	case slog.LevelInfo:
		msg := strings.ToLower(r.Message)
		if strings.Contains(msg, "ingested") || strings.Contains(msg, "index") {
			return colorGreen
		}
	}
	return ""
}
