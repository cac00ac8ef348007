package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kataras/golog"
)

// GologHandler is a slog.Handler that writes records through a kataras/golog
// logger. Attributes are appended to the message as key=value pairs; groups
// prefix their keys with "group.".
type GologHandler struct {
	logger *golog.Logger
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
}

var _ slog.Handler = (*GologHandler)(nil)

// NewGologHandler wraps logger. Records below level are dropped before they
// reach golog; golog's own level is opened to debug.
func NewGologHandler(logger *golog.Logger, level slog.Leveler) *GologHandler {
	if logger == nil {
		logger = golog.New()
	}
	if level == nil {
		level = slog.LevelInfo
	}
	logger.SetLevel("debug")
	return &GologHandler{logger: logger, level: level}
}

func newGologLogger(w io.Writer) *golog.Logger {
	return golog.New().SetOutput(w)
}

// Enabled implements slog.Handler.
func (h *GologHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *GologHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	h.logger.Log(gologLevel(r.Level), b.String())
	return nil
}

// WithAttrs implements slog.Handler.
func (h *GologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

// WithGroup implements slog.Handler.
func (h *GologHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.group != "" {
		clone.group = h.group + "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s=%v", key, a.Value.Any())
}

func gologLevel(l slog.Level) golog.Level {
	switch {
	case l >= slog.LevelError:
		return golog.ErrorLevel
	case l >= slog.LevelWarn:
		return golog.WarnLevel
	case l >= slog.LevelInfo:
		return golog.InfoLevel
	default:
		return golog.DebugLevel
	}
}
