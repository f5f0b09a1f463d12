// Package clog is the diagnostic log handler: one line per record on
// stderr, the level coloured.
package clog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type TextHandlerConfig struct {
	Color       bool
	Level       slog.Leveler
	ReplaceAttr func(groups []string, a slog.Attr) slog.Attr
}

type TextHandlerOption func(*TextHandlerConfig)

func WithColor(c bool) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Color = c
	}
}

func WithLevel(level slog.Leveler) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Level = level
	}
}

func WithReplaceAttr(f func(groups []string, a slog.Attr) slog.Attr) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.ReplaceAttr = f
	}
}

// TextHandler writes "<level>: <message> key=value ...".
type TextHandler struct {
	cfg    TextHandlerConfig
	groups []string
	attrs  []slog.Attr
	mu     *sync.Mutex
	w      io.Writer
}

func NewTextHandler(w io.Writer, opts ...TextHandlerOption) *TextHandler {
	cfg := TextHandlerConfig{
		Color: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TextHandler{
		cfg: cfg,
		mu:  &sync.Mutex{},
		w:   w,
	}
}

func (h *TextHandler) clone() *TextHandler {
	nh := *h
	nh.groups = append([]string(nil), h.groups...)
	nh.attrs = append([]slog.Attr(nil), h.attrs...)
	return &nh
}

func (h *TextHandler) Enabled(_ context.Context, l slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.cfg.Level != nil {
		minLevel = h.cfg.Level.Level()
	}
	return l >= minLevel
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := h.clone()
	nh.groups = append(nh.groups, name)
	return nh
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	for _, a := range attrs {
		nh.attrs = append(nh.attrs, qualify(h.groups, a))
	}
	return nh
}

func (h *TextHandler) Handle(_ context.Context, record slog.Record) error {
	var buf bytes.Buffer

	c := levelColor(record.Level)
	if h.cfg.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	buf.WriteString(c.Sprintf("%s:", strings.ToLower(record.Level.String())))
	buf.WriteByte(' ')
	buf.WriteString(record.Message)

	for _, a := range h.attrs {
		h.writeAttr(&buf, nil, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, h.groups, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("can't write log record: %w", err)
	}
	return nil
}

func (h *TextHandler) writeAttr(buf *bytes.Buffer, groups []string, a slog.Attr) {
	if h.cfg.ReplaceAttr != nil && a.Value.Kind() != slog.KindGroup {
		a = h.cfg.ReplaceAttr(groups, a)
	}
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, sub := range a.Value.Group() {
			h.writeAttr(buf, append(groups, a.Key), sub)
		}
		return
	}
	a = qualify(groups, a)
	fmt.Fprintf(buf, " %s=%s", a.Key, quote(a.Value.String()))
}

func qualify(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 {
		return a
	}
	a.Key = strings.Join(groups, ".") + "." + a.Key
	return a
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelColor(l slog.Level) *color.Color {
	switch {
	case l >= slog.LevelError:
		return color.New(color.FgRed)
	case l >= slog.LevelWarn:
		return color.New(color.FgYellow)
	case l >= slog.LevelInfo:
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgCyan)
	}
}
