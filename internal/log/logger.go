/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log wraps slog behind a small configuration surface. Console output
// uses a compact one-line text handler; an optional rotating JSON file sink
// can run alongside it. Every record carries the app name and version so
// crash bundles and support logs are self-describing.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"goflowwriter/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization. Environment equivalents:
//   - GFW_LOG_LEVEL=debug|info|warn|error
//   - GFW_LOG_FORMAT=console|json
//   - GFW_LOG_FILE=<path> (enables rotated file logging)
//   - GFW_LOG_SOURCE=true|false
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string // optional path for a rotated JSON log file
}

var (
	defaultMu sync.RWMutex
	defaultL  *slog.Logger
)

// L returns the process-wide logger, initializing from env on first use.
func L() *slog.Logger {
	defaultMu.RLock()
	l := defaultL
	defaultMu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	defaultMu.RLock()
	l = defaultL
	defaultMu.RUnlock()
	return l
}

// Init configures the global logger and installs it as slog.Default.
func Init(opts Options) {
	lvl := parseLevel(opts.Level)

	var sinks []slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		sinks = append(sinks, slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}))
	} else {
		sinks = append(sinks, &prettyTextHandler{opts: prettyOpts{Level: lvl, AddSource: opts.AddSource}, w: os.Stderr})
	}
	if strings.TrimSpace(opts.File) != "" {
		rot := &lj.Logger{Filename: opts.File, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		sinks = append(sinks, slog.NewJSONHandler(rot, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}))
	}

	h := sinks[0]
	if len(sinks) > 1 {
		h = &fanout{hs: sinks}
	}

	logger := slog.New(h).With(
		slog.String("app", "goflowwriter"),
		slog.String("ver", version.Version),
		slog.Time("ts_init", time.Now()),
	)

	defaultMu.Lock()
	defaultL = logger
	defaultMu.Unlock()
	slog.SetDefault(logger)
}

// FromEnv builds Options from GFW_LOG_* environment variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("GFW_LOG_LEVEL", "info"),
		Format:    getenv("GFW_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("GFW_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("GFW_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

func parseLevel(s string) slog.Leveler {
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

// fanout duplicates records to every sink; the first sink error wins.
type fanout struct{ hs []slog.Handler }

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.hs {
		if err := h.Handle(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		hs[i] = h.WithAttrs(attrs)
	}
	return &fanout{hs: hs}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		hs[i] = h.WithGroup(name)
	}
	return &fanout{hs: hs}
}

// prettyTextHandler prints one human-readable line per record:
// ts level msg key=val ... with group names joined into key prefixes.
type prettyTextHandler struct {
	opts   prettyOpts
	w      io.Writer
	attrs  []slog.Attr
	groups []string
}

type prettyOpts struct {
	Level     slog.Leveler
	AddSource bool
}

func (h *prettyTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level()
}

func (h *prettyTextHandler) level() slog.Level {
	switch v := h.opts.Level.(type) {
	case slog.Level:
		return v
	case *slog.LevelVar:
		return v.Level()
	default:
		return slog.LevelInfo
	}
}

func (h *prettyTextHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.Grow(256)
	b.WriteString(time.Now().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(levelTag(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	emit := func(a slog.Attr) {
		b.WriteByte(' ')
		b.WriteString(prefix)
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(attrValueString(a.Value))
	}
	for _, a := range h.attrs {
		emit(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		emit(a)
		return true
	})

	if h.opts.AddSource {
		// Record.Source() exists only on newer Go versions.
		if rs, ok := any(r).(interface{ Source() *slog.Source }); ok {
			if src := rs.Source(); src != nil {
				b.WriteString(" src=")
				b.WriteString(src.File)
				b.WriteByte(':')
				b.WriteString(strconv.Itoa(src.Line))
			}
		}
	}
	b.WriteByte('\n')
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	na := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	na = append(na, h.attrs...)
	na = append(na, attrs...)
	return &prettyTextHandler{opts: h.opts, w: h.w, attrs: na, groups: append([]string(nil), h.groups...)}
}

func (h *prettyTextHandler) WithGroup(name string) slog.Handler {
	ng := append(append([]string(nil), h.groups...), name)
	return &prettyTextHandler{opts: h.opts, w: h.w, attrs: append([]slog.Attr(nil), h.attrs...), groups: ng}
}

func levelTag(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "DBG"
	case slog.LevelInfo:
		return "INF"
	case slog.LevelWarn:
		return "WRN"
	case slog.LevelError:
		return "ERR"
	default:
		return l.String()
	}
}

func attrValueString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindFloat64:
		return strings.TrimRight(strings.TrimRight(strconv.FormatFloat(v.Float64(), 'f', -1, 64), "0"), ".")
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	default:
		return v.String()
	}
}
