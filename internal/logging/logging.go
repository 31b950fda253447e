// Package logging is the structured logging facade used across symdex.
//
// Call sites log through package-level functions with a context and a Fields
// map. The context may carry a scan ID (WithScanID) which is attached to every
// line logged under it.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

// Fields are structured key/value pairs attached to a log line.
type Fields map[string]any

// Logger is the logging contract. The default implementation writes through
// log/slog.
type Logger interface {
	Debug(ctx context.Context, msg string, fields Fields)
	Info(ctx context.Context, msg string, fields Fields)
	Warn(ctx context.Context, msg string, fields Fields)
	Error(ctx context.Context, msg string, fields Fields)
	ErrorWithError(ctx context.Context, err error, msg string, fields Fields)
	WithComponent(component string) Logger
}

// Config selects level and format. Output defaults to stderr so that JSON
// results written to stdout stay clean.
type Config struct {
	Level  string // debug | info | warn | error
	Format string // json | text
	Output io.Writer
}

// New builds a Logger from cfg.
func New(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		h = slog.NewTextHandler(out, opts)
	case "json":
		h = slog.NewJSONHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return &slogLogger{l: slog.New(h)}, nil
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) log(ctx context.Context, level slog.Level, msg string, fields Fields) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.LogAttrs(ctx, level, msg, attrs(ctx, fields)...)
}

func (s *slogLogger) Debug(ctx context.Context, msg string, fields Fields) {
	s.log(ctx, slog.LevelDebug, msg, fields)
}

func (s *slogLogger) Info(ctx context.Context, msg string, fields Fields) {
	s.log(ctx, slog.LevelInfo, msg, fields)
}

func (s *slogLogger) Warn(ctx context.Context, msg string, fields Fields) {
	s.log(ctx, slog.LevelWarn, msg, fields)
}

func (s *slogLogger) Error(ctx context.Context, msg string, fields Fields) {
	s.log(ctx, slog.LevelError, msg, fields)
}

func (s *slogLogger) ErrorWithError(ctx context.Context, err error, msg string, fields Fields) {
	f := make(Fields, len(fields)+1)
	for k, v := range fields {
		f[k] = v
	}
	if err != nil {
		f["error"] = err.Error()
	}
	s.log(ctx, slog.LevelError, msg, f)
}

func (s *slogLogger) WithComponent(component string) Logger {
	return &slogLogger{l: s.l.With(slog.String("component", component))}
}

// attrs orders fields by key so output is stable.
func attrs(ctx context.Context, fields Fields) []slog.Attr {
	out := make([]slog.Attr, 0, len(fields)+1)
	if id := ScanID(ctx); id != "" {
		out = append(out, slog.String("scan_id", id))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, slog.Any(k, fields[k]))
	}
	return out
}

type scanIDKey struct{}

// WithScanID returns a context whose log lines carry id.
func WithScanID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scanIDKey{}, id)
}

// ScanID returns the scan ID carried by ctx, or "".
func ScanID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(scanIDKey{}).(string)
	return id
}

var (
	mu      sync.RWMutex
	current Logger = &slogLogger{l: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))}
)

// SetLogger replaces the process-wide logger. Tests use it to capture output.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// Get returns the process-wide logger.
func Get() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Debug logs at debug level.
func Debug(ctx context.Context, msg string, fields Fields) { Get().Debug(ctx, msg, fields) }

// Info logs at info level.
func Info(ctx context.Context, msg string, fields Fields) { Get().Info(ctx, msg, fields) }

// Warn logs at warn level.
func Warn(ctx context.Context, msg string, fields Fields) { Get().Warn(ctx, msg, fields) }

// Error logs at error level.
func Error(ctx context.Context, msg string, fields Fields) { Get().Error(ctx, msg, fields) }

// ErrorWithError logs err under the "error" key.
func ErrorWithError(ctx context.Context, err error, msg string, fields Fields) {
	Get().ErrorWithError(ctx, err, msg, fields)
}

// WithComponent returns the process-wide logger tagged with a component name.
func WithComponent(component string) Logger { return Get().WithComponent(component) }
