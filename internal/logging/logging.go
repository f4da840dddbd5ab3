// Package logging provides the component-scoped structured logger used
// throughout pterminal. It is a thin layer over charmbracelet/log that keeps
// one shared level for a logger and everything derived from it, so a level
// change from configuration reload reaches every component at once.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	clog "github.com/charmbracelet/log"
)

// Level represents the severity level of a log message.
type Level int32

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
	// levelOff disables output.
	levelOff
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "off"
	}
}

// ParseLevel parses a level name. Unknown names yield LevelInfo and false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// Config configures a logger.
type Config struct {
	// Level is the minimum level written.
	Level Level
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Prefix is printed before every message.
	Prefix string
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
		Prefix: "pterminal",
	}
}

// Logger is a leveled key/value logger. Loggers derived with WithComponent
// or WithField share their parent's level.
type Logger struct {
	base  *clog.Logger
	level *atomic.Int32
}

// New creates a logger from cfg.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	base := clog.NewWithOptions(cfg.Output, clog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          cfg.Prefix,
		Level:           clog.DebugLevel,
	})
	l := &Logger{base: base, level: new(atomic.Int32)}
	l.level.Store(int32(cfg.Level))
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l := New(Config{Output: io.Discard})
	l.level.Store(int32(levelOff))
	return l
}

// WithField returns a logger that adds key=value to every entry.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{base: l.base.With(key, value), level: l.level}
}

// WithFields returns a logger that adds the given fields to every entry.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &Logger{base: l.base.With(kv...), level: l.level}
}

// WithComponent returns a logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// SetLevel sets the minimum level for this logger and every logger derived
// from the same root.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level Level) bool {
	return level >= Level(l.level.Load())
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, keyvals ...any) {
	if l.Enabled(LevelDebug) {
		l.base.Debug(msg, keyvals...)
	}
}

// Info logs an info message.
func (l *Logger) Info(msg string, keyvals ...any) {
	if l.Enabled(LevelInfo) {
		l.base.Info(msg, keyvals...)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, keyvals ...any) {
	if l.Enabled(LevelWarn) {
		l.base.Warn(msg, keyvals...)
	}
}

// Error logs an error message.
func (l *Logger) Error(msg string, keyvals ...any) {
	if l.Enabled(LevelError) {
		l.base.Error(msg, keyvals...)
	}
}

// default logger
var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

// Default returns the process-wide logger, creating one on first use.
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(DefaultConfig())
	}
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}
