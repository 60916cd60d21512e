// Package log provides structured, leveled logging in the
// key-value call style used throughout the codebase:
// log.Info("message", "key", value, "key2", value2).
package log

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.RWMutex
	logger = newDefaultLogger()
)

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SetDefault installs l as the process-wide logger. Used once at startup
// by cmd/shardvalidator after parsing the log configuration; nothing else
// in the tree should reach for a package-level logger replacement.
func SetDefault(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func current() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// fields turns the alternating key/value ctx pairs every call site passes
// into logrus.Fields, matching the rest of the corpus's WithFields idiom
// while keeping call sites as plain variadic arguments.
func fields(ctx []any) logrus.Fields {
	f := make(logrus.Fields, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		key, ok := ctx[i].(string)
		if !ok {
			key = fmt.Sprint(ctx[i])
		}
		f[key] = ctx[i+1]
	}
	return f
}

// Debug logs at debug level.
func Debug(msg string, ctx ...any) { current().WithFields(fields(ctx)).Debug(msg) }

// Info logs at info level.
func Info(msg string, ctx ...any) { current().WithFields(fields(ctx)).Info(msg) }

// Warn logs at warn level.
func Warn(msg string, ctx ...any) { current().WithFields(fields(ctx)).Warn(msg) }

// Error logs at error level.
func Error(msg string, ctx ...any) { current().WithFields(fields(ctx)).Error(msg) }

// Crit logs at error level and terminates the process. Reserved for
// startup failures the manager cannot recover from (FatalManager errors).
func Crit(msg string, ctx ...any) {
	current().WithFields(fields(ctx)).Error(msg)
	os.Exit(1)
}

// New returns a child logger with ctx bound to every subsequent call,
// mirroring the teacher's log.New(ctx...) contextual-logger idiom.
func New(ctx ...any) *Logger {
	return &Logger{entry: current().WithFields(fields(ctx))}
}

// Logger is a contextual logger bound to a fixed key-value prefix.
type Logger struct {
	entry *logrus.Entry
}

func (l *Logger) Debug(msg string, ctx ...any) { l.entry.WithFields(fields(ctx)).Debug(msg) }
func (l *Logger) Info(msg string, ctx ...any)  { l.entry.WithFields(fields(ctx)).Info(msg) }
func (l *Logger) Warn(msg string, ctx ...any)  { l.entry.WithFields(fields(ctx)).Warn(msg) }
func (l *Logger) Error(msg string, ctx ...any) { l.entry.WithFields(fields(ctx)).Error(msg) }

// FileHandler builds a logrus.Logger writing to path at level, for the
// optional log configuration file source (spec §6 configuration sources).
// The returned file is owned by the caller, which should close it at
// shutdown.
func FileHandler(path string, level logrus.Level) (*logrus.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("log: open %s: %w", path, err)
	}
	l := logrus.New()
	l.SetOutput(f)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l, f, nil
}
