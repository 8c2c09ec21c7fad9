// Package logging defines the structured logger interface twotier's
// components log through. The default implementation is backed by zerolog;
// callers may supply their own (a test recorder, a no-op, or another
// structured logger) by implementing Logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the minimal structured-logging surface twotier needs. Each
// level accepts a message and an even number of key/value pairs, mirroring
// zerolog's own conventions closely enough that wrapping it is a few lines.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, err error, kv ...any)
}

// Nop discards everything. Useful in tests and as a safe zero value.
type Nop struct{}

func (Nop) Debug(string, ...any)        {}
func (Nop) Info(string, ...any)         {}
func (Nop) Warn(string, ...any)         {}
func (Nop) Error(string, error, ...any) {}

// zerologLogger adapts zerolog.Logger to the Logger interface.
type zerologLogger struct {
	z zerolog.Logger
}

// New builds a zerolog-backed Logger writing JSON lines to w, tagged with
// service for every entry.
func New(w io.Writer, service string) Logger {
	if w == nil {
		w = os.Stderr
	}
	z := zerolog.New(w).With().Timestamp().Str("service", service).Logger()
	return &zerologLogger{z: z}
}

func (l *zerologLogger) Debug(msg string, kv ...any) {
	l.event(l.z.Debug(), kv).Msg(msg)
}

func (l *zerologLogger) Info(msg string, kv ...any) {
	l.event(l.z.Info(), kv).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, kv ...any) {
	l.event(l.z.Warn(), kv).Msg(msg)
}

func (l *zerologLogger) Error(msg string, err error, kv ...any) {
	e := l.z.Error()
	if err != nil {
		e = e.Err(err)
	}
	l.event(e, kv).Msg(msg)
}

// event folds a flat key/value slice into zerolog's fluent builder. An odd
// trailing key with no value is logged under "extra" rather than dropped.
func (l *zerologLogger) event(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	if len(kv)%2 == 1 {
		e = e.Interface("extra", kv[len(kv)-1])
	}
	return e
}
