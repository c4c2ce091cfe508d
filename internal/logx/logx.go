// Package logx wraps zerolog into the small logging surface the rest of
// this module depends on, so the evaluator, loader, and monitor packages
// never import zerolog directly.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger implements ftengine.DebugLogger (and the analogous interfaces
// in mmprv and monitor) on top of a zerolog.Logger.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger writing to w. An *os.File (such as os.Stderr)
// gets zerolog's human-readable console format; any other io.Writer
// gets zerolog's structured JSON encoding.
func New(w io.Writer, debug bool) *Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var output io.Writer = w
	if f, ok := w.(*os.File); ok {
		output = zerolog.ConsoleWriter{Out: f, TimeFormat: "15:04:05.000"}
	}

	zl := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Debugf logs a formatted debug-level message (the FT evaluator's
// unimplemented-opcode path uses this).
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

// Infof logs a formatted info-level message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Errorf logs a formatted error-level message alongside err, used when
// the monitor recovers from a non-fatal per-step error and continues.
func (l *Logger) Errorf(err error, format string, args ...interface{}) {
	l.zl.Error().Err(err).Msgf(format, args...)
}

// Nop returns a Logger that discards everything, for tests and
// collaborators that decline diagnostics (spec.md §7 DebugLogger is
// optional).
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}
