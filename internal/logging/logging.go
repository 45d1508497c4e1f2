// Package logging is a small leveled wrapper over the standard log
// package (spec.md/SPEC_FULL.md §4.10): timestamped, destination
// configurable, no structured-field machinery — the same style the
// teacher uses via direct log.Printf calls, just leveled and routed
// through one type so capture loops and the muxer can share it.
package logging

import (
	"io"
	"log"
	"os"
)

// Level is a diagnostic severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger wraps *log.Logger with a minimum level filter.
type Logger struct {
	out *log.Logger
	min Level
}

// New builds a Logger writing to w, flagged like the teacher's
// log.SetFlags(log.LstdFlags | log.Lshortfile) setup, dropping any
// message below min.
func New(w io.Writer, min Level) *Logger {
	return &Logger{out: log.New(w, "", log.LstdFlags|log.Lshortfile), min: min}
}

// Default builds a Logger writing to stderr at LevelInfo.
func Default() *Logger {
	return New(os.Stderr, LevelInfo)
}

// Discard builds a Logger that drops every message; used by tests and
// by callers that have not wired a real destination.
func Discard() *Logger {
	return New(io.Discard, LevelError+1)
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.min {
		return
	}
	l.out.Printf("["+level.String()+"] "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }
