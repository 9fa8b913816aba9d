// Package logger builds the process-wide structured logger. Diagnostics go
// to stderr so they never interleave with the sampler's table on stdout.
package logger

import (
	"io"

	"github.com/phuslu/log"
)

// ParseLevel converts a config level string to a log.Level, defaulting to
// Info on unknown input.
func ParseLevel(s string) log.Level {
	switch s {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "info", "":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// New returns a console logger at the given level writing to w.
func New(level log.Level, w io.Writer) *log.Logger {
	return &log.Logger{
		Level:      level,
		TimeFormat: "15:04:05.000",
		Writer: &log.ConsoleWriter{
			Writer:         w,
			EndWithMessage: true,
		},
	}
}
