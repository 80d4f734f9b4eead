// Package logx provides the structured JSON logger used by every process
// in this repo (find, do, serve). Every entry carries a "type" classifier
// and a "value" payload, mirroring the log(entry_type, entry_value) helper
// the tag-scheduling design this system descends from has always used;
// the difference here is a real leveled, structured sink instead of the
// stdlib logging module.
package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger with the type/value entry shape this
// system's log consumers expect.
type Logger struct {
	zl zerolog.Logger
}

// New builds a console-JSON logger at the given level. levelName is one of
// DEBUG, INFO, WARNING, ERROR, CRITICAL (case-insensitive); unrecognized
// values fall back to INFO.
func New(levelName string, out io.Writer) Logger {
	if out == nil {
		out = os.Stdout
	}
	zerolog.TimestampFieldName = "ts"
	zl := zerolog.New(out).Level(parseLevel(levelName)).With().Timestamp().Logger()
	return Logger{zl: zl}
}

func parseLevel(name string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "CRITICAL", "FATAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// With returns a derived Logger carrying an additional fixed field, the
// way a per-cycle or per-worker logger is built from a base logger.
func (l Logger) With(key, value string) Logger {
	return Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Entry emits one structured log line: {"type": entryType, "value": value, ...}.
func (l Logger) Entry(level zerolog.Level, entryType string, value any) {
	l.zl.WithLevel(level).Str("type", entryType).Interface("value", value).Send()
}

func (l Logger) Debug(entryType string, value any)    { l.Entry(zerolog.DebugLevel, entryType, value) }
func (l Logger) Info(entryType string, value any)     { l.Entry(zerolog.InfoLevel, entryType, value) }
func (l Logger) Warning(entryType string, value any)  { l.Entry(zerolog.WarnLevel, entryType, value) }
func (l Logger) Error(entryType string, value any)    { l.Entry(zerolog.ErrorLevel, entryType, value) }
func (l Logger) Critical(entryType string, value any) { l.Entry(zerolog.FatalLevel, entryType, value) }

// Nop returns a logger that discards everything; useful in tests.
func Nop() Logger {
	return Logger{zl: zerolog.Nop()}
}
