// Package util provides low-level helpers shared by all other packages.
package util

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger writes levelled messages to stderr with optional timestamps
// and level prefixes.  Records are rendered by a zerolog console
// writer.
type Logger struct {
	level      LogLevel
	mu         sync.Mutex
	output     io.Writer
	timestamps bool // if true, prepend wall-clock timestamps
	zl         zerolog.Logger
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level:      LogLevel(verbosity),
		output:     os.Stderr,
		timestamps: verbosity >= 3, // auto-enable timestamps in debug mode
	}
	l.rebuild()
	return l
}

// Discard returns a Logger that drops everything, errors included.
func Discard() *Logger {
	l := NewLogger(0)
	l.SetOutput(io.Discard)
	return l
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = on
	l.rebuild()
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	l.rebuild()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	l.get().Info().Msgf(format, args...)
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	l.get().Warn().Msgf(format, args...)
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.get().Debug().Msgf(format, args...)
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	l.get().Trace().Msgf(format, args...)
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.get().Error().Msgf(format, args...)
}

func (l *Logger) get() *zerolog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	zl := l.zl
	return &zl
}

// rebuild must be called with l.mu held (or before l is shared).
func (l *Logger) rebuild() {
	cw := zerolog.ConsoleWriter{
		Out:         zerolog.SyncWriter(l.output),
		NoColor:     true,
		TimeFormat:  "15:04:05.000",
		FormatLevel: formatLevel,
	}
	if !l.timestamps {
		cw.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	ctx := zerolog.New(cw).Level(zerologLevel(l.level)).With()
	if l.timestamps {
		ctx = ctx.Timestamp()
	}
	l.zl = ctx.Logger()
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch {
	case level <= LogQuiet:
		return zerolog.ErrorLevel
	case level == LogNormal:
		return zerolog.InfoLevel
	case level == LogVerbose:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

func formatLevel(i interface{}) string {
	s, _ := i.(string)
	switch s {
	case zerolog.LevelTraceValue:
		return "[DBG]"
	case zerolog.LevelDebugValue:
		return "[VRB]"
	case zerolog.LevelInfoValue:
		return "[INF]"
	case zerolog.LevelWarnValue:
		return "[WRN]"
	case zerolog.LevelErrorValue:
		return "[ERR]"
	default:
		return "[???]"
	}
}
