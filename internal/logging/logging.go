// Package logging configures the process-wide zerolog logger. Logs always
// go to stderr so stdout stays machine readable.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// EnvLevel overrides the configured level when set.
const EnvLevel = "RELAY_LOG_LEVEL"

// Init builds the relay logger, installs it as the zerolog global and
// returns it. Human-readable console output is used when stderr is a
// terminal, JSON lines otherwise.
func Init(level zerolog.Level) zerolog.Logger {
	console := term.IsTerminal(int(os.Stderr.Fd()))
	logger := New(os.Stderr, level, console)
	log.Logger = logger
	return logger
}

// New returns a logger writing to w at level.
func New(w io.Writer, level zerolog.Level, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("app", "relay").Logger()
}

// ResolveLevel picks the effective level: an explicit flag value first,
// then RELAY_LOG_LEVEL, then the configured value, then info.
func ResolveLevel(flag, configured string) zerolog.Level {
	for _, raw := range []string{flag, os.Getenv(EnvLevel), configured} {
		if lvl, ok := ParseLevel(raw); ok {
			return lvl
		}
	}
	return zerolog.InfoLevel
}

// ParseLevel maps a level name to a zerolog level. It reports false for
// empty or unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "off", "none", "disabled":
		return zerolog.Disabled, true
	}
	return zerolog.InfoLevel, false
}
