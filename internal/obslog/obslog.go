// Package obslog initializes the process-wide logger, the idiomatic Go
// equivalent of the global logger set up once at boot in the teacher's
// main.go (log.SetFlags(0)). Grounded on
// richdz12-traffic-guard/internal/logger, which wraps zerolog the same way.
package obslog

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvVar is the single environment variable that governs log verbosity,
// per SPEC_FULL.md §5 / spec.md §6.
const EnvVar = "YARRP_LOG"

var global zerolog.Logger

func init() {
	global = New(os.Getenv(EnvVar))
}

// New builds a console logger at the given level name (case-insensitive;
// empty or unrecognized defaults to info).
func New(level string) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "info", "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// Global returns the process-wide logger.
func Global() *zerolog.Logger { return &global }

// SetGlobal replaces the process-wide logger, used by the CLI's main once
// it has built a logger from YARRP_LOG.
func SetGlobal(l zerolog.Logger) { global = l }
