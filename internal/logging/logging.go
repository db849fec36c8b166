// Package logging configures the zerolog loggers shared by the orchestrator
// and the server and worker processes it re-executes.
//
// Components log through github.com/rs/zerolog/log; Init points that logger
// at the configured destination. Processes started by the orchestrator tag
// their entries with a component so a shared log file stays readable.
package logging

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level represents log levels.
type Level = zerolog.Level

// Log levels exposed for convenience.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config holds logger configuration.
type Config struct {
	Level Level
	// Output defaults to os.Stderr.
	Output io.Writer
	// Pretty renders entries for a terminal instead of as JSON lines.
	Pretty bool
	// TimeFormat defaults to RFC3339.
	TimeFormat string
	// Component is attached to every entry when set.
	Component string
}

// DefaultConfig logs info and above to stderr for a terminal.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		Pretty:     true,
		TimeFormat: time.Kitchen,
	}
}

// FileConfig logs JSON lines to w, for the orchestrator's log file.
func FileConfig(level Level, w io.Writer) Config {
	return Config{
		Level:      level,
		Output:     w,
		TimeFormat: time.RFC3339,
	}
}

// New builds a logger from cfg without touching the globals.
func New(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	output := cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: cfg.TimeFormat}
	}

	ctx := zerolog.New(output).Level(cfg.Level).With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	return ctx.Logger()
}

// Init replaces the global logger and the zerolog/log package logger.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = cmp.Or(cfg.TimeFormat, time.RFC3339)
	Logger = New(cfg)
	log.Logger = Logger
}

// OpenFile opens path for appending log entries, creating it if needed.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// ParseLevel parses a log level string (case-insensitive).
// Supported values: DEBUG, INFO, WARN, ERROR, FATAL.
// Returns InfoLevel if the string is not recognized.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// With creates a child logger of the global logger.
func With() zerolog.Context {
	return Logger.With()
}

func init() {
	Init(DefaultConfig())
}
