// Package logging configures the process logger and prepares record text
// for log lines.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// LevelEnv names the environment variable that overrides logging.level.
const LevelEnv = "CEF_RELAY_LOG_LEVEL"

// PreviewLength is the number of bytes of a record kept in log lines.
const PreviewLength = 100

// Config holds logger settings.
type Config struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	// Format is json or text.
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// DefaultConfig returns JSON output at info level.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New builds a logger writing to w at cfg.Level.
func New(w io.Writer, cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return slog.New(handler), nil
}

// Preview returns the first PreviewLength bytes of s, cut on a rune
// boundary, with secrets masked.
func Preview(s string) string {
	if len(s) > PreviewLength {
		cut := PreviewLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return MaskSensitivePatterns(s)
}
