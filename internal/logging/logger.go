package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates the service's JSON logger on stdout. Every record carries the
// application name.
func New(level, app string) *slog.Logger {
	return NewWithWriter(os.Stdout, level).With(slog.String("app", app))
}

// NewWithWriter builds a JSON logger on w at the parsed level.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps LOG_LEVEL values onto slog levels. Unknown values fall back
// to info; "warning" is accepted as an alias of warn.
func ParseLevel(level string) slog.Level {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "warning":
		return slog.LevelWarn
	default:
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(l)); err != nil {
			return slog.LevelInfo
		}
		return lvl
	}
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
