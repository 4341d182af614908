package log

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the process logger writing human-readable lines to stderr.
// Level accepts zerolog's level names (debug, info, warn, error); anything
// unrecognized falls back to info.
func New(level string) *zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	logger := zerolog.New(out).Level(lvl).With().
		Timestamp().
		Str("service", "chat-server").
		Logger()
	return &logger
}
