package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var output io.Writer = os.Stdout

// UseStderr routes all further log output to stderr. The stdio transport
// reserves stdout for protocol frames.
func UseStderr() {
	output = os.Stderr
}

// Init configures the global zerolog logger. Unknown levels fall back to info
// and unknown formats fall back to json.
func Init(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var logger zerolog.Logger
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		})
	default:
		logger = zerolog.New(output)
	}

	log.Logger = logger.With().
		Timestamp().
		Str("service", "grant-scout").
		Logger()
}
