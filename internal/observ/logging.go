package observ

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures the process-wide logger. Format "console" renders
// human-readable output for interactive use; anything else emits JSON lines.
func Init(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	log = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Log emits one info-level event with structured fields.
func Log(event string, kv map[string]any) {
	log.Info().Fields(kv).Msg(event)
}

func Debug(event string, kv map[string]any) {
	log.Debug().Fields(kv).Msg(event)
}

func Warn(event string, kv map[string]any) {
	log.Warn().Fields(kv).Msg(event)
}

func Error(event string, err error, kv map[string]any) {
	log.Error().Err(err).Fields(kv).Msg(event)
}
