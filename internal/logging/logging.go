package logging

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger to write human readable lines with
// millisecond timestamps to stderr at the given level.
func Setup(level string) error {
	return SetupWriter(os.Stderr, level)
}

// SetupWriter is Setup with a custom output.
func SetupWriter(out io.Writer, level string) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		if lvl, err = zerolog.ParseLevel(level); err != nil {
			return errors.Wrapf(err, "invalid log level %q", level)
		}
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02T15:04:05.000-07:00", // Fake news, BUT we need milliseconds to debug stuff.
	}).Level(lvl).With().Timestamp().Logger()
	// https://github.com/rs/zerolog/issues/114
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return nil
}
