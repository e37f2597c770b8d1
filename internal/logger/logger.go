package logger

import (
	"os"

	"github.com/rs/zerolog"
)

var defaultLogger = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
}).With().Timestamp().Logger().Level(zerolog.InfoLevel)

// SetVerbose enables debug-level output.
func SetVerbose(verbose bool) {
	if verbose {
		defaultLogger = defaultLogger.Level(zerolog.DebugLevel)
	} else {
		defaultLogger = defaultLogger.Level(zerolog.InfoLevel)
	}
}

func Debug(format string, args ...interface{}) {
	defaultLogger.Debug().Msgf(format, args...)
}

func Info(format string, args ...interface{}) {
	defaultLogger.Info().Msgf(format, args...)
}

func Warn(format string, args ...interface{}) {
	defaultLogger.Warn().Msgf(format, args...)
}

func Error(format string, args ...interface{}) {
	defaultLogger.Error().Msgf(format, args...)
}

func Fatal(format string, args ...interface{}) {
	defaultLogger.Fatal().Msgf(format, args...)
}
