package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const productionEnvironment = "production"

// New writes JSON lines in production and a readable console format
// everywhere else.
func New(environment string) zerolog.Logger {
	var output io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	level := zerolog.DebugLevel
	if environment == productionEnvironment {
		output = os.Stdout
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.New(output).With().
		Timestamp().
		Str("service", "touris-api").
		Str("env", environment).
		Logger()
}

// Component tags every event with the emitting subsystem.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
