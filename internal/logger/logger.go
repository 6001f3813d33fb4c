// Package logger provides the process-wide structured logger.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger with a JSON writer on stdout.
// It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
		defaultLogger = zerolog.New(os.Stdout).
			Level(parseLevel(os.Getenv("LOG_LEVEL"))).
			With().
			Timestamp().
			Logger()
	})
}

// Get returns the initialized default logger.
// It calls Init() to ensure the logger is ready before returning it.
func Get() *zerolog.Logger {
	Init()
	return &defaultLogger
}

// SetLevel changes the level of the initialized logger. Configuration
// loading calls this once the logging.level setting is known.
func SetLevel(s string) {
	Init()
	defaultLogger = defaultLogger.Level(parseLevel(s))
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// fields converts alternating key/value arguments into a zerolog field map.
func fields(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	m := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		m[key] = args[i+1]
	}
	return m
}

// Info logs an informational message using the default logger.
func Info(msg string, args ...any) {
	Get().Info().Fields(fields(args)).Msg(msg)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, args ...any) {
	Get().Warn().Fields(fields(args)).Msg(msg)
}

// Error logs an error message using the default logger.
func Error(msg string, err error, args ...any) {
	Get().Error().Err(err).Fields(fields(args)).Msg(msg)
}

// Debug logs a debug message using the default logger.
func Debug(msg string, args ...any) {
	Get().Debug().Fields(fields(args)).Msg(msg)
}
