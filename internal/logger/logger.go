// Package logger is a thin package-level wrapper around zerolog.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	logFile *os.File
	log     zerolog.Logger
)

func init() {
	rebuild()
}

func rebuild() {
	w := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		NoColor:    logFile != nil,
	}
	log = zerolog.New(w).With().Timestamp().Logger()
}

// SetOutput redirects log output. The terminal host points this at
// io.Discard (or a file) so log lines do not tear the alt screen.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

// SetOutputFile appends log output to filename, creating parent dirs.
func SetOutputFile(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	out = f
	rebuild()
	return nil
}

// CloseLogFile closes the log file, if any, and falls back to stderr.
func CloseLogFile() {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return
	}
	logFile.Close()
	logFile = nil
	out = os.Stderr
	rebuild()
}

// SetLevel sets the global level from its name; unknown names mean info.
func SetLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "disabled", "off":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func current() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return log
}

func Debug(msg string) {
	l := current()
	l.Debug().Msg(msg)
}

func Debugf(format string, v ...any) {
	l := current()
	l.Debug().Msgf(format, v...)
}

func Info(msg string) {
	l := current()
	l.Info().Msg(msg)
}

func Infof(format string, v ...any) {
	l := current()
	l.Info().Msgf(format, v...)
}

func Warn(msg string) {
	l := current()
	l.Warn().Msg(msg)
}

func Warnf(format string, v ...any) {
	l := current()
	l.Warn().Msgf(format, v...)
}

// Error logs msg together with err.
func Error(msg string, err error) {
	l := current()
	l.Error().Err(err).Msg(msg)
}

// Errorf logs a formatted message together with err.
func Errorf(format string, err error, v ...any) {
	l := current()
	l.Error().Err(err).Msgf(format, v...)
}
