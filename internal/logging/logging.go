// Package logging provides the shared structured logger.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      time.RFC3339,
	Level:           log.InfoLevel,
})

// SetLevel adjusts the global log level ("debug", "info", "warn", "error").
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
}

// Debug logs at debug level with key-value pairs.
func Debug(msg string, kv ...interface{}) { logger.Debug(msg, kv...) }

// Info logs at info level with key-value pairs.
func Info(msg string, kv ...interface{}) { logger.Info(msg, kv...) }

// Warn logs at warn level with key-value pairs.
func Warn(msg string, kv ...interface{}) { logger.Warn(msg, kv...) }

// Error logs at error level with key-value pairs.
func Error(msg string, kv ...interface{}) { logger.Error(msg, kv...) }
