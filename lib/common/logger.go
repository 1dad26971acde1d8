// Package common provides logging utilities for the application
package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// --------------------------------------------------------------------------
// Base Logger
// --------------------------------------------------------------------------

// baseLogger is the process-wide logger all package loggers derive from
var baseLogger = newBaseLogger()

func newBaseLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger returns a logger tagged with the given package name
func CreateLogger(pkgName string) *logrus.Entry {
	return baseLogger.WithField("pkg", pkgName)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseLogLevel converts a string level to logrus.Level
func parseLogLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warning", "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// SetLogLevel sets the level of all loggers created by CreateLogger
func SetLogLevel(level string) {
	baseLogger.SetLevel(parseLogLevel(level))
}
