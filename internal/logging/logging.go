// Package logging configures the command-line logger and adapts it to ports.Logger.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"pontinhos/internal/ports"
)

// New returns a logger writing to w with appName as prefix. Unknown levels fall back to info.
func New(w io.Writer, appName, level string) *log.Logger {
	logger := log.New(w)
	logger.SetPrefix(appName)
	logger.SetReportTimestamp(true)
	logger.SetTimeFormat(time.DateTime)
	logger.SetLevel(ParseLevel(level))
	return logger
}

// ParseLevel maps debug, warn and error to their levels and anything else to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Printf adapts a charmbracelet logger to the printf-style ports.Logger.
type Printf struct {
	L *log.Logger
}

func (p Printf) Debug(format string, v ...interface{}) { p.L.Debugf(format, v...) }
func (p Printf) Info(format string, v ...interface{})  { p.L.Infof(format, v...) }
func (p Printf) Warn(format string, v ...interface{})  { p.L.Warnf(format, v...) }
func (p Printf) Error(format string, v ...interface{}) { p.L.Errorf(format, v...) }

var _ ports.Logger = Printf{}
