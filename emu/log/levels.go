package log

import (
	"io"

	"gopkg.in/Sirupsen/logrus.v0"
)

// Level mirrors logrus levels so that callers don't have to import logrus.
type Level uint32

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func init() {
	// Per-module masks do the filtering, let logrus print everything it
	// receives.
	logrus.SetLevel(logrus.DebugLevel)
}

// set by Disable, only fatal entries still go through.
var disabled bool

// Disable drops every log entry below fatal, warnings and errors included.
func Disable() {
	disabled = true
	logrus.SetOutput(io.Discard)
}

// SetOutput redirects all log entries to w.
func SetOutput(w io.Writer) {
	logrus.SetOutput(w)
}
