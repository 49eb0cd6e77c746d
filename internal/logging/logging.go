// Package logging holds the process-wide logger. Components log through
// For(name) so every line carries a component field.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var base = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Configure sets the level ("debug", "info", ...) and format ("text" or "json").
// Empty values leave the current setting alone.
func Configure(level, format string) error {
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		base.SetLevel(lvl)
	}
	switch strings.ToLower(format) {
	case "":
	case "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unsupported log format %q", format)
	}
	return nil
}

// SetOutput redirects all log output; tests use it to silence or capture logs.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// For returns a logger entry tagged with the given component.
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}

// Logger exposes the underlying logger.
func Logger() *logrus.Logger {
	return base
}
