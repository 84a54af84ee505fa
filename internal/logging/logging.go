// Package logging configures the process-wide logrus logger and provides
// field-scoped entries for conversation processing.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the shared logger. It is usable before Init is called.
var Logger = logrus.New()

// Init sets the level and formatter of the shared logger. Format is either
// "json" or "text".
func Init(level, format string) error {
	return Configure(Logger, level, format, os.Stderr)
}

// Configure applies level, format and output to l.
func Configure(l *logrus.Logger, level, format string, out io.Writer) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", level, err)
	}
	l.SetLevel(lvl)
	l.SetOutput(out)

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// WithConversation returns an entry tagged with the company and conversation.
func WithConversation(companyID, conversationID string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"company":      companyID,
		"conversation": conversationID,
	})
}

// WithWorkflow adds workflow identification to an existing entry.
func WithWorkflow(entry *logrus.Entry, workflowID, name string) *logrus.Entry {
	return entry.WithFields(logrus.Fields{
		"workflow":      workflowID,
		"workflow_name": name,
	})
}

// WithComponent returns an entry for a named subsystem.
func WithComponent(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}
