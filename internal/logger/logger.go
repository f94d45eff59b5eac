// Package logger configures the process-wide logrus logger.
package logger

import (
	"fmt"
	"io"
	"os"

	"gemini/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/term"
)

// Setup applies cfg to l. Logs go to stderr unless cfg.File is set, in
// which case the file is opened for append through fs. The returned
// function closes the log file, if any.
func Setup(l *logrus.Logger, cfg config.LogConfig, fs afero.Fs, stderr *os.File) (func() error, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(level)

	closeFn := func() error { return nil }
	var out io.Writer = io.Discard
	colors := false
	if stderr != nil {
		out, colors = stderr, term.IsTerminal(int(stderr.Fd()))
	}
	if cfg.File != "" {
		f, err := fs.OpenFile(cfg.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out, colors, closeFn = f, false, f.Close
	}
	l.SetOutput(out)

	if cfg.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			ForceColors:      colors,
			DisableColors:    !colors,
			FullTimestamp:    true,
			QuoteEmptyFields: true,
		})
	}
	return closeFn, nil
}

// Component returns the entry a package logs through.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("component", name)
}
