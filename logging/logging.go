// Package logging builds the structured logger shared by every command.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// NewLogger creates a [log.Logger] writing to w with timestamps enabled.
// The writer defaults to [os.Stderr]. Verbose loggers report debug entries
// and the calling file.
func NewLogger(w io.Writer, verbose bool) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, Level: log.InfoLevel}
	if verbose {
		opts.Level = log.DebugLevel
		opts.ReportCaller = true
	}
	return log.NewWithOptions(w, opts)
}

// Discard returns a logger that drops every entry. Tests use it.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}
