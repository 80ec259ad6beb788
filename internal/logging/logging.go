// Package logging builds the charmbracelet/log loggers used across watchlist.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a [log.Logger] writing to w with timestamps enabled.
//
// The writer defaults to [os.Stderr].
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := log.NewWithOptions(w, log.Options{ReportTimestamp: true})
	l.SetLevel(ParseLevel(level))
	return l
}

// ParseLevel maps a config level name to a [log.Level]. Unknown names are info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
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

// FileOptions configures a rotating log file.
type FileOptions struct {
	Path       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
}

// NewFile creates a logger writing to a size-rotated file. The TUI owns the
// terminal, so it logs here instead of stderr. The returned closer flushes and
// closes the file.
func NewFile(opts FileOptions) (*log.Logger, io.Closer, error) {
	if opts.Path == "" {
		return nil, nil, fmt.Errorf("logging.NewFile: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("logging.NewFile: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}
	l := log.NewWithOptions(lj, log.Options{ReportTimestamp: true, ReportCaller: true})
	l.SetLevel(ParseLevel(opts.Level))
	l.SetFormatter(log.LogfmtFormatter)
	return l, lj, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
