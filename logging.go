package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// logger is discarded until initLogging points it at a file; the terminal
// belongs to the TUI.
var logger = log.New(io.Discard)

var userHomeDir = os.UserHomeDir

// initLogging opens the session log file and returns a closer for it.
func initLogging(level string) (func(), error) {
	path := logPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger = newLogger(file, level)
	logger.Info("sportfrei started", "pid", os.Getpid())
	return func() {
		logger.Info("sportfrei shutting down")
		logger = log.New(io.Discard)
		_ = file.Close()
	}, nil
}

func newLogger(w io.Writer, level string) *log.Logger {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           parsed,
	})
}

func logPath() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := userHomeDir()
		if err != nil {
			return "sportfrei.log"
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "sportfrei", "sportfrei.log")
}
