// Package logging constructs the structured loggers used throughout
// FleetPulse. Components receive a *slog.Logger explicitly; there is no
// package-level logger state.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON logger tagged with the given component name.
func New(component string, w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler).With("component", component)
}

// NewWithFile returns a logger writing to both stdout and the given file
// path. Used by the agent so unsent snapshots survive in a local log.
// The caller owns the returned file and closes it at shutdown.
func NewWithFile(component, path string) (*slog.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return New(component, io.MultiWriter(os.Stdout, f)), f, nil
}
