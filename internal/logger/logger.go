package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger. Debug records are kept only in dev.
func New(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetDefault installs a JSON logger as the process-wide slog default.
// A nil writer means stdout.
func SetDefault(w io.Writer, env string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	l := New(w, env)
	slog.SetDefault(l)
	return l
}
