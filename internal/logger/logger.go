package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

var defaultLogger *slog.Logger

// Init installs the process logger. Development or debug runs get the text
// handler at debug level; everything else logs JSON at info. When file is
// set, output is also appended there. The returned func closes the file.
func Init(env string, debug bool, file string) (func() error, error) {
	var out io.Writer = os.Stdout
	closeFn := func() error { return nil }
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return closeFn, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = f.Close
	}
	defaultLogger = New(out, env, debug)
	slog.SetDefault(defaultLogger)
	return closeFn, nil
}

func New(w io.Writer, env string, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug || env == "development" {
		opts.Level = slog.LevelDebug
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Default returns the logger set by Init, or a text logger on stdout.
func Default() *slog.Logger {
	if defaultLogger == nil {
		defaultLogger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return defaultLogger
}
