// Package logging provides the process-wide structured logger: zerolog
// configured from an env-driven level, writing JSON lines to stdout and
// optionally teeing to a log file.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	global zerolog.Logger
)

// Options configures the global logger at process start.
type Options struct {
	// Level is one of zerolog's level strings: "debug", "info", "warn",
	// "error". Defaults to "info" when empty.
	Level string
	// Pretty enables a human-readable console writer instead of JSON
	// lines; intended for local development, not production.
	Pretty bool
	// LogFile, if set, tees output to this file in addition to stdout.
	LogFile string
}

// Init configures the global logger. Safe to call once at process start;
// subsequent calls are no-ops so library code can call Get() without
// worrying about initialization order.
func Init(opts Options) zerolog.Logger {
	once.Do(func() {
		levelStr := opts.Level
		if levelStr == "" {
			levelStr = firstNonEmpty(os.Getenv("PTOLEMIES_LOG_LEVEL"), "info")
		}
		level, err := zerolog.ParseLevel(levelStr)
		if err != nil {
			level = zerolog.InfoLevel
		}

		var w io.Writer = os.Stdout
		if opts.LogFile != "" {
			if f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
				w = io.MultiWriter(os.Stdout, f)
			}
		}
		if opts.Pretty {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}
		global = zerolog.New(w).Level(level).With().Timestamp().Logger()
	})
	return global
}

// Get returns the global logger, initializing it with defaults if Init was
// never called.
func Get() zerolog.Logger {
	once.Do(func() {
		global = zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	})
	return global
}

// Named returns a child logger tagged with a "component" field.
func Named(component string) zerolog.Logger {
	return Get().With().Str("component", component).Logger()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
