// Package logging builds the process-wide zerolog logger: JSON to stdout in
// production, console output in development, with an optional rotating file
// sink alongside either.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger sinks.
type Options struct {
	Development bool
	Level       string // debug | info | warn | error; empty means info
	FilePath    string // empty disables the rotating file sink
}

// New constructs the logger per the options.
func New(opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(opts.Level); err == nil && opts.Level != "" {
		level = parsed
	}

	var console io.Writer = os.Stdout
	if opts.Development {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	writer := console
	if opts.FilePath != "" {
		file := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    16, // megabytes
			MaxBackups: 8,
			MaxAge:     90, // days
			Compress:   true,
		}
		writer = zerolog.MultiLevelWriter(console, file)
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
