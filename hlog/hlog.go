// Package hlog builds the process logger: zerolog behind logr, a console
// writer on terminals and a rotating file when one is configured.
package hlog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the log section of the configuration.
type Config struct {
	Level      string `mapstructure:"level"` // error, info, debug or trace
	File       string `mapstructure:"file"`  // empty logs to stderr
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// New returns the root logger and the closer for its output. The verbose and
// debug flags raise the configured level to info and debug.
func New(cfg Config, verbose, debug bool) (logr.Logger, io.Closer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"
	zerologr.SetMaxV(2)

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSize, 10), // megabytes
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAge, 28), // days
			Compress:   cfg.Compress,
		}
		w, closer = lj, lj
	} else if IsTerminal() {
		w = zerolog.ConsoleWriter{Out: os.Stderr, NoColor: !isColorTerminal(), TimeFormat: time.RFC3339}
	}

	level := parseLevel(cfg.Level, verbose, debug)
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return zerologr.New(&zl), closer
}

// IsTerminal reports whether stderr is a terminal.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

func isColorTerminal() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

func parseLevel(name string, verbose, debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	level := zerolog.InfoLevel
	if name != "" {
		if l, err := zerolog.ParseLevel(strings.ToLower(name)); err == nil {
			level = l
		}
	}
	if verbose && level > zerolog.InfoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
