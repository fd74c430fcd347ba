package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Settings struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	// File switches output to a rotated log file. The TUI needs this to keep
	// the screen clean.
	File       string `yaml:"file"`
	JSON       bool   `yaml:"json"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
}

func DefaultSettings() Settings {
	return Settings{Level: "info", MaxSizeMB: 10, MaxBackups: 3}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger writing to console, or to File when set. Console output
// is human readable when it is a terminal and JSON is false.
func New(s Settings, console io.Writer) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if s.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(s.Level))
		if err != nil {
			return zerolog.Nop(), nil, errors.Wrapf(err, "parse log level %q", s.Level)
		}
		level = l
	}

	var (
		w      io.Writer
		closer io.Closer = nopCloser{}
	)
	switch {
	case s.File != "":
		rotator := &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    s.MaxSizeMB,
			MaxBackups: s.MaxBackups,
		}
		w, closer = rotator, rotator
		if !s.JSON {
			w = zerolog.ConsoleWriter{Out: rotator, NoColor: true, TimeFormat: time.RFC3339}
		}
	case !s.JSON && isTerminal(console):
		w = zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen}
	default:
		w = console
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

// Init installs the logger globally. Close the returned closer on exit.
func Init(s Settings) (io.Closer, error) {
	logger, closer, err := New(s, os.Stderr)
	if err != nil {
		return nil, err
	}
	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger
	return closer, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
