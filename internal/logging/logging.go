// Package logging builds zerolog loggers for the commands
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/geseq/rtkernel/internal/config"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger configured by cfg and the writer behind it. The
// writer must be closed on shutdown when it is a log file.
func New(cfg config.LogConfig) (zerolog.Logger, io.Writer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var w io.Writer
	if cfg.FilePath != "" {
		w, err = fileWriter(cfg)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
	} else if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "2006-01-02 15:04:05.000",
		}
	} else {
		w = os.Stdout
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), w, nil
}

func fileWriter(cfg config.LogConfig) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, err
	}

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}, nil
}
