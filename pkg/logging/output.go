package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Output destinations
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// OutputConfig selects where log lines go. File output rotates with lumberjack.
type OutputConfig struct {
	Level      string
	Output     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// OpenWriter returns the writer for cfg. The caller closes it on shutdown;
// closing a standard stream is a no-op.
func OpenWriter(cfg OutputConfig) (io.WriteCloser, error) {
	switch cfg.Output {
	case "", OutputStderr:
		return nopCloser{os.Stderr}, nil
	case OutputStdout:
		return nopCloser{os.Stdout}, nil
	case OutputFile:
		if cfg.File == "" {
			return nil, fmt.Errorf("log output %q requires a file path", OutputFile)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		return &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}, nil
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
}

// New builds a JSON logger from cfg
func New(cfg OutputConfig) (*JSONLogger, io.Closer, error) {
	w, err := OpenWriter(cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewJSONLogger(w, ParseLevel(cfg.Level)), w, nil
}
