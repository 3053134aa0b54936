// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional console writer (defaults to os.Stderr)
	JSON    bool      // emit JSON on the console instead of the human format
	File    string    // optional path; receives JSON lines at debug level
	Service string    // optional service name attached to every log entry
	Version string
}

var (
	mu       sync.RWMutex
	base     zerolog.Logger
	logFile  *os.File
	minLevel = zerolog.InfoLevel
)

// Configure (re)initialises the global zerolog logger. The CLI calls it twice:
// once with safe defaults and again once flags and config are known.
func Configure(cfg Config) error {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	} else if env := os.Getenv("ECHODL_LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	zerolog.TimeFieldFormat = time.RFC3339

	console := cfg.Output
	if console == nil {
		console = os.Stderr
	}
	if !cfg.JSON {
		console = zerolog.ConsoleWriter{Out: console, TimeFormat: time.TimeOnly}
	}

	var writer io.Writer = zerolog.MultiLevelWriter(levelWriter{w: console, min: level})
	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		file = f
		// The file sink always records debug, independent of the console level.
		writer = zerolog.MultiLevelWriter(levelWriter{w: console, min: level}, levelWriter{w: f, min: zerolog.DebugLevel})
		if level > zerolog.DebugLevel {
			level = zerolog.DebugLevel
		}
	}

	service := cfg.Service
	if service == "" {
		service = "echodl"
	}

	ctx := zerolog.New(writer).Level(level).With().Timestamp().Str("service", service)
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	minLevel = level
	base = ctx.Logger()
	return nil
}

// Close flushes and closes the optional log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// levelWriter drops events below min so the console and the file can run at different levels.
type levelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (lw levelWriter) Write(p []byte) (int, error) {
	return lw.w.Write(p)
}

func (lw levelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < lw.min {
		return len(p), nil
	}
	return lw.w.Write(p)
}

func logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	return logger()
}

// Level reports the effective minimum level of the base logger.
func Level() zerolog.Level {
	mu.RLock()
	defer mu.RUnlock()
	return minLevel
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str(FieldComponent, component).Logger()
}

// Derive attaches arbitrary fields to a child logger using the provided builder function.
func Derive(build func(*zerolog.Context)) zerolog.Logger {
	ctx := logger().With()
	if build != nil {
		build(&ctx)
	}
	return ctx.Logger()
}

func init() {
	_ = Configure(Config{})
}
