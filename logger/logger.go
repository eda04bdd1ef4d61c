// Package logger holds the process wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mtx    sync.RWMutex
	logger *slog.Logger
)

type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // json, text
	// Output defaults to stderr, stdout carries table output in stdin mode.
	Output    io.Writer
	AddSource bool
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Init replaces the global logger.
func Init(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	l := slog.New(handler)

	mtx.Lock()
	logger = l
	mtx.Unlock()
	slog.SetDefault(l)
	return l
}

// Get returns the global logger, initialising a text logger at INFO level
// on first use.
func Get() *slog.Logger {
	mtx.RLock()
	l := logger
	mtx.RUnlock()
	if l == nil {
		return Init(Config{Level: "INFO", Format: "text"})
	}
	return l
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}
