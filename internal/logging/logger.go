// Package logging hands out per-component logrus entries that share one
// process-wide level and formatter.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Config mirrors the logging section of hypolab.yml.
type Config struct {
	Level  string
	Format string
}

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
	base      = newBase(Config{}, os.Stderr)
)

func newBase(cfg Config, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	levelStr := "info"
	if env := os.Getenv("HYPOLAB_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if cfg.Level != "" {
		levelStr = cfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	switch resolveFormat(cfg.Format, out) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// resolveFormat turns "auto" into text on an interactive terminal and json
// everywhere else.
func resolveFormat(format string, out io.Writer) string {
	format = strings.ToLower(format)
	if format != "auto" {
		return format
	}
	if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return "text"
	}
	return "json"
}

// Configure rebuilds the shared logger. Entries handed out earlier keep
// logging through the old one, so call it before NewLogger.
func Configure(cfg Config) {
	ConfigureOutput(cfg, os.Stderr)
}

// ConfigureOutput is Configure with an explicit sink.
func ConfigureOutput(cfg Config, out io.Writer) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	base = newBase(cfg, out)
	loggers = make(map[string]*logrus.Entry)
}

// SetLevel changes the level of the shared logger in place, so entries
// handed out earlier follow it. HYPOLAB_LOG_LEVEL still wins.
func SetLevel(level string) error {
	if os.Getenv("HYPOLAB_LOG_LEVEL") != "" {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	loggersMu.Lock()
	defer loggersMu.Unlock()
	base.SetLevel(lvl)
	return nil
}

// NewLogger returns the logger for a component, creating it on first use.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}
	logger := base.WithField("component", component)
	loggers[component] = logger
	return logger
}
