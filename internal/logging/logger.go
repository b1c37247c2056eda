// Package logging builds the zap loggers used across fwe.
// CLI commands log to stderr. The dashboard logs to .fwe/logs/ so output never
// lands on the terminal it draws to. Each subsystem gets a named child logger
// that can be switched off per category in config.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fwe/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config resolution
	CategoryTransport Category = "transport" // HTTP calls to the scenario service
	CategoryRun       Category = "run"       // Run controller transitions
	CategoryHistory   Category = "history"   // Run history store
	CategorySweep     Category = "sweep"     // PI sweeps
	CategoryBattery   Category = "battery"   // Scenario batteries
	CategoryDashboard Category = "dashboard" // Interactive dashboard
)

// Options controls logger construction.
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Verbose    bool   // forces debug level
	Dir        string // when set, logs go to Dir/File instead of stderr
	File       string
	Categories map[string]bool
}

// OptionsFromConfig maps the logging config section onto Options. dir is
// only used when toFile is set.
func OptionsFromConfig(c config.LoggingConfig, dir string, toFile, verbose bool) Options {
	opts := Options{
		Level:      c.EffectiveLevel(),
		Format:     c.Format,
		Verbose:    verbose,
		File:       c.File,
		Categories: c.Categories,
	}
	if toFile || c.DebugMode {
		opts.Dir = dir
	}
	return opts
}

// Logger is the process logger plus its category switches.
type Logger struct {
	base       *zap.Logger
	categories map[string]bool
	path       string
	closeFn    func()
}

// New builds a Logger. Callers must Close it.
func New(opts Options) (*Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	encoding := "json"
	if strings.EqualFold(opts.Format, "console") || strings.EqualFold(opts.Format, "text") {
		encoding = "console"
	}

	if opts.Dir == "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.Encoding = encoding
		base, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		return &Logger{base: base, categories: opts.Categories, closeFn: func() {}}, nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	file := opts.File
	if file == "" {
		file = "fwe.log"
	}
	date := time.Now().Format("2006-01-02")
	path := filepath.Join(opts.Dir, date+"_"+file)

	sink, closeFn, err := zap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if encoding == "console" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(level))
	return &Logger{
		base:       zap.New(core, zap.AddCaller()),
		categories: opts.Categories,
		path:       path,
		closeFn:    closeFn,
	}, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{base: zap.NewNop(), closeFn: func() {}}
}

// Zap returns the root logger.
func (l *Logger) Zap() *zap.Logger { return l.base }

// Path returns the log file path, or "" when logging to stderr.
func (l *Logger) Path() string { return l.path }

// IsCategoryEnabled reports whether a category logs. Unlisted categories are
// enabled.
func (l *Logger) IsCategoryEnabled(category Category) bool {
	if l.categories == nil {
		return true
	}
	enabled, exists := l.categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns the named child logger for a category, or a no-op logger if
// the category is disabled.
func (l *Logger) Get(category Category) *zap.Logger {
	if !l.IsCategoryEnabled(category) {
		return zap.NewNop()
	}
	return l.base.Named(string(category))
}

// Close flushes and releases the log sink.
func (l *Logger) Close() error {
	err := l.base.Sync()
	l.closeFn()
	if err != nil && l.path == "" {
		// stderr does not support fsync on most terminals
		return nil
	}
	return err
}
