// Package logging provides config-driven, categorized file logging for
// rfpchat. Logs are written under ~/.rfpchat/logs/ with one file per
// category. Logging is controlled by debug_mode in ~/.rfpchat/config.json;
// when false, every logger is a no-op so an interactive session never spills
// onto the terminal the TUI owns.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a log stream. Each category gets its own file.
type Category string

const (
	CategoryBoot    Category = "boot"    // startup, config resolution
	CategorySession Category = "session" // auth state transitions
	CategoryAPI     Category = "api"     // HTTP round trips
	CategoryUpload  Category = "upload"  // document upload lifecycle
	CategoryChat    Category = "chat"    // conversation turns
)

// loggingConfig mirrors the relevant part of config.Config to avoid a
// circular import between logging and config.
type loggingConfig struct {
	DebugMode bool `json:"debug_mode"`
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*zap.Logger)
	logsDir  string
	enabled  bool
	initOnce sync.Once
)

// Initialize sets up the logging directory and reads debug_mode from the
// config file under dir (normally ~/.rfpchat). Safe to call once at startup;
// before Initialize, Get returns no-op loggers.
func Initialize(dir string) error {
	var err error
	initOnce.Do(func() {
		cfg := loadConfig(filepath.Join(dir, "config.json"))
		if !cfg.DebugMode {
			return // silent no-op in production mode
		}

		logsDir = filepath.Join(dir, "logs")
		if mkErr := os.MkdirAll(logsDir, 0o755); mkErr != nil {
			err = fmt.Errorf("create logs directory: %w", mkErr)
			return
		}

		mu.Lock()
		enabled = true
		mu.Unlock()

		Get(CategoryBoot).Info("logging initialized", zap.String("dir", logsDir))
	})
	return err
}

// Get returns the logger for a category, creating it on first use. Always
// non-nil; a no-op logger is returned when debug mode is off.
func Get(cat Category) *zap.Logger {
	mu.RLock()
	if !enabled {
		mu.RUnlock()
		return zap.NewNop()
	}
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l := newFileLogger(cat)
	loggers[cat] = l
	return l
}

// Sync flushes all category loggers. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, l := range loggers {
		_ = l.Sync()
	}
}

func newFileLogger(cat Category) *zap.Logger {
	f, err := os.OpenFile(filepath.Join(logsDir, string(cat)+".log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zap.NewNop()
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(f), zapcore.DebugLevel)
	return zap.New(core).With(zap.String("cat", string(cat)))
}

func loadConfig(path string) loggingConfig {
	var cfg loggingConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	_ = json.Unmarshal(data, &cfg)
	return cfg
}
