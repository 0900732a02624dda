// Package logging provides structured logging with rotated file, console and
// in-memory history output.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents logging levels
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogEntry is one line of in-memory history
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Data      string `json:"data,omitempty"`
}

// Logger wraps zerolog with file output and log history
type Logger struct {
	zlog    zerolog.Logger
	file    *lumberjack.Logger
	logPath string
	mu      sync.RWMutex
	history []LogEntry
	maxHist int
	onLog   func(LogEntry) // callback for live log streaming
}

// Config holds logger configuration
type Config struct {
	LogDir     string   `mapstructure:"dir" yaml:"dir"`                   // Directory for log files (default: ~/.mia-avatar/logs)
	Level      LogLevel `mapstructure:"level" yaml:"level"`               // Minimum log level (default: info)
	MaxHistory int      `mapstructure:"max_history" yaml:"max_history"`   // Max entries to keep in memory (default: 500)
	Console    bool     `mapstructure:"console" yaml:"console"`           // Also log to stderr (default: true)
	File       bool     `mapstructure:"file" yaml:"file"`                 // Write a rotated log file (default: true)
	MaxSizeMB  int      `mapstructure:"max_size_mb" yaml:"max_size_mb"`   // Rotate after this many megabytes
	MaxBackups int      `mapstructure:"max_backups" yaml:"max_backups"`   // Rotated files to keep
	MaxAgeDays int      `mapstructure:"max_age_days" yaml:"max_age_days"` // Days to keep rotated files
	Compress   bool     `mapstructure:"compress" yaml:"compress"`         // Gzip rotated files
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LogDir:     filepath.Join(home, ".mia-avatar", "logs"),
		Level:      LevelInfo,
		MaxHistory: 500,
		Console:    true,
		File:       true,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 14,
		Compress:   true,
	}
}

// New creates a new Logger
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 500
	}

	logger := &Logger{
		history: make([]LogEntry, 0, cfg.MaxHistory),
		maxHist: cfg.MaxHistory,
	}

	writers := []io.Writer{&historyWriter{l: logger}}

	if cfg.File {
		if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logger.logPath = filepath.Join(cfg.LogDir, "mia-avatar.log")
		logger.file = &lumberjack.Logger{
			Filename:   logger.logPath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		writers = append(writers, logger.file)
	}

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}

	logger.zlog = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("app", "mia-avatar").
		Logger()

	logger.Debug("logging", "Logger initialized", map[string]interface{}{
		"logFile": logger.logPath,
		"level":   string(cfg.Level),
	})

	return logger, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), maxHist: 1}
}

// ParseLevel maps a config level onto zerolog, defaulting to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch LogLevel(strings.ToLower(string(level))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

// SetOnLog sets a callback for live log streaming
func (l *Logger) SetOnLog(fn func(LogEntry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLog = fn
}

// addToHistory adds an entry to the in-memory log history
func (l *Logger) addToHistory(entry LogEntry) {
	l.mu.Lock()
	l.history = append(l.history, entry)
	if len(l.history) > l.maxHist {
		// Remove oldest entries
		l.history = l.history[len(l.history)-l.maxHist:]
	}
	cb := l.onLog
	l.mu.Unlock()

	if cb != nil {
		cb(entry)
	}
}

// GetHistory returns recent log entries
func (l *Logger) GetHistory(limit int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.history) {
		limit = len(l.history)
	}

	result := make([]LogEntry, limit)
	copy(result, l.history[len(l.history)-limit:])
	return result
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	return l.logPath
}

// Close flushes and closes the log file
func (l *Logger) Close() error {
	l.Debug("logging", "Logger shutting down", nil)
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Debug logs a debug message
func (l *Logger) Debug(component, msg string, data map[string]interface{}) {
	withData(l.zlog.Debug().Str("component", component), data).Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(component, msg string, data map[string]interface{}) {
	withData(l.zlog.Info().Str("component", component), data).Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(component, msg string, data map[string]interface{}) {
	withData(l.zlog.Warn().Str("component", component), data).Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(component, msg string, err error, data map[string]interface{}) {
	withData(l.zlog.Error().Str("component", component).Err(err), data).Msg(msg)
}

func withData(event *zerolog.Event, data map[string]interface{}) *zerolog.Event {
	for k, v := range data {
		event = event.Interface(k, v)
	}
	return event
}

// Component returns a zerolog.Logger with the component field set
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// Zerolog returns the underlying zerolog.Logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// historyWriter turns each JSON log line into a LogEntry.
type historyWriter struct {
	l *Logger
}

var reservedFields = map[string]bool{
	zerolog.TimestampFieldName: true,
	zerolog.LevelFieldName:     true,
	zerolog.MessageFieldName:   true,
	"component":                true,
	"app":                      true,
}

func (w *historyWriter) Write(p []byte) (int, error) {
	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		return len(p), nil
	}

	entry := LogEntry{
		Timestamp: fmt.Sprint(fields[zerolog.TimestampFieldName]),
		Level:     fmt.Sprint(fields[zerolog.LevelFieldName]),
		Message:   fmt.Sprint(fields[zerolog.MessageFieldName]),
	}
	if c, ok := fields["component"].(string); ok {
		entry.Component = c
	}

	var keys []string
	for k := range fields {
		if !reservedFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	entry.Data = strings.Join(parts, ", ")

	w.l.addToHistory(entry)
	return len(p), nil
}
