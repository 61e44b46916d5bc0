package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel is a message severity. SILENT disables output.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	SILENT
)

// levels maps each LogLevel to its tag and console colour
var levels = [...]struct {
	name, color string
}{
	DEBUG:  {"DEBUG", "\033[36m"},
	INFO:   {"INFO", "\033[32m"},
	WARN:   {"WARN", "\033[33m"},
	ERROR:  {"ERROR", "\033[31m"},
	SILENT: {"SILENT", ""},
}

const resetColor = "\033[0m"

// sink is one destination; the rolling file never gets colour codes
type sink struct {
	logger   *log.Logger
	useColor bool
}

// Logger writes leveled, module-tagged lines to one or more sinks
type Logger struct {
	mu    sync.Mutex
	level LogLevel
	sinks []sink
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Init creates a logger and installs it as the global one
func Init(level LogLevel, output io.Writer, useColor bool) *Logger {
	l := New(level, output, useColor)
	SetDefault(l)
	return l
}

// SetDefault replaces the global logger. Passing nil mutes global logging.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

func current() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// New creates a logger writing to output, stderr when nil
func New(level LogLevel, output io.Writer, useColor bool) *Logger {
	if output == nil {
		output = os.Stderr
	}

	return &Logger{
		level: level,
		sinks: []sink{{logger: newStdLogger(output), useColor: useColor}},
	}
}

func newStdLogger(w io.Writer) *log.Logger {
	return log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

// AddOutput attaches another destination (never coloured)
func (l *Logger) AddOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink{logger: newStdLogger(w)})
}

// RollingFile returns a size-rotated log file writer inside dir.
// The directory is created if missing.
func RollingFile(dir, name string) (io.WriteCloser, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
	}, nil
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *Logger) log(level LogLevel, module string, format string, args ...interface{}) {
	l.mu.Lock()
	threshold, sinks := l.level, l.sinks
	l.mu.Unlock()

	if level < threshold || level >= SILENT {
		return
	}

	tag := "[" + levels[level].name + "]"
	if module != "" {
		module = " [" + module + "]"
	}
	message := fmt.Sprintf(format, args...)
	for _, s := range sinks {
		if s.useColor {
			s.logger.Print(levels[level].color, tag, resetColor, module, " ", message)
		} else {
			s.logger.Print(tag, module, " ", message)
		}
	}
}

func (l *Logger) Debug(module string, format string, args ...interface{}) {
	l.log(DEBUG, module, format, args...)
}

func (l *Logger) Info(module string, format string, args ...interface{}) {
	l.log(INFO, module, format, args...)
}

func (l *Logger) Warn(module string, format string, args ...interface{}) {
	l.log(WARN, module, format, args...)
}

func (l *Logger) Error(module string, format string, args ...interface{}) {
	l.log(ERROR, module, format, args...)
}

// SetLevel changes the level of the global logger
func SetLevel(level LogLevel) {
	if l := current(); l != nil {
		l.SetLevel(level)
	}
}

// GetLevel reports the global level, INFO when no logger is installed
func GetLevel() LogLevel {
	if l := current(); l != nil {
		return l.GetLevel()
	}
	return INFO
}

// Package-level helpers write through the global logger and are no-ops
// until Init or SetDefault installs one.

func Debug(module string, format string, args ...interface{}) {
	logDefault(DEBUG, module, format, args...)
}

func Info(module string, format string, args ...interface{}) {
	logDefault(INFO, module, format, args...)
}

func Warn(module string, format string, args ...interface{}) {
	logDefault(WARN, module, format, args...)
}

func Error(module string, format string, args ...interface{}) {
	logDefault(ERROR, module, format, args...)
}

func logDefault(level LogLevel, module string, format string, args ...interface{}) {
	if l := current(); l != nil {
		l.log(level, module, format, args...)
	}
}

// ParseLevel accepts level names in any case, plus "warning" and "none"
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	case "silent", "none":
		return SILENT, nil
	}
	return INFO, fmt.Errorf("invalid log level: %s", s)
}

func (l LogLevel) String() string {
	if l >= DEBUG && int(l) < len(levels) {
		return levels[l].name
	}
	return "UNKNOWN"
}
