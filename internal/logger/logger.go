package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	constants "perfreporter/config"
)

// Level represents log level
type Level string

const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelSuccess Level = "SUCCESS"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

var levelRank = map[Level]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelSuccess: 1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel converts a config value such as "debug" or "warn" into a Level.
// Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarning
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger handles centralized logging to file
type Logger struct {
	filePath string
	logFile  *os.File
	out      io.Writer
	console  io.Writer
	min      Level
	mu       sync.Mutex
}

// New creates a new logger instance
func New(filePath string) *Logger {
	logger := &Logger{filePath: filePath, min: LevelInfo}

	if filePath != "" {
		logFile, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			logger.logFile = logFile
			logger.out = logFile
		}
	}

	return logger
}

// NewWithWriter creates a logger that writes every entry to w
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{out: w, min: LevelDebug}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New(constants.LOG_FILE)
}

// SetLevel drops entries below the given level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.min = level
	l.mu.Unlock()
}

// EchoTo mirrors every entry to w (used by foreground mode)
func (l *Logger) EchoTo(w io.Writer) {
	l.mu.Lock()
	l.console = w
	l.mu.Unlock()
}

func (l *Logger) write(level Level, message string, args ...interface{}) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if levelRank[level] < levelRank[l.min] {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	formattedMsg := fmt.Sprintf(message, args...)
	logEntry := fmt.Sprintf("[%s] %s: %s\n", timestamp, level, formattedMsg)

	if l.out != nil {
		io.WriteString(l.out, logEntry)
	}
	if l.console != nil {
		io.WriteString(l.console, logEntry)
	}
}

// Close closes the log file
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
		l.out = nil
	}
}

// Info logs an informational message
func (l *Logger) Info(message string, args ...interface{}) {
	l.write(LevelInfo, message, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(message string, args ...interface{}) {
	l.write(LevelWarning, message, args...)
}

// Error logs an error message
func (l *Logger) Error(message string, args ...interface{}) {
	l.write(LevelError, message, args...)
}

// Success logs a success message
func (l *Logger) Success(message string, args ...interface{}) {
	l.write(LevelSuccess, message, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, args ...interface{}) {
	l.write(LevelDebug, message, args...)
}

// Global logger instance for the CLI commands
var defaultLogger = Default()

// Info logs an informational message using the default logger
func Info(message string, args ...interface{}) {
	defaultLogger.Info(message, args...)
}

// Warning logs a warning message using the default logger
func Warning(message string, args ...interface{}) {
	defaultLogger.Warning(message, args...)
}

// Error logs an error message using the default logger
func Error(message string, args ...interface{}) {
	defaultLogger.Error(message, args...)
}

// Debug logs a debug message using the default logger
func Debug(message string, args ...interface{}) {
	defaultLogger.Debug(message, args...)
}
