// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

// currentLevel holds the current global log level atomically.
var currentLevel atomic.Uint32

// logger writes date and time with microseconds. The terminal display swaps
// its output away from stderr while it owns the screen.
var logger = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Writer returns the current log destination.
func Writer() io.Writer {
	return logger.Writer()
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

func output(level LogLevel, msg string) {
	// Pad the shorter level names so messages line up.
	pad := " "
	if len(level.String()) == 4 {
		pad = "  "
	}
	logger.Printf("[%s]%s%s", level, pad, msg)
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) {
	if shouldLog(LevelDebug) {
		output(LevelDebug, fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) {
	if shouldLog(LevelInfo) {
		output(LevelInfo, fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) {
	if shouldLog(LevelWarn) {
		output(LevelWarn, fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) {
	if shouldLog(LevelError) {
		output(LevelError, fmt.Sprintf(format, v...))
	}
}

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) {
	logger.Fatalf("[%s] %s", LevelFatal, fmt.Sprintf(format, v...))
}

// --- Functions without formatting (convenience) ---

func Debug(v ...any) {
	if shouldLog(LevelDebug) {
		output(LevelDebug, fmt.Sprint(v...))
	}
}

func Info(v ...any) {
	if shouldLog(LevelInfo) {
		output(LevelInfo, fmt.Sprint(v...))
	}
}

func Warn(v ...any) {
	if shouldLog(LevelWarn) {
		output(LevelWarn, fmt.Sprint(v...))
	}
}

func Error(v ...any) {
	if shouldLog(LevelError) {
		output(LevelError, fmt.Sprint(v...))
	}
}

// Fatal logs a fatal message and exits the application.
func Fatal(v ...any) {
	logger.Fatalf("[%s] %s", LevelFatal, fmt.Sprint(v...))
}
