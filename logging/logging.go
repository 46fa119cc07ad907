package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

const (
	// TraceLevel indicates a log message's level of criticality
	TraceLevel = iota
	// DebugLevel indicates a log message's level of criticality
	DebugLevel
	// InfoLevel indicates a log message's level of criticality
	InfoLevel
	// WarnLevel indicates a log message's level of criticality
	WarnLevel
	// ErrorLevel indicates a log message's level of criticality
	ErrorLevel
	// FatalLevel indicates a log message's level of criticality
	FatalLevel
)

// LogLevelToString translates a log level enum to a string representation
func LogLevelToString(level int) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "TRACE"
	}
}

// ParseLevel translates a string representation of a log level back into its enum
func ParseLevel(level string) (int, error) {
	for l := TraceLevel; l <= FatalLevel; l++ {
		if LogLevelToString(l) == level {
			return l, nil
		}
	}
	return TraceLevel, fmt.Errorf("Unknown log level %q", level)
}

// Logger receives leveled log messages
type Logger interface {
	Log(level int, format string, args ...interface{})
}

// stdLogger writes messages at or above a minimum level through the standard library logger
type stdLogger struct {
	minLevel int
	logger   *log.Logger
}

// NewStdLogger creates a Logger which prints to stderr any message at or above minLevel
func NewStdLogger(minLevel int) Logger {
	return NewWriterLogger(os.Stderr, minLevel)
}

// NewWriterLogger creates a Logger which prints to w any message at or above minLevel
func NewWriterLogger(w io.Writer, minLevel int) Logger {
	return &stdLogger{minLevel: minLevel, logger: log.New(w, "", log.LstdFlags)}
}

// Log prints a message, exiting the process for FatalLevel messages
func (l *stdLogger) Log(level int, format string, args ...interface{}) {
	if level < l.minLevel {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if level == FatalLevel {
		l.logger.Fatalf("[%s] %s", LogLevelToString(level), msg)
	}
	l.logger.Printf("[%s] %s", LogLevelToString(level), msg)
}

type nopLogger struct{}

// NopLogger returns a Logger which discards everything
func NopLogger() Logger {
	return nopLogger{}
}

func (nopLogger) Log(level int, format string, args ...interface{}) {}
