package internal

import (
	"log"
	"os"
	"strings"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

var levelNames = map[string]LogLevel{
	"ERROR": LogLevelError,
	"WARN":  LogLevelWarn,
	"INFO":  LogLevelInfo,
	"DEBUG": LogLevelDebug,
}

// ParseLogLevel maps ERROR, WARN, INFO or DEBUG (any case) to a level
func ParseLogLevel(s string) (LogLevel, bool) {
	level, ok := levelNames[strings.ToUpper(strings.TrimSpace(s))]
	return level, ok
}

// Logger writes leveled lines tagged with a component, e.g. "[Loader] cache hit"
type Logger struct {
	component string
	level     LogLevel
}

// NewLogger creates a logger for one component
func NewLogger(component string, level LogLevel) *Logger {
	return &Logger{component: component, level: level}
}

// NewComponentLogger creates a logger whose level comes from LOG_LEVEL, INFO when unset or unknown
func NewComponentLogger(component string) *Logger {
	level, ok := ParseLogLevel(os.Getenv("LOG_LEVEL"))
	if !ok {
		level = LogLevelInfo
	}
	return NewLogger(component, level)
}

func (l *Logger) printf(level LogLevel, format string, args ...interface{}) {
	if l.level < level {
		return
	}
	prefix := "[" + l.component + "] "
	if level == LogLevelDebug {
		prefix += "debug: "
	}
	log.Printf(prefix+format, args...)
}

// Errorf logs at ERROR
func (l *Logger) Errorf(format string, args ...interface{}) { l.printf(LogLevelError, format, args...) }

// Warnf logs at WARN
func (l *Logger) Warnf(format string, args ...interface{}) { l.printf(LogLevelWarn, format, args...) }

// Infof logs at INFO
func (l *Logger) Infof(format string, args ...interface{}) { l.printf(LogLevelInfo, format, args...) }

// Debugf logs at DEBUG
func (l *Logger) Debugf(format string, args ...interface{}) { l.printf(LogLevelDebug, format, args...) }

// Level returns the current log level
func (l *Logger) Level() LogLevel {
	return l.level
}
