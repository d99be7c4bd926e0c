package logger

import (
	"strings"
	"sync"
)

// Log levels accepted in log.level.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide console logger. The level of the first
// call wins; later calls return the same instance.
func Get(level string) *Logger {
	once.Do(func() {
		globalLogger = New(level)
	})
	return globalLogger
}

// New builds an independent console logger at the given level.
func New(level string) *Logger {
	return newZapLogger(strings.ToLower(strings.TrimSpace(level)))
}

// Named returns a child logger tagged with the component name, e.g. "poller".
func (l *Logger) Named(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{SugaredLogger: l.SugaredLogger.Named(component), level: l.level}
}

// Level reports the textual level the logger was built with.
func (l *Logger) Level() string {
	if l == nil {
		return ""
	}
	return l.level.Level().String()
}
