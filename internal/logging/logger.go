package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration
type Config struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"`      // "stdout", "stderr", or file path
	Component  string `json:"component"`
	JSONFormat bool   `json:"json_format"` // JSON output; console writer otherwise
}

// Sink receives a mirror of WARN-and-above log records. The persistence
// store implements this to feed the system_logs table.
type Sink interface {
	WriteSystemLog(level, component, message string, details map[string]interface{})
}

// Logger is a structured logger backed by zerolog, keeping the
// key/value-pair call style used across the codebase.
type Logger struct {
	zl        zerolog.Logger
	component string
	fields    map[string]interface{}
}

var (
	defaultLogger *Logger
	defaultOnce   sync.Once
	defaultMu     sync.RWMutex

	sinkMu sync.RWMutex
	sink   Sink
)

// ParseLevel converts a string to a zerolog level, defaulting to INFO.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a new logger with the given configuration.
func New(cfg *Config) *Logger {
	var output io.Writer = os.Stdout

	switch cfg.Output {
	case "", "stdout":
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			output = file
		}
	}

	if !cfg.JSONFormat {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().Logger()

	return &Logger{
		zl:        zl,
		component: cfg.Component,
		fields:    make(map[string]interface{}),
	}
}

// Default returns the default logger instance.
func Default() *Logger {
	defaultOnce.Do(func() {
		if defaultLogger == nil {
			defaultLogger = New(&Config{Level: "INFO", Output: "stdout", Component: "app", JSONFormat: true})
		}
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// SetSink installs the system-log sink. Passing nil removes it.
func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkMu.Unlock()
}

// WithComponent returns a new logger with the specified component.
func (l *Logger) WithComponent(component string) *Logger {
	nl := l.clone()
	nl.component = component
	return nl
}

// WithTraceID returns a new logger carrying a trace ID field.
func (l *Logger) WithTraceID(traceID string) *Logger {
	return l.WithField("trace_id", traceID)
}

// WithField returns a new logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	nl := l.clone()
	nl.fields[key] = value
	return nl
}

// WithFields returns a new logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	nl := l.clone()
	for k, v := range fields {
		nl.fields[k] = v
	}
	return nl
}

// WithError returns a new logger with an error field.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) clone() *Logger {
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{zl: l.zl, component: l.component, fields: fields}
}

func (l *Logger) log(level zerolog.Level, msg string, keysAndValues ...interface{}) {
	ev := l.zl.WithLevel(level)
	if ev == nil {
		return
	}
	if l.component != "" {
		ev = ev.Str("component", l.component)
	}
	for k, v := range l.fields {
		ev = ev.Interface(k, v)
	}

	details := map[string]interface{}{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		val := keysAndValues[i+1]
		if err, isErr := val.(error); isErr && err != nil {
			val = err.Error()
		}
		ev = ev.Interface(key, val)
		details[key] = val
	}
	ev.Msg(msg)

	if level >= zerolog.WarnLevel && level < zerolog.FatalLevel {
		sinkMu.RLock()
		s := sink
		sinkMu.RUnlock()
		if s != nil {
			s.WriteSystemLog(strings.ToUpper(level.String()), l.component, msg, details)
		}
	}
}

// Debug logs a debug message with optional key/value pairs.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.DebugLevel, msg, keysAndValues...)
}

// Info logs an info message with optional key/value pairs.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.InfoLevel, msg, keysAndValues...)
}

// Warn logs a warning with optional key/value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.WarnLevel, msg, keysAndValues...)
}

// Error logs an error with optional key/value pairs.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.ErrorLevel, msg, keysAndValues...)
}

// Fatal logs and exits.
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.FatalLevel, msg, keysAndValues...)
	os.Exit(1)
}
