package logging

import (
	"io"
	"strings"
	"sync"
	"time"
)

// Level is the minimum severity a logger writes
type Level int

const (
	// DebugLevel adds cache builds, individual walks and store round trips
	DebugLevel Level = iota
	// InfoLevel writes one line per trace, visit or session change
	InfoLevel
	// WarnLevel covers an unreachable event feed or a failed reload
	WarnLevel
	// ErrorLevel covers operations that returned an error to the operator
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

// accepted spellings in configuration files and LOG_LEVEL
var levelAliases = map[string]Level{
	"debug":   DebugLevel,
	"info":    InfoLevel,
	"warn":    WarnLevel,
	"warning": WarnLevel,
	"error":   ErrorLevel,
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel converts a configured level name. Unknown names fall back to INFO.
func ParseLevel(s string) Level {
	if l, ok := levelAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return InfoLevel
}

// UnmarshalText lets a Level be decoded straight from YAML or env values
func (l *Level) UnmarshalText(text []byte) error {
	*l = ParseLevel(string(text))
	return nil
}

// Field is one key of a structured log line
type Field struct {
	Key   string
	Value any
}

// Logger is what every sewertrace package logs through. Components take one
// at construction and fall back to NopLogger when none is given.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child carrying fields on every line, typically the
	// component and the session id
	With(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// JSONLogger writes one JSON object per line
type JSONLogger struct {
	writer io.Writer
	level  Level
	fields []Field
	mu     sync.Mutex
}

// LogEntry is the shape of a line written by JSONLogger
type LogEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}

func (NopLogger) Info(string, ...Field) {}

func (NopLogger) Warn(string, ...Field) {}

func (NopLogger) Error(string, ...Field) {}

func (n NopLogger) With(...Field) Logger { return n }

func (NopLogger) SetLevel(Level) {}

func (NopLogger) GetLevel() Level { return InfoLevel }

// NewNopLogger returns the logger components use when none is configured
func NewNopLogger() Logger {
	return NopLogger{}
}

// TimedOperation logs an operation once it ends, with its latency
type TimedOperation struct {
	logger Logger
	msg    string
	start  time.Time
	fields []Field
}
