// Package logger provides component-tagged logging for picochat on top of
// zerolog.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[string]LogLevel{
	"debug":   DEBUG,
	"info":    INFO,
	"warn":    WARN,
	"warning": WARN,
	"error":   ERROR,
}

var (
	mu   sync.RWMutex
	base = newLogger(os.Stderr, INFO)
	file *os.File
)

func newLogger(w io.Writer, level LogLevel) zerolog.Logger {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(toZerolog(level)).With().Timestamp().Logger()
}

func toZerolog(level LogLevel) zerolog.Level {
	switch level {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a config string to a LogLevel. Unknown names mean INFO.
func ParseLevel(s string) LogLevel {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return INFO
}

// SetLevel changes the minimum level of the current output.
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	base = base.Level(toZerolog(level))
}

// SetOutput redirects all logging to w.
func SetOutput(w io.Writer, level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	base = newLogger(w, level)
}

// EnableFileLogging appends JSON log lines to path instead of stderr.
func EnableFileLogging(path string, level LogLevel) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
	}
	file = f
	base = zerolog.New(f).Level(toZerolog(level)).With().Timestamp().Logger()
	return nil
}

// DisableFileLogging closes the log file, if any, and goes back to stderr.
func DisableFileLogging() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		level := base.GetLevel()
		file.Close()
		file = nil
		base = newLogger(os.Stderr, INFO).Level(level)
	}
}

func logMessage(level zerolog.Level, component string, message string, fields map[string]interface{}) {
	mu.RLock()
	l := base
	mu.RUnlock()

	ev := l.WithLevel(level)
	if ev == nil {
		return
	}
	if component != "" {
		ev = ev.Str("component", component)
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(message)
}

func Debug(message string) {
	logMessage(zerolog.DebugLevel, "", message, nil)
}

func DebugC(component string, message string) {
	logMessage(zerolog.DebugLevel, component, message, nil)
}

func DebugCF(component string, message string, fields map[string]interface{}) {
	logMessage(zerolog.DebugLevel, component, message, fields)
}

func Info(message string) {
	logMessage(zerolog.InfoLevel, "", message, nil)
}

func InfoC(component string, message string) {
	logMessage(zerolog.InfoLevel, component, message, nil)
}

func InfoCF(component string, message string, fields map[string]interface{}) {
	logMessage(zerolog.InfoLevel, component, message, fields)
}

func Warn(message string) {
	logMessage(zerolog.WarnLevel, "", message, nil)
}

func WarnC(component string, message string) {
	logMessage(zerolog.WarnLevel, component, message, nil)
}

func WarnCF(component string, message string, fields map[string]interface{}) {
	logMessage(zerolog.WarnLevel, component, message, fields)
}

func Error(message string) {
	logMessage(zerolog.ErrorLevel, "", message, nil)
}

func ErrorC(component string, message string) {
	logMessage(zerolog.ErrorLevel, component, message, nil)
}

func ErrorCF(component string, message string, fields map[string]interface{}) {
	logMessage(zerolog.ErrorLevel, component, message, fields)
}
