// Package logger provides structured logging for CQmanager.
// It is a thin wrapper around logrus which accepts log fields as
// variadic key-value arguments.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger handles structured log messages from CQmanager code.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	WithFields(args ...interface{}) Logger
	Sub(ns string, args ...interface{}) Logger
}

// New returns a new Logger instance with the given namespace.
func New(ns string, args ...interface{}) Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: defaultTimestampFormat,
	})

	f := fields(args...)
	f["ns"] = ns
	return &log{root: base, entry: base.WithFields(f)}
}

type log struct {
	root  *logrus.Logger
	entry *logrus.Entry
}

// Debug logs a debug message.
//
// After the first argument, arguments are key-value pairs which are
// written as structured fields.
//
//	log.Debug("queue inspected", "pending", n)
func (l *log) Debug(msg string, args ...interface{}) {
	defer recoverLogErr()
	l.entry.WithFields(fields(args...)).Debug(msg)
}

// Info logs an info message.
func (l *log) Info(msg string, args ...interface{}) {
	defer recoverLogErr()
	l.entry.WithFields(fields(args...)).Info(msg)
}

// Warn logs a warning message.
func (l *log) Warn(msg string, args ...interface{}) {
	defer recoverLogErr()
	l.entry.WithFields(fields(args...)).Warn(msg)
}

// Error logs an error message.
//
// Error has a two-argument shortcut for wrapping a single error value:
//
//	log.Error("launch failed", err)
func (l *log) Error(msg string, args ...interface{}) {
	defer recoverLogErr()
	var f map[string]interface{}
	if len(args) == 1 {
		f = fields("error", args[0])
	} else {
		f = fields(args...)
	}
	l.entry.WithFields(f).Error(msg)
}

// WithFields returns a child Logger which includes the given fields
// in every message.
func (l *log) WithFields(args ...interface{}) Logger {
	defer recoverLogErr()
	return &log{root: l.root, entry: l.entry.WithFields(fields(args...))}
}

// Sub returns a child Logger with the "ns" field replaced.
func (l *log) Sub(ns string, args ...interface{}) Logger {
	f := fields(args...)
	f["ns"] = ns
	return &log{root: l.root, entry: l.entry.WithFields(f)}
}

// SetLevel sets the logging level of the underlying logrus logger.
func (l *log) SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		l.root.SetLevel(logrus.DebugLevel)
	case "info":
		l.root.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		l.root.SetLevel(logrus.WarnLevel)
	case "error":
		l.root.SetLevel(logrus.ErrorLevel)
	default:
		l.root.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput sets the log output writer.
func (l *log) SetOutput(w io.Writer) {
	l.root.SetOutput(w)
}

// Discard configures the logger to drop all messages. Useful in tests.
func (l *log) Discard() {
	l.root.SetOutput(io.Discard)
}

// recoverLogErr recovers from panics during logging. Logging should
// never crash the orchestrator, so this failsafe swallows them.
func recoverLogErr() {
	if r := recover(); r != nil {
		fmt.Println("Recovered from logging panic", r)
	}
}

func fields(args ...interface{}) map[string]interface{} {
	f := make(map[string]interface{}, len(args)/2)
	if len(args) == 1 {
		f["unknown"] = args[0]
		return f
	}
	for i := 0; i+1 < len(args); i += 2 {
		k, ok := args[i].(string)
		if !ok {
			k = fmt.Sprintf("%v", args[i])
		}
		f[k] = args[i+1]
	}
	if len(args)%2 != 0 {
		f["unknown"] = args[len(args)-1]
	}
	return f
}
