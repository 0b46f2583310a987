package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultTimestampFormat = time.RFC3339

// Config describes configuration for the logger.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Formatter is "text" or "json".
	Formatter string
	// OutputFile, when set, appends logs to the given file
	// instead of stderr.
	OutputFile string
}

// DefaultConfig returns a Config instance with default values.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Formatter: "text",
	}
}

// DebugConfig returns a Config instance with debug level logging.
// Useful during testing.
func DebugConfig() Config {
	c := DefaultConfig()
	c.Level = "debug"
	return c
}

// Configure applies the given configuration to the logger.
func (l *log) Configure(conf Config) {
	l.SetLevel(conf.Level)

	switch conf.Formatter {
	case "json":
		l.root.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:   defaultTimestampFormat,
			DisableHTMLEscape: true,
		})
	default:
		l.root.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: defaultTimestampFormat,
		})
	}

	if conf.OutputFile != "" {
		out, err := os.OpenFile(
			conf.OutputFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666,
		)
		if err != nil {
			l.Error("Can't open log output file", "output", conf.OutputFile)
		} else {
			l.SetOutput(out)
		}
	}
}

// Configure applies the given configuration to a Logger created by New.
// Loggers from other sources are left unchanged.
func Configure(l Logger, conf Config) {
	if base, ok := l.(*log); ok {
		base.Configure(conf)
	}
}

// Discard drops all output of a Logger created by New. Useful in tests.
func Discard(l Logger) {
	if base, ok := l.(*log); ok {
		base.Discard()
	}
}

// PrintSimpleError prints out an error message with a red "ERROR:" prefix.
func PrintSimpleError(err error) {
	fmt.Fprintf(os.Stderr, "\x1b[31m%s\x1b[0m %s\n", "ERROR:", err.Error())
}
