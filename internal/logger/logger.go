package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type Logger struct {
	level LogLevel
	zl    zerolog.Logger
}

// Log is the exported, initialized logger instance
var Log *Logger

// init function initializes Log with the log level from LOG_LEVEL environment variable
func init() {
	level := parseLogLevelFromEnv()
	Log = NewLogger(level, os.Stdout)
}

// parseLogLevelFromEnv reads the LOG_LEVEL environment variable and returns the corresponding LogLevel.
// Defaults to INFO if LOG_LEVEL is unset or invalid.
func parseLogLevelFromEnv() LogLevel {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// ParseLevel maps a level name to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func NewLogger(level LogLevel, out io.Writer) *Logger {
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime, NoColor: true}
	return &Logger{
		level: level,
		zl:    zerolog.New(writer).Level(level.zerolog()).With().Timestamp().Logger(),
	}
}

// SetLevel changes the level of the global logger, used when a CLI flag overrides LOG_LEVEL.
func SetLevel(level LogLevel) {
	Log.level = level
	Log.zl = Log.zl.Level(level.zerolog())
}

func (l *Logger) event(level LogLevel, prefix string) *zerolog.Event {
	var e *zerolog.Event
	switch level {
	case DEBUG:
		e = l.zl.Debug()
	case INFO:
		e = l.zl.Info()
	case WARN:
		e = l.zl.Warn()
	case ERROR:
		e = l.zl.Error()
	default:
		e = l.zl.WithLevel(zerolog.FatalLevel)
	}
	if prefix != "" {
		e = e.Str("module", prefix)
	}
	return e
}

// Debug logs debug messages if the level is set to DEBUG
func (l *Logger) Debug(msg string, v ...interface{}) {
	l.DebugWithPrefix("", msg, v...)
}

// DebugWithPrefix logs debug messages with a specific prefix
func (l *Logger) DebugWithPrefix(prefix, msg string, v ...interface{}) {
	l.event(DEBUG, prefix).Msgf(msg, v...)
}

// Info logs informational messages if the level is set to INFO or lower
func (l *Logger) Info(msg string, v ...interface{}) {
	l.InfoWithPrefix("", msg, v...)
}

// InfoWithPrefix logs informational messages with a specific prefix
func (l *Logger) InfoWithPrefix(prefix, msg string, v ...interface{}) {
	l.event(INFO, prefix).Msgf(msg, v...)
}

// Warn logs warning messages if the level is set to WARN or lower
func (l *Logger) Warn(msg string, v ...interface{}) {
	l.WarnWithPrefix("", msg, v...)
}

// WarnWithPrefix logs warning messages with a specific prefix
func (l *Logger) WarnWithPrefix(prefix, msg string, v ...interface{}) {
	l.event(WARN, prefix).Msgf(msg, v...)
}

// Error logs error messages if the level is set to ERROR or lower
func (l *Logger) Error(msg string, v ...interface{}) {
	l.ErrorWithPrefix("", msg, v...)
}

// ErrorWithPrefix logs error messages with a specific prefix
func (l *Logger) ErrorWithPrefix(prefix, msg string, v ...interface{}) {
	l.event(ERROR, prefix).Msgf(msg, v...)
}

// Fatal logs fatal messages and exits the program
func (l *Logger) Fatal(msg string, v ...interface{}) {
	l.FatalWithPrefix("", msg, v...)
}

// FatalWithPrefix logs fatal messages with a specific prefix and exits the program
func (l *Logger) FatalWithPrefix(prefix, msg string, v ...interface{}) {
	l.event(FATAL, prefix).Msgf(msg, v...)
	os.Exit(1)
}

// Wrapper functions to simplify logging with optional prefix

func Debug(msg string, v ...interface{}) {
	Log.Debug(msg, v...)
}

func DebugWithPrefix(prefix, msg string, v ...interface{}) {
	Log.DebugWithPrefix(prefix, msg, v...)
}

func Info(msg string, v ...interface{}) {
	Log.Info(msg, v...)
}

func InfoWithPrefix(prefix, msg string, v ...interface{}) {
	Log.InfoWithPrefix(prefix, msg, v...)
}

func Warn(msg string, v ...interface{}) {
	Log.Warn(msg, v...)
}

func WarnWithPrefix(prefix, msg string, v ...interface{}) {
	Log.WarnWithPrefix(prefix, msg, v...)
}

func Error(msg string, v ...interface{}) {
	Log.Error(msg, v...)
}

func ErrorWithPrefix(prefix, msg string, v ...interface{}) {
	Log.ErrorWithPrefix(prefix, msg, v...)
}

func Fatal(msg string, v ...interface{}) {
	Log.Fatal(msg, v...)
}

func FatalWithPrefix(prefix, msg string, v ...interface{}) {
	Log.FatalWithPrefix(prefix, msg, v...)
}
