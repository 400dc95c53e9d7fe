package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Leveled logger shared by the server, the gateway and the admin CLI.
// Backed by a single logrus instance; Init(level) picks the threshold and
// SetFormat switches between text and json output.

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// Fields is an alias so callers don't need to import logrus.
type Fields = logrus.Fields

var (
	mu    sync.RWMutex
	base  = newBase(os.Stdout)
	level = LevelInfo
)

func newBase(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02T15:04:05Z07:00"})
	return l
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		level = LevelDebug
	case "warn", "warning":
		level = LevelWarn
	case "error":
		level = LevelError
	case "fatal":
		level = LevelFatal
	default:
		level = LevelInfo
	}
}

// SetFormat selects "json" or text (anything else) output.
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02T15:04:05Z07:00"})
}

// SetOutput redirects log output (tests, CLI).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base.SetOutput(w)
}

// Writer returns an io.Writer that logs each line at info level. Used to
// route gin's request log through the same sink.
func Writer() io.Writer {
	return base.WriterLevel(logrus.InfoLevel)
}

func shouldLog(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func Debugf(format string, v ...interface{}) {
	if !shouldLog(LevelDebug) {
		return
	}
	base.Debugf(format, v...)
}

func Infof(format string, v ...interface{}) {
	if !shouldLog(LevelInfo) {
		return
	}
	base.Infof(format, v...)
}

func Warnf(format string, v ...interface{}) {
	if !shouldLog(LevelWarn) {
		return
	}
	base.Warnf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	if !shouldLog(LevelError) {
		return
	}
	base.Errorf(format, v...)
}

func Fatalf(format string, v ...interface{}) {
	base.Errorf(format, v...)
	os.Exit(1)
}

// Println kept for brief messages (maps to Info)
func Println(v ...interface{}) {
	if !shouldLog(LevelInfo) {
		return
	}
	base.Infoln(v...)
}

// Debug/Info/Warn/Error helpers that accept a single string
func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// Entry is a logger carrying structured fields. It honours the global level.
type Entry struct {
	e *logrus.Entry
}

// WithFields returns an Entry that attaches fields to every line.
func WithFields(f Fields) *Entry {
	return &Entry{e: base.WithFields(f)}
}

func (e *Entry) WithField(k string, v interface{}) *Entry {
	return &Entry{e: e.e.WithField(k, v)}
}

func (e *Entry) Debugf(format string, v ...interface{}) {
	if shouldLog(LevelDebug) {
		e.e.Debugf(format, v...)
	}
}

func (e *Entry) Infof(format string, v ...interface{}) {
	if shouldLog(LevelInfo) {
		e.e.Infof(format, v...)
	}
}

func (e *Entry) Warnf(format string, v ...interface{}) {
	if shouldLog(LevelWarn) {
		e.e.Warnf(format, v...)
	}
}

func (e *Entry) Errorf(format string, v ...interface{}) {
	if shouldLog(LevelError) {
		e.e.Errorf(format, v...)
	}
}

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}
