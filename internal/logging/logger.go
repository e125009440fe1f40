package logging

import (
	"encoding/json"
	"log"
	"os"
	"strings"
)

// Logger is the sink every component writes to. Fields are rendered as JSON.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	default:
		return "ERROR"
	}
}

// LevelForEnv keeps request/response bodies out of production logs.
func LevelForEnv(env string) Level {
	if env == "production" {
		return LevelInfo
	}
	return LevelDebug
}

// StdLogger writes "[SOURCE] LEVEL msg {fields}" lines through the standard log package.
type StdLogger struct {
	source string
	min    Level
	out    *log.Logger
}

func New(source string, min Level) *StdLogger {
	return &StdLogger{
		source: strings.ToUpper(source),
		min:    min,
		out:    log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Named returns a logger sharing the output and level under another source tag.
func (l *StdLogger) Named(source string) *StdLogger {
	return &StdLogger{source: strings.ToUpper(source), min: l.min, out: l.out}
}

// SetOutput redirects the logger, mainly for tests.
func (l *StdLogger) SetOutput(out *log.Logger) {
	l.out = out
}

func (l *StdLogger) Debug(msg string, fields map[string]any) { l.log(LevelDebug, msg, fields) }
func (l *StdLogger) Info(msg string, fields map[string]any)  { l.log(LevelInfo, msg, fields) }
func (l *StdLogger) Error(msg string, fields map[string]any) { l.log(LevelError, msg, fields) }

func (l *StdLogger) log(level Level, msg string, fields map[string]any) {
	if level < l.min {
		return
	}
	if len(fields) == 0 {
		l.out.Printf("[%s] %s %s", l.source, level, msg)
		return
	}
	b, err := json.Marshal(fields)
	if err != nil {
		b = []byte(`{"fields_error":"` + err.Error() + `"}`)
	}
	l.out.Printf("[%s] %s %s %s", l.source, level, msg, b)
}

type nop struct{}

func (nop) Debug(string, map[string]any) {}
func (nop) Info(string, map[string]any)  {}
func (nop) Error(string, map[string]any) {}

// Nop discards everything.
func Nop() Logger { return nop{} }
