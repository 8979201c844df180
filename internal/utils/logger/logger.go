package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fatih/color"
)

// Logger is a tagged console logger. Each subsystem creates its own with a
// short uppercase tag so interleaved output stays readable.
type Logger struct {
	tag   string
	debug bool
}

type level struct {
	name  string
	emoji string
	print func(format string, a ...interface{})
}

var (
	levelInfo    = level{"INFO", "ℹ️ ", color.Cyan}
	levelSuccess = level{"SUCCESS", "✅ ", color.Green}
	levelWarn    = level{"WARN", "⚠️ ", color.Yellow}
	levelError   = level{"ERROR", "❌ ", color.Red}
	levelDebug   = level{"DEBUG", "🔍 ", color.Magenta}
)

func New(tag string) *Logger {
	return &Logger{
		tag:   tag,
		debug: os.Getenv("LOG_DEBUG") == "true",
	}
}

func (l *Logger) log(lv level, msg string, args ...interface{}) {
	_, file, line, _ := runtime.Caller(2)
	lv.print("%s | %s | %s | %s:%d | %s | %s",
		lv.emoji,
		time.Now().Format("2006-01-02 15:04:05"),
		lv.name,
		filepath.Base(file),
		line,
		l.tag,
		fmt.Sprintf(msg, args...),
	)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(levelInfo, msg, args...)
}

func (l *Logger) Success(msg string, args ...interface{}) {
	l.log(levelSuccess, msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(levelWarn, msg, args...)
}

// Error logs and wraps the error so callers can log and return in one step.
func (l *Logger) Error(msg string, err error, args ...interface{}) error {
	args = append(args, err)
	l.log(levelError, msg, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// Debug only prints when LOG_DEBUG=true
func (l *Logger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.log(levelDebug, msg, args...)
}
