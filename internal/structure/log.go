package structure

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Level classifies a log entry the way the admin panel and CLI display it.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelSuccess Level = "SUCCESS"
	LevelWarn    Level = "WARN"
	LevelError   Level = "ERROR"
)

// Entry is one line of a run log.
type Entry struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s]: %s", e.Level, e.Message)
}

// Log collects the human-readable output of a structure run and mirrors it to zap.
// A nil *Log discards entries.
type Log struct {
	entries []Entry
	logger  *zap.Logger
}

// NewLog returns a Log that also writes to logger (which may be nil).
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) add(level Level, format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.entries = append(l.entries, Entry{Level: level, Message: msg})
	switch level {
	case LevelWarn:
		l.logger.Warn(msg)
	case LevelError:
		l.logger.Error(msg)
	default:
		l.logger.Info(msg)
	}
}

func (l *Log) info(format string, args ...any)    { l.add(LevelInfo, format, args...) }
func (l *Log) success(format string, args ...any) { l.add(LevelSuccess, format, args...) }
func (l *Log) warn(format string, args ...any)    { l.add(LevelWarn, format, args...) }
func (l *Log) errorf(format string, args ...any)  { l.add(LevelError, format, args...) }

// Entries returns the collected entries.
func (l *Log) Entries() []Entry {
	if l == nil {
		return nil
	}
	return l.entries
}

// String renders the log one entry per line.
func (l *Log) String() string {
	var b strings.Builder
	for _, e := range l.Entries() {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
