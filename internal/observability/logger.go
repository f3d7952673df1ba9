package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// level is shared by every logger built by NewLogger so debug mode can be toggled at runtime.
var (
	level     = zap.NewAtomicLevelAt(zap.InfoLevel)
	baseLevel = zap.InfoLevel
)

func NewLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	parsed := parseLogLevel(os.Getenv("LOG_LEVEL"))
	baseLevel = parsed.Level()
	level.SetLevel(baseLevel)
	config.Level = level

	return config.Build()
}

// SetDebug switches all loggers to debug level, or back to the level chosen at startup.
func SetDebug(on bool) {
	if on {
		level.SetLevel(zap.DebugLevel)
		return
	}
	level.SetLevel(baseLevel)
}

// DebugEnabled reports whether debug output is currently enabled.
func DebugEnabled() bool {
	return level.Enabled(zap.DebugLevel)
}

func parseLogLevel(s string) zap.AtomicLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "WARN":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "ERROR":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
