package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// ParseLogLevelString parses a LOG_LEVEL value. Only debug, info, warn
// (or warning) and error are accepted, in any case; anything else yields
// defaultLevel.
func ParseLogLevelString(levelStr string, defaultLevel zapcore.Level) zapcore.Level {
	s := strings.ToLower(strings.TrimSpace(levelStr))
	if s == "" {
		return defaultLevel
	}
	if s == "warning" {
		s = "warn"
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil || level > zapcore.ErrorLevel {
		return defaultLevel
	}
	return level
}
