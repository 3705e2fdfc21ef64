package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one below Debug.
const TraceLevel = zapcore.DebugLevel - 1

// LevelFromString parses trace, debug, info, warn or error.
func LevelFromString(level string) (zapcore.Level, error) {
	s := strings.ToLower(strings.TrimSpace(level))
	if s == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// encodeLevel renders TraceLevel as "trace"; zap would print "Level(-2)".
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}
