package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry, Trace included, for assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger creates a recording logger.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, observed: observed}
}

// All returns the recorded entries.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

func (t *TestLogger) find(level zapcore.Level, msgContains string) *observer.LoggedEntry {
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, msgContains) {
			return &e
		}
	}
	return nil
}

// AssertLogged fails tb unless an entry at level contains msgContains.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if t.find(level, msgContains) == nil {
		tb.Errorf("no %s entry containing %q in %d entries", level, msgContains, len(t.observed.All()))
	}
}

// AssertNotLogged fails tb if an entry at level contains msgContains.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if e := t.find(level, msgContains); e != nil {
		tb.Errorf("unexpected %s entry %q", level, e.Message)
	}
}

// AssertField fails tb unless an entry with message msg carries field
// key with the string value want.
func (t *TestLogger) AssertField(tb testing.TB, msg, key, want string) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		if v, ok := e.ContextMap()[key]; ok && v == want {
			return
		}
	}
	tb.Errorf("no entry %q with %s=%q", msg, key, want)
}
