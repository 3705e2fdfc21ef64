package logging

import (
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const instrumentationName = "github.com/fyrsmithlabs/vectord"

// newCore tees the redacting stdout core with the otelzap bridge, then
// applies sampling below Error.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	enc, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
	if err != nil {
		return nil, err
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), cfg.Level)

	if cfg.OTEL && otelProvider != nil {
		bridge := otelzap.NewCore(instrumentationName, otelzap.WithLoggerProvider(otelProvider))
		core = zapcore.NewTee(core, &levelRange{Core: bridge, min: cfg.Level, max: zapcore.FatalLevel})
	}

	if !cfg.Sampling.Enabled {
		return core, nil
	}
	sampled := zapcore.NewSamplerWithOptions(
		&levelRange{Core: core, min: TraceLevel, max: zapcore.WarnLevel},
		cfg.Sampling.Tick,
		cfg.Sampling.Initial,
		cfg.Sampling.Thereafter,
	)
	unsampled := &levelRange{Core: core, min: zapcore.ErrorLevel, max: zapcore.FatalLevel}
	return zapcore.NewTee(unsampled, sampled), nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = encodeLevel
	if format == "console" {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// levelRange passes entries with min <= level <= max.
type levelRange struct {
	zapcore.Core
	min, max zapcore.Level
}

func (c *levelRange) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && lvl <= c.max && c.Core.Enabled(lvl)
}

func (c *levelRange) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if e.Level < c.min || e.Level > c.max {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelRange) With(fields []zapcore.Field) zapcore.Core {
	return &levelRange{Core: c.Core.With(fields), min: c.min, max: c.max}
}
