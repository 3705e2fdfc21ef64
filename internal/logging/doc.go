// Package logging is vectord's structured logger: zap underneath, with
// context-first methods that stamp every entry with the request it
// belongs to.
//
// Entries written inside a gRPC call carry:
//
//	trace_id, span_id   from the otel span in ctx
//	request.id          the id the registry assigned (or the client sent)
//	request.kind        Insert, Search, Flush, ... or OtherReq
//	collection          the target collection, when the handler set it
//
// The stdout core redacts by field name and by value pattern, so an
// engine API key never reaches the log even if a caller forgets to wrap
// it. When telemetry exports logs, a second otelzap core tees every
// entry to the OTLP log provider.
//
// Below Error, entries are sampled per tick; errors always pass. The
// custom Trace level sits under Debug for per-call admission
// bookkeeping.
//
// Tests use NewTestLogger, which records entries in memory:
//
//	tl := logging.NewTestLogger()
//	ctrl, _ := admission.New(cfg, tl.Logger)
//	...
//	tl.AssertLogged(t, zapcore.WarnLevel, "insert exceeds admission budget")
package logging
