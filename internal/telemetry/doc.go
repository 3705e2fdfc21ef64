// Package telemetry wires OpenTelemetry traces, metrics and logs for
// vectord.
//
// Every gRPC call runs under a server span whose parent is extracted
// from incoming metadata, so a client that sends a W3C traceparent sees
// the vectord span inside its own trace. Export goes to an OTLP
// collector over gRPC or HTTP; logs are exported over gRPC only and
// reach the collector through the otelzap bridge in package logging.
//
// An exporter that cannot be built marks the instance degraded. The
// server keeps running and /health reports the reason.
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
