package main

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// setupTracing installs a process-local TracerProvider when tracing is
// enabled. No span exporter is registered: the OTLP exporter packages the
// teacher wires (internal/observability/tracer.go) were dropped as
// unnecessary I/O surface for a one-shot CLI (see DESIGN.md); spans are
// still created and ended so request-scoped attributes and status codes
// are available to any processor added later via sdktrace.WithSpanProcessor.
func setupTracing(enabled bool) (trace.Tracer, func(context.Context) error) {
	if !enabled {
		return otel.Tracer("kigalisim"), func(context.Context) error { return nil }
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp.Tracer("kigalisim"), tp.Shutdown
}

// traceScenario wraps a scenario run in a span carrying the scenario name
// and trial count, recording an error status on failure.
func traceScenario(ctx context.Context, tracer trace.Tracer, scenario string, trials int, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "kigalisim.run_scenario", trace.WithAttributes(
		attribute.String("kigalisim.scenario", scenario),
		attribute.Int("kigalisim.trials", trials),
	))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
