package main

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// initTracing installs a process-wide SDK TracerProvider so every span
// the engine opens (workflow.tracer) has somewhere to go. No exporter is
// wired by default — pointing this at a collector is a deployment
// concern (OTEL_EXPORTER_OTLP_ENDPOINT and friends), not something this
// repo hardcodes — so spans are sampled and recorded in-process but
// only leave the process once an operator attaches a real exporter.
func initTracing() (shutdown func(context.Context) error) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
