package otel

import (
	"context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var ServerOptions = trace.WithSpanKind(trace.SpanKindServer)

const InstrumentationName = "github.com/GlintPay/gsni"

// GetTracer prefers the provider of any span already in the context, so handshake spans nest under it
func GetTracer(ctx context.Context) trace.Tracer {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return newTracer(span.TracerProvider())
	}
	return newTracer(otel.GetTracerProvider())
}

// StartSpan returns a no-op end function when tracing is off
func StartSpan(ctx context.Context, enabled bool, name string) (context.Context, func()) {
	if !enabled {
		return ctx, func() {}
	}
	ctx, span := GetTracer(ctx).Start(ctx, name, ServerOptions)
	return ctx, func() { span.End() }
}

func newTracer(tp trace.TracerProvider) trace.Tracer {
	return tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion("semver:1.0"))
}
