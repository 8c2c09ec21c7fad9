// Package tracing provides a thin span-starting helper, used around the
// Coordinator's L2 RPCs (WAL replay starts no span). It wraps
// go.opentelemetry.io/otel directly rather than re-exporting a parallel
// API; callers configure the global TracerProvider however they like
// (typically left as the OTel no-op provider in tests).
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kirky-x/twotier"

// Tracer returns the package-scoped tracer, resolved lazily against
// whatever global TracerProvider is installed at call time so tests don't
// need to install one at package-init.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a span named name under ctx's current span, returning
// the child context and an end function. Call the end function (typically
// via defer) regardless of outcome; pass the operation's error so failed
// spans are marked accordingly.
func StartSpan(ctx context.Context, name string, attrs ...trace.SpanStartOption) (context.Context, func(err error)) {
	ctx, span := Tracer().Start(ctx, name, attrs...)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}
