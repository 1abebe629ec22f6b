package fn

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "turbobot/fn"

// Stage transforms an In into an Out under a context, reporting failure
// through the Result rather than a bare error.
type Stage[In, Out any] func(context.Context, In) Result[Out]

// Pipeline chains same-typed stages left to right. The first stage that
// returns an error Result stops the chain.
func Pipeline[T any](stages ...Stage[T, T]) Stage[T, T] {
	return func(ctx context.Context, v T) Result[T] {
		r := Ok(v)
		for _, stage := range stages {
			if r.IsErr() {
				break
			}
			cur, _ := r.Unwrap()
			r = stage(ctx, cur)
		}
		return r
	}
}

// TapStage invokes f for its side effect and passes the value through.
func TapStage[T any](f func(context.Context, T)) Stage[T, T] {
	return func(ctx context.Context, v T) Result[T] {
		f(ctx, v)
		return Ok(v)
	}
}

// TracedStage wraps stage in an OpenTelemetry span. A failed stage records
// the error on the span and marks its status.
func TracedStage[In, Out any](name string, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		ctx, span := otel.Tracer(tracerName).Start(ctx, name)
		defer span.End()
		r := stage(ctx, in)
		if r.IsErr() {
			_, err := r.Unwrap()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return r
	}
}
