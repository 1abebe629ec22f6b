package fn

import "fmt"

// Result carries either a value or the error that prevented producing it.
// Construct with Ok or Err; the zero value behaves as an error Result.
type Result[T any] struct {
	val T
	err error
	ok  bool
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] { return Result[T]{val: v, ok: true} }

// Err wraps a failure.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// Errf builds an error Result from a format string.
func Errf[T any](format string, args ...any) Result[T] {
	return Result[T]{err: fmt.Errorf(format, args...)}
}

// IsOk reports whether the Result holds a value.
func (r Result[T]) IsOk() bool { return r.ok }

// IsErr reports whether the Result holds an error.
func (r Result[T]) IsErr() bool { return !r.ok }

// Unwrap returns the underlying (value, error) pair.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// Must returns the value, panicking if the Result holds an error.
func (r Result[T]) Must() T {
	if !r.ok {
		panic(r.err)
	}
	return r.val
}

// UnwrapOr returns the value, or fallback when the Result holds an error.
func (r Result[T]) UnwrapOr(fallback T) T {
	if !r.ok {
		return fallback
	}
	return r.val
}

// FromPair lifts a conventional (value, error) return into a Result.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// Collect flattens a slice of Results into a Result of a slice, failing
// on the first error encountered.
func Collect[T any](results []Result[T]) Result[[]T] {
	vals := make([]T, len(results))
	for i, r := range results {
		if r.IsErr() {
			return Err[[]T](r.err)
		}
		vals[i] = r.val
	}
	return Ok(vals)
}
