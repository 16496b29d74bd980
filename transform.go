package stagepipe

import (
	"fmt"

	"github.com/samber/lo"
)

// Transform maps one item to one result and may fail. A transform is called concurrently by
// every worker of its stage, so it must not share mutable state unless it synchronizes it.
type Transform[In, Out any] func(In) (Out, error)

// Process defines a transform which cannot fail.
type Process[In, Out any] func(In) Out

// AsTransform decorates a Process, in order to make it seen as a Transform.
func AsTransform[In, Out any](proc Process[In, Out]) Transform[In, Out] {
	return func(in In) (Out, error) { return proc(in), nil }
}

// Identity returns a transform forwarding its input untouched.
func Identity[T any]() Transform[T, T] {
	return func(t T) (T, error) { return t, nil }
}

// Link merges several transforms into one, applied in order. It stops at the first failure.
func Link[T any](transforms ...Transform[T, T]) Transform[T, T] {
	return func(t T) (T, error) {
		var err error
		result := lo.Reduce(transforms, func(val T, tr Transform[T, T], _ int) T {
			if err != nil {
				return val
			}
			var out T
			out, err = tr(val)
			if err != nil {
				return val
			}
			return out
		}, t)
		return result, err
	}
}

func validateTransform[In, Out any](tr Transform[In, Out]) error {
	if tr == nil {
		var in In
		var out Out
		return fmt.Errorf("%w from %T to %T: nil function", ErrInvalidTransform, in, out)
	}
	return nil
}
