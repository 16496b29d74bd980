package stagepipe

import (
	"errors"
	"fmt"
)

var (
	ErrQueueClosed        = errors.New("queue closed")
	ErrInvalidCapacity    = errors.New("invalid queue capacity")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
	ErrInvalidTransform   = errors.New("invalid transform")
	ErrNoStages           = errors.New("pipeline has no stage")
	ErrAlreadyRun         = errors.New("pipeline already run")
	ErrInvalidConfig      = errors.New("invalid pipeline configuration")
	ErrTransformPanic     = errors.New("transform panicked")
)

// TransformError wraps the failure of a stage transform for a single item.
// It never stops the worker which produced it.
type TransformError struct {
	Stage  string
	Worker int
	Item   any
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("stage %q worker %d: transform %v: %v", e.Stage, e.Worker, e.Item, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// InvariantViolation is the panic value raised when a queue is misused
// (acknowledging more items than retrieved, closing for no consumer...).
// It denotes a construction bug and is not meant to be recovered.
type InvariantViolation struct {
	Op     string
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Reason)
}

func violate(op, format string, args ...any) {
	panic(&InvariantViolation{Op: op, Reason: fmt.Sprintf(format, args...)})
}
