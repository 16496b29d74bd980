package stagepipe

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// WorkerState is the lifecycle state of a Worker.
type WorkerState int32

const (
	WorkerRunning WorkerState = iota
	WorkerTerminated
)

func (s WorkerState) String() string {
	switch s {
	case WorkerRunning:
		return "running"
	case WorkerTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

// Worker runs the fetch, transform, forward loop of a stage until it reads a terminator.
// Workers are created and owned by a Stage.
type Worker[In, Out any] struct {
	id        int
	stage     string
	in        *Queue[In]
	out       *Queue[Out] // nil for a terminal stage
	transform Transform[In, Out]

	state   atomic.Int32
	handled atomic.Int64
	failed  atomic.Int64

	onFailure func(*TransformError)
	onForward func(error)
	logger    zerolog.Logger
	metrics   *Metrics
}

// ID returns the index of the worker in its stage.
func (w *Worker[In, Out]) ID() int {
	return w.id
}

// State returns the current worker state.
func (w *Worker[In, Out]) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Handled returns the number of items retrieved and acknowledged by this worker, failed ones included.
func (w *Worker[In, Out]) Handled() int64 {
	return w.handled.Load()
}

// Failed returns the number of items whose transform failed in this worker.
func (w *Worker[In, Out]) Failed() int64 {
	return w.failed.Load()
}

func (w *Worker[In, Out]) run() {
	w.metrics.workerStarted(w.stage)
	defer w.metrics.workerStopped(w.stage)

	for {
		msg := w.in.Get()
		item, ok := msg.Value()
		if !ok {
			w.state.Store(int32(WorkerTerminated))
			w.logger.Debug().Int("worker", w.id).Msg("worker terminated")
			return
		}
		w.handle(item)
	}
}

// handle processes one item. The item is acknowledged on every path, so a failing item never
// blocks a Join on the input queue.
func (w *Worker[In, Out]) handle(item In) {
	defer w.in.TaskDone()
	defer w.handled.Add(1)

	start := time.Now()
	result, err := w.apply(item)
	w.metrics.observe(w.stage, start)
	if err != nil {
		w.failed.Add(1)
		w.metrics.failed(w.stage)
		terr := &TransformError{Stage: w.stage, Worker: w.id, Item: item, Err: err}
		w.logger.Warn().Int("worker", w.id).Err(err).Msg("transform failed")
		w.onFailure(terr)
		return
	}

	if w.out != nil {
		if err := w.out.Put(result); err != nil {
			w.logger.Error().Int("worker", w.id).Err(err).Msg("forward failed")
			w.onForward(fmt.Errorf("stage %q worker %d: forward: %w", w.stage, w.id, err))
			return
		}
	}
	w.metrics.processed(w.stage)
}

func (w *Worker[In, Out]) apply(item In) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTransformPanic, r)
		}
	}()
	return w.transform(item)
}
