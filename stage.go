package stagepipe

import (
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Stage is a named pool of workers sharing one input queue and one output queue.
//
// All the workers pull from the same queue: the next item goes to whichever worker calls
// Get first. With more than one worker, items may therefore be forwarded in a different
// order than they were queued. A single worker stage keeps the FIFO order.
type Stage[In, Out any] struct {
	name    string
	in      *Queue[In]
	out     *Queue[Out]
	workers []*Worker[In, Out]

	pool     *ants.Pool
	ownsPool bool
	wg       sync.WaitGroup
	logger   zerolog.Logger

	mu       sync.Mutex
	failures []*TransformError
	forward  []error

	stopOnce sync.Once
	stopErr  error
}

// StartStage spawns n workers applying transform to the items of in and forwarding the results
// to out. out may be nil for a terminal stage: results are then dropped.
func StartStage[In, Out any](name string, n int, transform Transform[In, Out], in *Queue[In], out *Queue[Out], opts ...Option) (*Stage[In, Out], error) {
	if n <= 0 {
		return nil, fmt.Errorf("stage %q: %w: %d", name, ErrInvalidWorkerCount, n)
	}
	if err := validateTransform(transform); err != nil {
		return nil, fmt.Errorf("stage %q: %w", name, err)
	}
	if in == nil {
		return nil, fmt.Errorf("stage %q: nil input queue", name)
	}

	o := newOptions(opts)
	s := &Stage[In, Out]{
		name:   name,
		in:     in,
		out:    out,
		pool:   o.pool,
		logger: o.logger.With().Str("stage", name).Logger(),
	}

	if s.pool == nil {
		logger := s.logger
		pool, err := newPool(n, append([]ants.Option{ants.WithLogger(&logger)}, o.poolOpts...)...)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", name, err)
		}
		s.pool, s.ownsPool = pool, true
	} else if s.pool.Cap() < n {
		return nil, fmt.Errorf("stage %q: %w: pool of %d for %d workers", name, ErrInvalidWorkerCount, s.pool.Cap(), n)
	}

	s.workers = lo.Times(n, func(i int) *Worker[In, Out] {
		w := &Worker[In, Out]{
			id:        i,
			stage:     name,
			in:        in,
			out:       out,
			transform: transform,
			onFailure: s.recordFailure,
			onForward: s.recordForward,
			logger:    s.logger,
			metrics:   o.metrics,
		}
		w.state.Store(int32(WorkerRunning))
		return w
	})

	for i, w := range s.workers {
		s.wg.Add(1)
		if err := s.pool.Submit(func() {
			defer s.wg.Done()
			w.run()
		}); err != nil {
			s.wg.Done()
			// The workers already running are parked on the input queue: terminate them.
			// The queue is unusable afterwards.
			if i > 0 {
				_ = in.Close(i)
				s.wg.Wait()
			}
			if s.ownsPool {
				s.pool.Release()
			}
			return nil, fmt.Errorf("stage %q: start worker %d: %w", name, i, err)
		}
	}

	s.logger.Info().Int("workers", n).Msg("stage started")
	return s, nil
}

// Stop closes the input queue with one terminator per worker, waits for the queue to be
// drained, then waits for every worker to terminate. If the input queue was already closed,
// Stop releases the stage pool without waiting for the workers and returns ErrQueueClosed.
//
// The caller must guarantee that nothing puts on the input queue anymore. Stop is
// idempotent: later calls do nothing and return the first call result.
func (s *Stage[In, Out]) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop()
	})
	return s.stopErr
}

func (s *Stage[In, Out]) stop() error {
	if s.ownsPool {
		defer s.pool.Release()
	}
	if err := s.in.Close(len(s.workers)); err != nil {
		// Terminators were never pushed for these workers: they are not awaited, whoever
		// closed the queue owns their termination.
		return fmt.Errorf("stage %q: close input: %w", s.name, err)
	}
	s.in.Join()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info().
		Int64("handled", s.handled()).
		Int("failed", len(s.failures)).
		Msg("stage stopped")
	return errors.Join(s.forward...)
}

// Name returns the stage name.
func (s *Stage[In, Out]) Name() string {
	return s.name
}

// Workers returns the stage workers.
func (s *Stage[In, Out]) Workers() []*Worker[In, Out] {
	return append([]*Worker[In, Out](nil), s.workers...)
}

// Running returns the number of workers which have not observed a terminator yet.
func (s *Stage[In, Out]) Running() int {
	return lo.CountBy(s.workers, func(w *Worker[In, Out]) bool {
		return w.State() == WorkerRunning
	})
}

// Handled returns the number of items acknowledged by the stage workers, failed ones included.
func (s *Stage[In, Out]) Handled() int64 {
	return s.handled()
}

// Failures returns the transform failures recorded so far.
func (s *Stage[In, Out]) Failures() []*TransformError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*TransformError(nil), s.failures...)
}

func (s *Stage[In, Out]) handled() int64 {
	return lo.SumBy(s.workers, func(w *Worker[In, Out]) int64 {
		return w.Handled()
	})
}

func (s *Stage[In, Out]) recordFailure(err *TransformError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

func (s *Stage[In, Out]) recordForward(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forward = append(s.forward, err)
}
