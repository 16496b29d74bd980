package stagepipe

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// SinkStageName is the name of the single worker stage draining the terminal queue into the sink.
const SinkStageName = "sink"

// StageSpec describes one stage of a pipeline.
type StageSpec[T any] struct {
	Name          string
	Workers       int // goroutines pulling from the stage input queue
	QueueCapacity int // capacity of the stage input queue
	Transform     Transform[T, T]
}

// Pipeline chains stages through bounded queues: queue i feeds stage i, the last stage
// feeds the terminal queue, which is drained into a Sink.
//
//	Run -> queue 0 -> stage 0 -> queue 1 -> stage 1 -> ... -> terminal queue -> sink
//
// A full queue blocks the workers of the stage feeding it, so the whole pipeline runs at the
// pace of its slowest stage without buffering more than the queue capacities.
type Pipeline[T any] struct {
	name      string
	queues    []*Queue[T] // len(stages)+1 queues, the last one is the terminal queue
	stages    []*Stage[T, T]
	sink      *Stage[T, T]
	collector *Collector[T] // nil for a caller provided sink
	pools     *Pools
	logger    zerolog.Logger
	ran       atomic.Bool
}

// Report summarizes a pipeline run.
type Report[T any] struct {
	Submitted int               // items fed to the first queue
	Processed int               // items recorded by the sink
	Failures  []*TransformError // per item failures, all stages and sink included
	Items     []T               // items recorded by the default collector, nil for a custom sink
}

// Failed returns the number of items which failed in any stage.
func (r *Report[T]) Failed() int {
	return len(r.Failures)
}

// Err joins all the item failures. It returns nil when every item went through.
func (r *Report[T]) Err() error {
	return errors.Join(lo.Map(r.Failures, func(e *TransformError, _ int) error { return e })...)
}

// New builds a pipeline collecting its output in memory, see Report.Items. The workers are
// started and wait for Run.
func New[T any](name string, specs []StageSpec[T], opts ...Option) (*Pipeline[T], error) {
	collector := &Collector[T]{}
	p, err := NewWithSink[T](name, specs, collector, opts...)
	if err != nil {
		return nil, err
	}
	p.collector = collector
	return p, nil
}

// NewWithSink builds a pipeline recording its output in sink.
func NewWithSink[T any](name string, specs []StageSpec[T], sink Sink[T], opts ...Option) (p *Pipeline[T], err error) {
	if len(specs) == 0 {
		return nil, ErrNoStages
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: nil sink", ErrInvalidConfig)
	}

	o := newOptions(opts)
	p = &Pipeline[T]{
		name:   name,
		logger: o.logger.With().Str("pipeline", name).Logger(),
	}

	sinkCap := o.sinkCap
	if sinkCap == 0 {
		sinkCap = specs[len(specs)-1].QueueCapacity
	}
	capacities := append(lo.Map(specs, func(s StageSpec[T], _ int) int { return s.QueueCapacity }), sinkCap)
	for i, c := range capacities {
		q, err := NewQueue[T](c)
		if err != nil {
			return nil, fmt.Errorf("queue %d: %w", i, err)
		}
		p.queues = append(p.queues, q)
	}

	logger := p.logger
	sizes := append(lo.Map(specs, func(s StageSpec[T], _ int) int { return s.Workers }), 1)
	p.pools, err = NewPoolsWithOptions(sizes, append([]ants.Option{ants.WithLogger(&logger)}, o.poolOpts...)...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			p.abort()
		}
	}()

	stageOpts := []Option{WithLogger(p.logger), WithMetrics(o.metrics)}
	for i, spec := range specs {
		s, err := StartStage(spec.Name, spec.Workers, spec.Transform, p.queues[i], p.queues[i+1],
			append(stageOpts, onPool(p.pools.at(i)))...)
		if err != nil {
			return nil, err
		}
		p.stages = append(p.stages, s)
	}

	record := func(t T) (T, error) { return t, sink.Record(t) }
	p.sink, err = StartStage(SinkStageName, 1, record, p.queues[len(specs)], nil,
		append(stageOpts, onPool(p.pools.at(len(specs))))...)
	if err != nil {
		return nil, err
	}

	p.logger.Info().Int("stages", len(p.stages)).Msg("pipeline built")
	return p, nil
}

// Run feeds every item of in to the first stage, then shuts the pipeline down stage by
// stage: a queue is closed only once every stage upstream of it is stopped, so no stage is
// closed while it may still receive work. Run returns once all the workers terminated.
//
// Item failures do not abort the run, they are gathered in the Report. The returned error
// reports lifecycle errors only. Run can only be called once.
func (p *Pipeline[T]) Run(in <-chan T) (*Report[T], error) {
	if !p.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	defer p.pools.Release()

	var errs []error
	submitted := 0
	for item := range in {
		if err := p.queues[0].Put(item); err != nil {
			errs = append(errs, fmt.Errorf("feed item %d: %w", submitted, err))
			break
		}
		submitted++
	}
	p.logger.Debug().Int("submitted", submitted).Msg("input fed")

	for _, s := range p.all() {
		// Stop returns once its input queue is drained and its workers are done, so nothing
		// can be put on the next queue anymore.
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	report := &Report[T]{
		Submitted: submitted,
		Processed: int(p.sink.Handled()) - len(p.sink.Failures()),
		Failures: lo.FlatMap(p.all(), func(s *Stage[T, T], _ int) []*TransformError {
			return s.Failures()
		}),
	}
	if p.collector != nil {
		report.Items = p.collector.Items()
	}

	p.logger.Info().
		Int("submitted", report.Submitted).
		Int("processed", report.Processed).
		Int("failed", report.Failed()).
		Msg("pipeline completed")
	return report, errors.Join(errs...)
}

// Name returns the pipeline name.
func (p *Pipeline[T]) Name() string {
	return p.name
}

// Stages returns the stages in order, the sink stage excluded.
func (p *Pipeline[T]) Stages() []*Stage[T, T] {
	return append([]*Stage[T, T](nil), p.stages...)
}

// Running returns the number of workers, sink included, which have not terminated yet.
func (p *Pipeline[T]) Running() int {
	return lo.SumBy(p.all(), func(s *Stage[T, T]) int {
		return s.Running()
	})
}

// all returns the stages followed by the sink stage.
func (p *Pipeline[T]) all() []*Stage[T, T] {
	all := make([]*Stage[T, T], 0, len(p.stages)+1)
	all = append(all, p.stages...)
	if p.sink != nil {
		all = append(all, p.sink)
	}
	return all
}

// abort stops the stages already started by a failed construction.
func (p *Pipeline[T]) abort() {
	for _, s := range p.stages {
		_ = s.Stop()
	}
	p.pools.Release()
}
