package stagepipe

import (
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

type options struct {
	logger   zerolog.Logger
	metrics  *Metrics
	poolOpts []ants.Option
	sinkCap  int
	pool     *ants.Pool // shared pool owned by a pipeline, nil when the stage owns its pool
}

// Option configures a Stage or a Pipeline.
type Option func(*options)

// WithLogger sets the logger used to report stage lifecycle and item failures.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the collectors updated by the workers.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPoolOptions adds options to the worker pools backing the stages.
func WithPoolOptions(opts ...ants.Option) Option {
	return func(o *options) { o.poolOpts = append(o.poolOpts, opts...) }
}

// WithSinkCapacity sets the capacity of the pipeline terminal queue. It defaults to the
// capacity of the last stage input queue.
func WithSinkCapacity(n int) Option {
	return func(o *options) { o.sinkCap = n }
}

func onPool(p *ants.Pool) Option {
	return func(o *options) { o.pool = p }
}

func newOptions(opts []Option) *options {
	o := &options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
