package stagepipe

import "sync"

// Sink records the items leaving the last stage of a pipeline. Record is called by a single
// goroutine.
type Sink[T any] interface {
	Record(item T) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc[T any] func(T) error

// Record calls f(item).
func (f SinkFunc[T]) Record(item T) error {
	return f(item)
}

// Collector is a Sink keeping every recorded item in memory, in arrival order.
type Collector[T any] struct {
	mu    sync.Mutex
	items []T
}

// Record appends item to the collected items.
func (c *Collector[T]) Record(item T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
	return nil
}

// Items returns a copy of the collected items.
func (c *Collector[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

// Len returns the number of collected items.
func (c *Collector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
