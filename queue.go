package stagepipe

import (
	"fmt"
	"sync"
)

// Queue is a bounded FIFO shared between producers and consumers of two adjacent stages.
//
// Beside the buffer, the queue tracks the number of pending items: items put but not yet
// acknowledged by TaskDone. Join waits until this count drops to zero, which is how a
// stage is known to be drained.
//
// Close pushes one terminator per consumer and marks the queue as closed: any later Put
// (including a Put already waiting for room) fails with ErrQueueClosed. Terminators are
// not pending items and must not be acknowledged.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	drained  *sync.Cond

	ring    []Message[T] // fixed size ring buffer, len(ring) is the capacity
	head    int
	size    int
	pending int
	taken   int // items returned by Get and not yet acknowledged
	closed  bool
}

// NewQueue creates a queue holding at most capacity messages.
func NewQueue[T any](capacity int) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	q := &Queue[T]{ring: make([]Message[T], capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	q.drained = sync.NewCond(&q.mu)
	return q, nil
}

// Put appends item to the queue, blocking while the queue is full.
func (q *Queue[T]) Put(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.size == len(q.ring) {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrQueueClosed
	}
	q.push(Item(item))
	q.pending++
	return nil
}

// Get removes and returns the message at the head of the queue, blocking while the queue is empty.
func (q *Queue[T]) Get() Message[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 {
		q.notEmpty.Wait()
	}
	m := q.ring[q.head]
	q.ring[q.head] = Message[T]{} // release the reference held by the buffer
	q.head = (q.head + 1) % len(q.ring)
	q.size--
	if !m.IsTerminator() {
		q.taken++
	}
	q.notFull.Signal()
	return m
}

// TaskDone acknowledges one item previously returned by Get, whatever its processing outcome.
// Acknowledging more items than were retrieved panics with an *InvariantViolation.
func (q *Queue[T]) TaskDone() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.taken <= 0 {
		violate("TaskDone", "called more times than items were retrieved")
	}
	q.taken--
	q.pending--
	if q.pending == 0 {
		q.drained.Broadcast()
	}
}

// Close rejects further puts and enqueues one terminator for each of the consumers reading
// this queue, waiting for room when needed. Passing fewer consumers than there are readers
// leaves the extra readers blocked forever in Get.
//
// Closing an already closed queue enqueues nothing and returns ErrQueueClosed.
func (q *Queue[T]) Close(consumers int) error {
	if consumers <= 0 {
		violate("Close", "consumer count must be positive, got %d", consumers)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.closed = true
	// wake producers waiting for room: they must now fail
	q.notFull.Broadcast()

	for range consumers {
		for q.size == len(q.ring) {
			q.notFull.Wait()
		}
		q.push(Terminator[T]())
	}
	return nil
}

// Join blocks until every item put in the queue has been acknowledged with TaskDone.
func (q *Queue[T]) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.pending > 0 {
		q.drained.Wait()
	}
}

// Len returns the number of buffered messages, terminators included.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return len(q.ring)
}

// Pending returns the number of items put and not yet acknowledged.
func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// push must be called with the lock held and room available.
func (q *Queue[T]) push(m Message[T]) {
	q.ring[(q.head+q.size)%len(q.ring)] = m
	q.size++
	q.notEmpty.Signal()
}
