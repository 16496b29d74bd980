package stagepipe

// Message is what travels through a Queue: either an item or a terminator.
// The zero Message is an item holding the zero value of T.
type Message[T any] struct {
	value      T
	terminator bool
}

// Item wraps v into a Message.
func Item[T any](v T) Message[T] {
	return Message[T]{value: v}
}

// Terminator returns the end of stream marker. A consumer receiving it must stop reading.
func Terminator[T any]() Message[T] {
	return Message[T]{terminator: true}
}

// IsTerminator reports whether m is the end of stream marker.
func (m Message[T]) IsTerminator() bool {
	return m.terminator
}

// Value returns the wrapped item. ok is false for a terminator.
func (m Message[T]) Value() (v T, ok bool) {
	return m.value, !m.terminator
}
