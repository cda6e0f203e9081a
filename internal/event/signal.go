// Package event provides ordered subscriber lists used to fan notifications
// out on the loop goroutine.
package event

// Handler receives a notification. A non-nil error stops delivery to the
// remaining subscribers and is returned by Emit.
type Handler[T any] func(T) error

type subscriber[T any] struct {
	id uint64
	fn Handler[T]
}

// Signal is a list of subscribers invoked synchronously, in registration
// order. It is not safe for concurrent use; it is owned by the loop goroutine.
type Signal[T any] struct {
	next uint64
	subs []subscriber[T]
}

// Subscribe appends fn and returns a function that removes it again.
func (s *Signal[T]) Subscribe(fn Handler[T]) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.next++
	id := s.next
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	return func() { s.remove(id) }
}

// Listen subscribes a handler that cannot fail.
func (s *Signal[T]) Listen(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	return s.Subscribe(func(v T) error {
		fn(v)
		return nil
	})
}

// Emit delivers v to a snapshot of the current subscribers. Subscribers added
// or removed during delivery take effect on the next Emit.
func (s *Signal[T]) Emit(v T) error {
	if len(s.subs) == 0 {
		return nil
	}
	subs := append([]subscriber[T](nil), s.subs...)
	for _, sub := range subs {
		if err := sub.fn(v); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of subscribers.
func (s *Signal[T]) Len() int {
	return len(s.subs)
}

// Reset drops every subscriber.
func (s *Signal[T]) Reset() {
	s.subs = nil
}

func (s *Signal[T]) remove(id uint64) {
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}
