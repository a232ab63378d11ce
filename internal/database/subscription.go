package database

import (
	"sync"
)

// Subscription is a cancellable stream of snapshots. Whoever receives a Subscription owns
// it and must call Cancel once done with it. Cancel is idempotent and safe to call from any
// goroutine. C is closed after the subscription stops, Err then tells why: nil after
// Cancel, the context error after the watch context ended, or the failure that stopped it.
type Subscription[T any] struct {
	ch       chan T
	done     chan struct{}
	stopOnce sync.Once
	errMu    sync.Mutex
	err      error
	onStop   func()
}

func newSubscription[T any](onStop func()) *Subscription[T] {
	return &Subscription[T]{
		ch:     make(chan T),
		done:   make(chan struct{}),
		onStop: onStop,
	}
}

func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Done is closed as soon as the subscription stops, before C is drained and closed.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription[T]) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Subscription[T]) Cancel() {
	s.stop(nil)
}

// stop runs onStop outside of stopOnce, so onStop may reach stop again.
func (s *Subscription[T]) stop(err error) {
	first := false
	s.stopOnce.Do(func() {
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()
		close(s.done)
		first = true
	})

	if first && s.onStop != nil {
		s.onStop()
	}
}

func (s *Subscription[T]) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// emit blocks until v is received or the subscription stops.
func (s *Subscription[T]) emit(v T) bool {
	if s.stopped() {
		return false
	}

	select {
	case s.ch <- v:
		return true
	case <-s.done:
		return false
	}
}

// Map derives a subscription whose values are fn applied to every value of src.
// Cancelling the derived subscription cancels src; an error from fn stops both.
func Map[T, U any](src *Subscription[T], fn func(T) (U, error)) *Subscription[U] {
	dst := newSubscription[U](src.Cancel)

	go func() {
		defer close(dst.ch)

		for {
			select {
			case <-dst.done:
				return
			case v, ok := <-src.C():
				if !ok {
					dst.stop(src.Err())
					return
				}

				u, err := fn(v)
				if err != nil {
					dst.stop(err)
					return
				}

				if !dst.emit(u) {
					return
				}
			}
		}
	}()

	return dst
}

// Combine joins two subscriptions. It emits fn of the latest values once both sources
// emitted, and again after every later value of either source.
func Combine[A, B, C any](a *Subscription[A], b *Subscription[B], fn func(A, B) (C, error)) *Subscription[C] {
	dst := newSubscription[C](func() {
		a.Cancel()
		b.Cancel()
	})

	go func() {
		defer close(dst.ch)

		var (
			lastA      A
			lastB      B
			hasA, hasB bool
		)

		for {
			select {
			case <-dst.done:
				return
			case v, ok := <-a.C():
				if !ok {
					dst.stop(a.Err())
					return
				}
				lastA, hasA = v, true
			case v, ok := <-b.C():
				if !ok {
					dst.stop(b.Err())
					return
				}
				lastB, hasB = v, true
			}

			if !hasA || !hasB {
				continue
			}

			c, err := fn(lastA, lastB)
			if err != nil {
				dst.stop(err)
				return
			}

			if !dst.emit(c) {
				return
			}
		}
	}()

	return dst
}
