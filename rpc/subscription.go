package rpc

import (
	"context"
	"sync"
)

// Subscription is a caller owned stream of node notifications. The producer
// side (the connection) calls Send and Close; the consumer calls Next and
// Unsubscribe. Notifications arrive in the order the node sent them.
type Subscription[T any] struct {
	items chan T
	done  chan struct{}

	mu          sync.Mutex
	err         error
	released    bool
	closeOnce   sync.Once
	unsubscribe func() error
}

// NewSubscription returns an open subscription buffering up to size
// notifications. unsubscribe issues the remote unsubscribe and may be nil.
func NewSubscription[T any](size int, unsubscribe func() error) *Subscription[T] {
	return &Subscription[T]{
		items:       make(chan T, size),
		done:        make(chan struct{}),
		unsubscribe: unsubscribe,
	}
}

// Send delivers v to the consumer, blocking while the buffer is full
func (s *Subscription[T]) Send(ctx context.Context, v T) error {
	select {
	case <-s.done:
		return ErrSubscriptionClosed
	default:
	}
	select {
	case s.items <- v:
		return nil
	case <-s.done:
		return ErrSubscriptionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream from the remote side. Buffered notifications are
// still delivered; after them Next returns err, or ErrSubscriptionClosed when
// err is nil.
func (s *Subscription[T]) Close(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// Next waits for the next notification
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if s.isReleased() {
		return zero, s.closeErr()
	}

	select {
	case v := <-s.items:
		return v, nil
	default:
	}

	select {
	case v := <-s.items:
		return v, nil
	case <-s.done:
		if !s.isReleased() {
			select {
			case v := <-s.items:
				return v, nil
			default:
			}
		}
		return zero, s.closeErr()
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Done is closed once the stream ended
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Unsubscribe releases the stream locally and tells the node to stop
// sending. Pending and later reads return ErrSubscriptionClosed.
func (s *Subscription[T]) Unsubscribe() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	select {
	case <-s.done:
		// the remote side already ended the stream
		return nil
	default:
	}

	s.Close(nil)
	if unsubscribe != nil {
		return unsubscribe()
	}
	return nil
}

func (s *Subscription[T]) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *Subscription[T]) closeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && !s.released {
		return s.err
	}
	return ErrSubscriptionClosed
}
