package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrClosed is returned when supplying values to a closed iterator.
var ErrClosed = errors.New("iterator closed")

// BlockingIterator is a bounded queue between a single producer and a single
// consumer. The producer blocks while the buffer is full, the consumer blocks
// while it's empty. After Close, the consumer drains what's left and then
// stops.
type BlockingIterator[T any] struct {
	clock     clockwork.Clock
	ch        chan T
	closed    chan struct{}
	closeOnce sync.Once
}

// IteratorOpt modifies BlockingIterator.
type IteratorOpt func(*iteratorOptions)

type iteratorOptions struct {
	clock clockwork.Clock
}

// WithClock specifies the clock used for supply timeouts.
func WithClock(clock clockwork.Clock) IteratorOpt {
	return func(o *iteratorOptions) {
		o.clock = clock
	}
}

// NewBlockingIterator creates an iterator that buffers up to capacity values.
func NewBlockingIterator[T any](capacity int, opts ...IteratorOpt) (*BlockingIterator[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("iterator capacity must be positive, got %d", capacity)
	}
	o := iteratorOptions{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return &BlockingIterator[T]{
		clock:  o.clock,
		ch:     make(chan T, capacity),
		closed: make(chan struct{}),
	}, nil
}

// Supply adds v, waiting up to timeout for space in the buffer. It returns
// false if the timeout expired.
func (it *BlockingIterator[T]) Supply(ctx context.Context, v T, timeout time.Duration) (bool, error) {
	select {
	case <-it.closed:
		return false, ErrClosed
	default:
	}
	select {
	case it.ch <- v:
		return true, nil
	default:
	}
	timer := it.clock.NewTimer(timeout)
	defer timer.Stop()
	select {
	case it.ch <- v:
		return true, nil
	case <-timer.Chan():
		return false, nil
	case <-it.closed:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Next returns the next value. The second return value is false once the
// iterator is closed and drained.
func (it *BlockingIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	select {
	case v := <-it.ch:
		return v, true, nil
	default:
	}
	select {
	case v := <-it.ch:
		return v, true, nil
	case <-it.closed:
		select {
		case v := <-it.ch:
			return v, true, nil
		default:
			return zero, false, nil
		}
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// Close marks the end of the input.
func (it *BlockingIterator[T]) Close() {
	it.closeOnce.Do(func() { close(it.closed) })
}

// Len returns the number of buffered values.
func (it *BlockingIterator[T]) Len() int {
	return len(it.ch)
}
