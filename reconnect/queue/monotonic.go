package queue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// DefaultBucketBits sets the bucket size of MonotonicQueue to 2^16 values.
const DefaultBucketBits = 16

// ErrNotIncreasing is returned when a value added to MonotonicQueue is not
// greater than the previous one.
var ErrNotIncreasing = errors.New("value is not increasing")

type bucket struct {
	index int64
	bits  *bitset.BitSet
}

// MonotonicQueue is a FIFO queue of strictly increasing non-negative values.
// Values are kept as set bits in buckets covering 2^bucketBits consecutive
// numbers, so dense sequences take a bit per number of the covered range.
type MonotonicQueue struct {
	mu         sync.Mutex
	bucketBits uint
	buckets    []bucket
	cursor     uint
	last       int64
	size       int64
}

// NewMonotonicQueue creates a queue. A bucketBits of 0 selects DefaultBucketBits.
func NewMonotonicQueue(bucketBits uint) *MonotonicQueue {
	if bucketBits == 0 {
		bucketBits = DefaultBucketBits
	}
	return &MonotonicQueue{bucketBits: bucketBits, last: -1}
}

// Add appends v to the queue.
func (q *MonotonicQueue) Add(v int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if v <= q.last {
		return fmt.Errorf("%w: %d after %d", ErrNotIncreasing, v, q.last)
	}
	idx := v >> q.bucketBits
	if len(q.buckets) == 0 || q.buckets[len(q.buckets)-1].index != idx {
		q.buckets = append(q.buckets, bucket{index: idx, bits: bitset.New(1 << q.bucketBits)})
	}
	q.buckets[len(q.buckets)-1].bits.Set(uint(v & (1<<q.bucketBits - 1)))
	q.last = v
	q.size++
	return nil
}

// Remove pops the smallest value.
func (q *MonotonicQueue) Remove() (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return 0, ErrEmpty
	}
	for {
		b := q.buckets[0]
		if n, ok := b.bits.NextSet(q.cursor); ok {
			q.cursor = n + 1
			q.size--
			return b.index<<q.bucketBits | int64(n), nil
		}
		if len(q.buckets) == 1 {
			panic("BUG: MonotonicQueue: no values left in a non-empty queue")
		}
		q.buckets[0] = bucket{}
		q.buckets = q.buckets[1:]
		q.cursor = 0
	}
}

// Size returns the number of queued values.
func (q *MonotonicQueue) Size() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *MonotonicQueue) bucketCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buckets)
}
