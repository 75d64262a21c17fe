// Package queue contains the bounded-memory queues used to pass data between
// the sending and receiving sides of a reconnect session.
package queue

import (
	"errors"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// DefaultChunkSize is the number of bits per BoolQueue chunk.
const DefaultChunkSize = 1 << 16

// ErrEmpty is returned when removing from an empty queue.
var ErrEmpty = errors.New("queue is empty")

// BoolQueue is a FIFO queue of booleans stored as a chain of fixed-size
// bitsets. Exhausted chunks are released as the reader advances.
type BoolQueue struct {
	mu        sync.Mutex
	chunkSize uint
	chunks    []*bitset.BitSet
	head      uint
	tail      uint
	size      int64
}

// NewBoolQueue creates a queue. A chunkSize of 0 selects DefaultChunkSize.
func NewBoolQueue(chunkSize uint) *BoolQueue {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	return &BoolQueue{chunkSize: chunkSize}
}

// Add appends v to the queue.
func (q *BoolQueue) Add(v bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.chunks) == 0 || q.tail == q.chunkSize {
		q.chunks = append(q.chunks, bitset.New(q.chunkSize))
		q.tail = 0
	}
	if v {
		q.chunks[len(q.chunks)-1].Set(q.tail)
	}
	q.tail++
	q.size++
}

// Remove pops the oldest value.
func (q *BoolQueue) Remove() (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return false, ErrEmpty
	}
	v := q.chunks[0].Test(q.head)
	q.head++
	q.size--
	if q.head == q.chunkSize {
		q.chunks[0] = nil
		q.chunks = q.chunks[1:]
		q.head = 0
	}
	return v, nil
}

// Size returns the number of queued values.
func (q *BoolQueue) Size() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// chunkCount returns the number of allocated chunks.
func (q *BoolQueue) chunkCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}
