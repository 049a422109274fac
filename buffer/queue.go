// Package buffer provides the fixed-capacity linear working buffers used by
// the transport I/O loops.
//
// A Queue keeps its readable bytes contiguous. Data is appended at the tail
// and consumed from the head; unconsumed bytes are shifted back to offset
// zero before the next fill so codec and framing code always sees a plain
// slice, never a wrapped region.
package buffer

import "errors"

// ErrOverflow is returned when a commit or consume exceeds the queue bounds.
var ErrOverflow = errors.New("buffer: length out of range")

// Queue is a bounded byte queue with separate read and write cursors.
// It is not safe for concurrent use.
type Queue struct {
	data []byte
	head int
	tail int
}

// New allocates a queue with the given capacity.
func New(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{data: make([]byte, capacity)}
}

// Len returns the number of readable bytes.
func (q *Queue) Len() int {
	return q.tail - q.head
}

// Cap returns the total capacity.
func (q *Queue) Cap() int {
	return len(q.data)
}

// Free returns the number of bytes that can be appended after compaction.
func (q *Queue) Free() int {
	return len(q.data) - q.Len()
}

// Bytes exposes the contiguous readable region. The slice is valid until
// the next call that mutates the queue.
func (q *Queue) Bytes() []byte {
	return q.data[q.head:q.tail]
}

// Tail compacts readable bytes to offset zero and returns the writable
// region following them. Callers fill it and then call Commit.
func (q *Queue) Tail() []byte {
	q.compact()
	return q.data[q.tail:]
}

// Commit marks n bytes of the region returned by Tail as readable.
func (q *Queue) Commit(n int) error {
	if n < 0 || q.tail+n > len(q.data) {
		return ErrOverflow
	}
	q.tail += n
	return nil
}

// Consume drops n bytes from the head of the readable region.
func (q *Queue) Consume(n int) error {
	if n < 0 || n > q.Len() {
		return ErrOverflow
	}
	q.head += n
	if q.head == q.tail {
		q.head, q.tail = 0, 0
	}
	return nil
}

// Write appends as much of p as fits and returns the number of bytes
// copied. Input larger than the free space is truncated.
func (q *Queue) Write(p []byte) (int, error) {
	n := copy(q.Tail(), p)
	q.tail += n
	return n, nil
}

// Reset discards all readable bytes.
func (q *Queue) Reset() {
	q.head, q.tail = 0, 0
}

func (q *Queue) compact() {
	if q.head == 0 {
		return
	}
	n := copy(q.data, q.data[q.head:q.tail])
	q.head, q.tail = 0, n
}
