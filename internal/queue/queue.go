// Package queue implements the multi-producer/multi-consumer FIFO used to
// couple pipeline stages. TryGet is non-blocking: callers poll and stop
// draining once it reports empty, the same discipline spec.md requires of
// every stage between Finder and Cleaner.
package queue

import "sync"

// Queue is a thread-safe FIFO of T. The zero value is not usable; construct
// with New.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Put appends an item to the tail of the queue.
func (q *Queue[T]) Put(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// TryGet removes and returns the item at the head of the queue. ok is false
// if the queue was empty; it never blocks.
func (q *Queue[T]) TryGet() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Drain removes and returns up to size items from the head of the queue,
// stopping early if the queue runs out.
func (q *Queue[T]) Drain(size int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if size > len(q.items) {
		size = len(q.items)
	}
	chunk := make([]T, size)
	copy(chunk, q.items[:size])
	q.items = q.items[size:]
	return chunk
}

// Len reports the number of items currently queued.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty reports whether the queue currently has no items.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}
