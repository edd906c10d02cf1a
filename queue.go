// FILE: queue.go
// Package main – Typed message queues connecting the pipeline workers.
//
// Queues are buffered channels with a non-blocking producer side and a
// drain-until-empty consumer side. Capacity is large enough that a drop only
// happens if a consumer has stalled for a long time; the replay driver never
// relies on capacity because it waits for emptiness before each push.

package main

import "log"

const queueCapacity = 1 << 16

// Queue is a single-producer, single-consumer message buffer.
type Queue[T any] struct {
	name string
	ch   chan T
}

func NewQueue[T any](name string) *Queue[T] {
	return &Queue[T]{name: name, ch: make(chan T, queueCapacity)}
}

// PutNowait enqueues v without blocking. If the queue is full the message is
// dropped; a stalled consumer must not wedge its producer.
func (q *Queue[T]) PutNowait(v T) {
	select {
	case q.ch <- v:
	default:
		log.Printf("[QUEUE] %s full, dropping message", q.name)
	}
}

// TryGet dequeues the next message if one is buffered.
func (q *Queue[T]) TryGet() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

func (q *Queue[T]) Empty() bool { return len(q.ch) == 0 }

func (q *Queue[T]) Len() int { return len(q.ch) }
