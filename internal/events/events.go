// Package events carries progress ticks and log lines from pipeline workers
// to a single consumer without ever blocking the producers.
package events

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Stage names the pipeline pass a progress tick belongs to.
type Stage string

// Stage constants for progress ticks.
const (
	StageReference  Stage = "reference"
	StagePreprocess Stage = "preprocess"
	StageClassify   Stage = "classify"
)

// Progress is emitted once per completed unit of work.
// Index is the 1-based position of the image in its stage's input sequence,
// not its completion order.
type Progress struct {
	Session string `json:"session"`
	Stage   Stage  `json:"stage"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
}

// LogLine is a human-readable log message.
type LogLine struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

func (l LogLine) String() string {
	return fmt.Sprintf("%s [%s] %s", l.Time.Format("15:04:05"), strings.ToUpper(l.Level), l.Message)
}

// Queue is an unbounded FIFO with many producers and one consumer.
// Put never blocks; items from a single producer keep their relative order.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Put appends an item and wakes the consumer.
func (q *Queue[T]) Put(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
		// Consumer already has a pending wake-up.
	}
}

// Drain removes and returns every pending item, oldest first.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Ready is signalled after Put; receive from it, then Drain.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
