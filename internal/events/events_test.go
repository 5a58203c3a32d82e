package events

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := range 5 {
		q.Put(i)
	}

	if q.Len() != 5 {
		t.Fatalf("expected 5 pending items, got %d", q.Len())
	}

	items := q.Drain()
	for i, v := range items {
		if v != i {
			t.Errorf("items[%d] = %d, want %d", i, v, i)
		}
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue after drain, got %d", q.Len())
	}
	if got := q.Drain(); len(got) != 0 {
		t.Errorf("expected nothing on second drain, got %v", got)
	}
}

func TestQueue_ReadySignal(t *testing.T) {
	q := NewQueue[string]()

	select {
	case <-q.Ready():
		t.Fatal("ready should not fire on an empty queue")
	default:
	}

	q.Put("a")
	q.Put("b")

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("expected ready signal after Put")
	}
	if got := q.Drain(); len(got) != 2 {
		t.Errorf("expected 2 items, got %d", len(got))
	}
}

func TestQueue_ManyProducersPreservePerProducerOrder(t *testing.T) {
	q := NewQueue[[2]int]()
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range perProducer {
				q.Put([2]int{id, i})
			}
		}(p)
	}
	wg.Wait()

	items := q.Drain()
	if len(items) != producers*perProducer {
		t.Fatalf("expected %d items, got %d", producers*perProducer, len(items))
	}

	last := make(map[int]int)
	for _, item := range items {
		prev, seen := last[item[0]]
		if seen && item[1] <= prev {
			t.Fatalf("producer %d out of order: %d after %d", item[0], item[1], prev)
		}
		last[item[0]] = item[1]
	}
}

func TestQueue_PutWithoutConsumerNeverBlocks(t *testing.T) {
	q := NewQueue[int]()
	done := make(chan struct{})
	go func() {
		for i := range 10000 {
			q.Put(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Put blocked without a consumer")
	}
}

func TestLogLine_String(t *testing.T) {
	line := LogLine{
		Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   "info",
		Message: "processing paused",
	}

	s := line.String()
	if !strings.Contains(s, "03:04:05") || !strings.Contains(s, "[INFO]") || !strings.Contains(s, "processing paused") {
		t.Errorf("unexpected log line format: %q", s)
	}
}
