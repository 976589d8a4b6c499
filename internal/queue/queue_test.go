package queue

import (
	"sync"
	"testing"
)

func TestPutTryGetFIFOOrder(t *testing.T) {
	q := New[int]()
	q.Put(1)
	q.Put(2)
	q.Put(3)

	for _, want := range []int{1, 2, 3} {
		got, ok := q.TryGet()
		if !ok || got != want {
			t.Fatalf("want (%d, true), got (%d, %v)", want, got, ok)
		}
	}
	if _, ok := q.TryGet(); ok {
		t.Fatal("want empty queue to report ok=false")
	}
}

func TestDrainStopsAtQueueLength(t *testing.T) {
	q := New[string]()
	q.Put("a")
	q.Put("b")

	got := q.Drain(10)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected drain result: %v", got)
	}
	if !q.Empty() {
		t.Fatal("want queue empty after draining everything")
	}
}

func TestLenAndEmpty(t *testing.T) {
	q := New[int]()
	if !q.Empty() || q.Len() != 0 {
		t.Fatal("want new queue empty")
	}
	q.Put(1)
	if q.Empty() || q.Len() != 1 {
		t.Fatal("want one item queued")
	}
}

func TestConcurrentPutTryGet(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	const n = 100

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(v int) {
			defer wg.Done()
			q.Put(v)
		}(i)
	}
	wg.Wait()

	if q.Len() != n {
		t.Fatalf("want %d items queued, got %d", n, q.Len())
	}

	seen := 0
	for {
		if _, ok := q.TryGet(); !ok {
			break
		}
		seen++
	}
	if seen != n {
		t.Fatalf("want to drain %d items, got %d", n, seen)
	}
}
