package queue

import (
	"sync"
	"testing"
)

// record stands in for a frame record waiting to be written
type record struct {
	Index int
	Clip  string
}

func TestQueue_New(t *testing.T) {
	q := New[record]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_PushPopOrder(t *testing.T) {
	q := New[record]()
	q.Push(record{Index: 0}, record{Index: 1})
	q.Push(record{Index: 2})

	for want := 0; want < 3; want++ {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("expected item %d", want)
		}
		if got.Index != want {
			t.Errorf("expected index %d, got %d", want, got.Index)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("expected empty pop to report false")
	}
}

func TestQueue_PopBatch(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3, 4, 5)

	first := q.PopBatch(2)
	if len(first) != 2 || first[0] != 1 || first[1] != 2 {
		t.Errorf("unexpected first batch %v", first)
	}

	rest := q.PopBatch(10)
	if len(rest) != 3 || rest[0] != 3 {
		t.Errorf("unexpected second batch %v", rest)
	}

	if got := q.PopBatch(3); len(got) != 0 {
		t.Errorf("expected empty batch, got %v", got)
	}
}

func TestQueue_PopBatchAll(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	all := q.PopBatch(0)
	if len(all) != 3 {
		t.Errorf("expected 3 items, got %d", len(all))
	}
	if !q.Empty() {
		t.Error("expected queue to be empty")
	}
}

func TestQueue_PopBatchDoesNotAlias(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	batch := q.PopBatch(1)
	q.Push(9)
	batch[0] = 100

	got, _ := q.Pop()
	if got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[record]()
	q.Push(record{Index: 1}, record{Index: 2})

	items := q.GetAndEmpty()
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}
	if !q.Empty() {
		t.Error("expected empty queue after GetAndEmpty")
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(n*100 + j)
			}
		}(i)
	}
	wg.Wait()

	if q.Len() != 1000 {
		t.Errorf("expected 1000 items, got %d", q.Len())
	}

	var (
		mu      sync.Mutex
		drained int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch := q.PopBatch(7)
				if len(batch) == 0 {
					return
				}
				mu.Lock()
				drained += len(batch)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if drained != 1000 {
		t.Errorf("expected 1000 drained, got %d", drained)
	}
}
