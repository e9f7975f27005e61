package queue

import (
	"sync"
	"testing"
)

type testItem struct {
	ID   int
	Name string
}

func ids(items []testItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQueue_PushPop(t *testing.T) {
	q := New[testItem]()
	if !q.Empty() {
		t.Error("expected empty queue")
	}

	if _, ok := q.Pop(); ok {
		t.Error("pop on empty queue should report false")
	}

	q.Push(testItem{ID: 1, Name: "first"})
	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}

	item, ok := q.Pop()
	if !ok || item.ID != 1 || item.Name != "first" {
		t.Errorf("expected first item, got %+v", item)
	}
	if q.Len() != 2 {
		t.Errorf("expected length 2, got %d", q.Len())
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2})

	got := q.GetAndEmpty()
	if !equal(ids(got), []int{1, 2}) {
		t.Errorf("unexpected items %v", ids(got))
	}
	if !q.Empty() {
		t.Error("expected empty queue after GetAndEmpty")
	}

	// the returned slice is not shared with later pushes
	q.Push(testItem{ID: 9})
	if got[0].ID != 1 {
		t.Error("returned slice was modified by a later push")
	}
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := NewBounded[testItem](3)

	if n := q.Push(testItem{ID: 1}, testItem{ID: 2}); n != 0 {
		t.Errorf("expected no drops, got %d", n)
	}
	if n := q.Push(testItem{ID: 3}, testItem{ID: 4}, testItem{ID: 5}); n != 2 {
		t.Errorf("expected 2 drops, got %d", n)
	}
	if !equal(ids(q.GetAndEmpty()), []int{3, 4, 5}) {
		t.Error("expected the newest three items")
	}
	if q.Dropped() != 2 {
		t.Errorf("expected Dropped 2, got %d", q.Dropped())
	}
}

func TestQueue_Requeue(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 3})
	q.Requeue([]testItem{{ID: 1}, {ID: 2}})

	if !equal(ids(q.GetAndEmpty()), []int{1, 2, 3}) {
		t.Error("requeued items should come first")
	}

	b := NewBounded[testItem](2)
	b.Push(testItem{ID: 3})
	b.Requeue([]testItem{{ID: 1}, {ID: 2}})
	if !equal(ids(b.GetAndEmpty()), []int{1, 3}) {
		t.Error("requeue should keep what fits")
	}
	if b.Dropped() != 1 {
		t.Errorf("expected Dropped 1, got %d", b.Dropped())
	}
}

func TestQueue_ConcurrentAccess(t *testing.T) {
	q := New[testItem]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(testItem{ID: id})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected length 100, got %d", q.Len())
	}
}
