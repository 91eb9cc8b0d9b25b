package jobs

import (
	"container/heap"
	"testing"
	"time"
)

func TestPriorityQueueOrdersByPriorityThenFIFO(t *testing.T) {
	pq := &priorityQueue{}
	heap.Init(pq)

	base := time.Now()
	heap.Push(pq, &Job{ID: "low-first", Priority: 1, EnqueuedAt: base})
	heap.Push(pq, &Job{ID: "high", Priority: 5, EnqueuedAt: base.Add(time.Millisecond)})
	heap.Push(pq, &Job{ID: "low-second", Priority: 1, EnqueuedAt: base.Add(2 * time.Millisecond)})

	first := heap.Pop(pq).(*Job)
	if first.ID != "high" {
		t.Fatalf("expected highest priority job first, got %s", first.ID)
	}
	second := heap.Pop(pq).(*Job)
	if second.ID != "low-first" {
		t.Fatalf("expected FIFO among equal priority, got %s", second.ID)
	}
	third := heap.Pop(pq).(*Job)
	if third.ID != "low-second" {
		t.Fatalf("expected low-second last, got %s", third.ID)
	}
}

func TestPriorityQueueRemoveJob(t *testing.T) {
	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &Job{ID: "a", Priority: 1, EnqueuedAt: time.Now()})
	heap.Push(pq, &Job{ID: "b", Priority: 2, EnqueuedAt: time.Now()})

	if !pq.removeJob("a") {
		t.Fatal("expected removeJob to find job a")
	}
	if pq.removeJob("a") {
		t.Fatal("expected second removeJob of same id to fail")
	}
	if pq.Len() != 1 {
		t.Fatalf("expected 1 remaining job, got %d", pq.Len())
	}
}
