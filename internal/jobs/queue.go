package jobs

import "container/heap"

// priorityQueue orders jobs by (-priority, enqueued_at): higher priority
// first, FIFO among equal priorities (§4.4).
type priorityQueue []*Job

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority > q[j].Priority
	}
	return q[i].EnqueuedAt.Before(q[j].EnqueuedAt)
}

func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *priorityQueue) Push(x any) {
	*q = append(*q, x.(*Job))
}

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// removeJob removes a pending job from the heap by id, returning whether it
// was found. Used by Cancel; O(n) since the heap carries no id index and
// cancellation is not on JobManager's hot path.
func (q *priorityQueue) removeJob(id string) bool {
	for i, j := range *q {
		if j.ID == id {
			heap.Remove(q, i)
			return true
		}
	}
	return false
}
