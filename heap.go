package genqueue

// entry is a QueueItem held in the priority queue.
type entry struct {
	item  QueueItem
	seq   uint64 // insertion order, breaks priority ties
	index int    // maintained by the heap.Interface methods
}

// before reports whether e is dequeued ahead of o.
func (e *entry) before(o *entry) bool {
	if e.item.Priority != o.item.Priority {
		return e.item.Priority > o.item.Priority
	}
	return e.seq < o.seq
}

// priorityQueue implements heap.Interface and holds entries. The root is the
// highest priority, earliest inserted entry.
type priorityQueue []*entry

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool { return pq[i].before(pq[j]) }

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	n := len(*pq)
	e := x.(*entry)
	e.index = n
	*pq = append(*pq, e)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	e := old[n-1]
	old[n-1] = nil // avoid memory leak
	e.index = -1   // for safety
	*pq = old[0 : n-1]
	return e
}
