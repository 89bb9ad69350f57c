package gpu

// DisposeQueue collects resources whose GPU objects must be freed. It is
// drained once per frame, at a point where no draw is in flight.
type DisposeQueue struct {
	pending []Handle
	seen    map[Handle]struct{}
}

// NewDisposeQueue creates an empty queue.
func NewDisposeQueue() *DisposeQueue {
	return &DisposeQueue{seen: make(map[Handle]struct{})}
}

// Push queues resources for deletion. Nil resources and duplicates are
// ignored.
func (q *DisposeQueue) Push(resources ...Resource) {
	for _, r := range resources {
		if r == nil {
			continue
		}
		h := r.Handle()
		if _, ok := q.seen[h]; ok {
			continue
		}
		q.seen[h] = struct{}{}
		q.pending = append(q.pending, h)
	}
}

// Len returns the number of queued handles.
func (q *DisposeQueue) Len() int {
	return len(q.pending)
}

// Drain calls release for each queued handle in push order and empties the
// queue.
func (q *DisposeQueue) Drain(release func(Handle)) int {
	n := len(q.pending)
	for _, h := range q.pending {
		release(h)
	}
	q.pending = q.pending[:0]
	clear(q.seen)
	return n
}
