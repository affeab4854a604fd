package queue

// registerWaiterLocked adds a new waiter to the queue's waiter set. Must
// be called with q.mu held.
func (q *Queue) registerWaiterLocked() *waiter {
	w := &waiter{wake: make(chan struct{}, 1)}
	q.waiters[w] = struct{}{}
	return w
}

// unregisterWaiterLocked removes w from the waiter set. Must be called
// with q.mu held.
func (q *Queue) unregisterWaiterLocked(w *waiter) {
	delete(q.waiters, w)
}

// wakeWaitersLocked signals every registered waiter without blocking.
// Must be called with q.mu held.
func (q *Queue) wakeWaitersLocked() {
	for w := range q.waiters {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}
