// Package queue is the unbounded FIFO between input and inference workers.
package queue

import (
	"context"
	"sync"
	"time"

	"inferd/pkg/types"
)

// Pack carries one input unit through the queue. Enqueued is stamped by the
// producer and used for queue-wait accounting.
type Pack struct {
	Unit     *types.InputUnit
	Enqueued time.Time
}

// Queue is a mutex + condition variable FIFO. It has no capacity and no
// closed state; producers apply their own limit and consumers stop when the
// context passed to Pop is done.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []Pack
}

// New returns an empty queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends p and wakes one waiting consumer.
func (q *Queue) Push(p Pack) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop removes the oldest pack, blocking while the queue is empty. It returns
// false when ctx is done and nothing is queued at wake-up.
func (q *Queue) Pop(ctx context.Context) (Pack, bool) {
	stop := context.AfterFunc(ctx, func() {
		// Lock so the broadcast cannot slip in between the ctx check and Wait.
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if ctx.Err() != nil {
			return Pack{}, false
		}
		q.cond.Wait()
	}
	p := q.items[0]
	q.items[0] = Pack{}
	q.items = q.items[1:]
	return p, true
}

// Len reports the number of queued packs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns everything still queued.
func (q *Queue) Drain() []Pack {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Wake broadcasts to all blocked consumers so they re-check their context.
func (q *Queue) Wake() {
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}
