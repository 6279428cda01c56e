package relay

import (
	"context"
	"sync"
)

// inboundQueue is an unbounded FIFO of reply audio chunks. The receive task
// pushes, the playback task pops, and Drain empties it atomically when a
// turn completes so stale audio from an interrupted turn is never played.
type inboundQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []InboundChunk
}

func newInboundQueue() *inboundQueue {
	q := &inboundQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a chunk and wakes the playback task.
func (q *inboundQueue) Push(c InboundChunk) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop removes and returns the oldest chunk, blocking until one is available
// or ctx is cancelled.
func (q *inboundQueue) Pop(ctx context.Context) (InboundChunk, error) {
	// Wake the waiter when the context ends; Wait itself cannot observe ctx.
	stop := context.AfterFunc(ctx, func() {
		q.cond.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if err := ctx.Err(); err != nil {
			return InboundChunk{}, err
		}
		q.cond.Wait()
	}

	c := q.items[0]
	q.items = q.items[1:]
	return c, nil
}

// Drain empties the queue and returns how many chunks were discarded.
func (q *inboundQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = q.items[:0]
	return n
}

// Len returns the current queue length.
func (q *inboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
