package hub

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// queue is an unbounded FIFO between the read pump and Events(), so a
// slow consumer never stalls the connection.
type queue struct {
	mu     sync.Mutex
	items  []event.Envelope
	closed bool
	notify chan struct{}
	out    chan event.Envelope
}

func newQueue() *queue {
	return &queue{
		notify: make(chan struct{}, 1),
		out:    make(chan event.Envelope),
	}
}

// push appends env. It never blocks.
func (q *queue) push(env event.Envelope) {
	q.mu.Lock()
	q.items = append(q.items, env)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// close lets run finish once the queued items are delivered.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop removes the oldest item. done is true when the queue is closed and
// empty.
func (q *queue) pop() (env event.Envelope, ok, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return event.Envelope{}, false, q.closed
	}
	env = q.items[0]
	q.items[0] = event.Envelope{}
	q.items = q.items[1:]
	return env, true, false
}

// Len returns the number of queued envelopes.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// run forwards queued envelopes to out until the queue is closed and
// drained or ctx is cancelled, then closes out.
func (q *queue) run(ctx context.Context) {
	defer close(q.out)
	for {
		env, ok, done := q.pop()
		if done {
			return
		}
		if !ok {
			select {
			case <-q.notify:
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case q.out <- env:
		case <-ctx.Done():
			return
		}
	}
}
