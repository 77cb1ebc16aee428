package event

import "sync"

// Pending tracks commands waiting for their result, by correlation id.
//
// Thread Safety: all methods are safe for concurrent use.
type Pending struct {
	mu      sync.Mutex
	waiters map[int64]chan Result
	closed  bool
}

// NewPending creates an empty pending table.
func NewPending() *Pending {
	return &Pending{waiters: make(map[int64]chan Result)}
}

// Expect registers a waiter for id. The returned channel receives exactly
// one Result. After Close, the channel is already failed.
func (p *Pending) Expect(id int64) <-chan Result {
	ch := make(chan Result, 1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		ch <- Result{ID: id, Err: ErrPendingClosed}
		return ch
	}
	p.waiters[id] = ch
	return ch
}

// Resolve completes the waiter for id. Returns false if nobody waits for it.
func (p *Pending) Resolve(id int64, r Result) bool {
	p.mu.Lock()
	ch, ok := p.waiters[id]
	delete(p.waiters, id)
	p.mu.Unlock()

	if !ok {
		return false
	}
	ch <- r
	return true
}

// Forget drops the waiter for id without completing it.
func (p *Pending) Forget(id int64) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

// FailAll completes every open waiter with err. Returns how many were failed.
func (p *Pending) FailAll(err error) int {
	p.mu.Lock()
	waiters := p.waiters
	p.waiters = make(map[int64]chan Result)
	p.mu.Unlock()

	for id, ch := range waiters {
		ch <- Result{ID: id, Err: err}
	}
	return len(waiters)
}

// Close fails every open waiter and rejects later ones.
func (p *Pending) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.FailAll(ErrPendingClosed)
}

// Len returns the number of open waiters.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
