package bridge

import (
	"encoding/json"
	"sync"
)

// reply is the outcome delivered to a parked request.
type reply struct {
	result json.RawMessage
	err    json.RawMessage
}

// pendingRequests maps request ids to single-use completion channels. IDs
// start at 1 and grow by one per request for the life of the process.
type pendingRequests struct {
	mu      sync.Mutex
	nextID  uint64
	waiters map[uint64]chan reply
	closed  bool
}

func newPendingRequests() *pendingRequests {
	return &pendingRequests{
		nextID:  1,
		waiters: make(map[uint64]chan reply),
	}
}

// register allocates the next id and parks a channel for it. ok is false
// once the map has been drained.
func (p *pendingRequests) register() (id uint64, ch chan reply, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, nil, false
	}
	id = p.nextID
	p.nextID++
	ch = make(chan reply, 1)
	p.waiters[id] = ch
	return id, ch, true
}

// resolve delivers r to the waiter for id. It reports whether one existed.
func (p *pendingRequests) resolve(id uint64, r reply) bool {
	p.mu.Lock()
	ch, ok := p.waiters[id]
	if ok {
		delete(p.waiters, id)
	}
	p.mu.Unlock()
	if ok {
		ch <- r
	}
	return ok
}

// forget drops the waiter for id without resolving it.
func (p *pendingRequests) forget(id uint64) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

// drain closes every parked channel so their callers observe cancellation,
// and refuses further registrations. It returns how many were cancelled.
func (p *pendingRequests) drain() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.waiters)
	for id, ch := range p.waiters {
		close(ch)
		delete(p.waiters, id)
	}
	p.closed = true
	return n
}

// len returns the number of parked requests.
func (p *pendingRequests) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
