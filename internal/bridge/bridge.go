// Package bridge marshals work produced on other goroutines onto the loop
// goroutine.
//
// Post is the only entry point that is safe to call from any goroutine. It
// never blocks: it appends to an ordered queue and nudges the loop through
// the Wake channel. The run loop calls DrainOnce on its own goroutine, which
// executes everything queued at that moment in submission order. Work posted
// while a drain is running waits for the next pass, unless a nested run
// drains it after the older items.
//
// Items still queued when the bridge is closed are discarded. Pending work is
// not guaranteed to run across a session shutdown.
package bridge

import (
	"fmt"
	"sync"

	"github.com/atomicstack/tuikit/internal/logging/events"
)

// Request is one unit of marshaled work.
type Request struct {
	// Source names the producer. Items from one source run in the order they
	// were posted.
	Source string
	Label  string
	Run    func() error

	// Seq is stamped by Post.
	Seq uint64
}

// Bridge is the queue between foreign goroutines and the loop goroutine.
type Bridge struct {
	mu     sync.Mutex
	queue  []Request
	seq    uint64
	closed bool

	wake chan struct{}
}

// New returns an open bridge.
func New() *Bridge {
	return &Bridge{wake: make(chan struct{}, 1)}
}

// Post queues req. It never blocks and is safe for concurrent use. Posts
// after Close are discarded.
func (b *Bridge) Post(req Request) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		events.Bridge.Discard(req.Source, req.Label)
		return
	}
	b.seq++
	req.Seq = b.seq
	b.queue = append(b.queue, req)
	b.mu.Unlock()

	events.Bridge.Post(req.Source, req.Label, req.Seq)
	b.signal()
}

// PostFunc queues fn under source.
func (b *Bridge) PostFunc(source string, fn func()) {
	b.Post(Request{Source: source, Run: func() error {
		fn()
		return nil
	}})
}

// Wake receives a value whenever work has been posted since the last
// receive. The loop selects on it while waiting for driver input.
func (b *Bridge) Wake() <-chan struct{} {
	return b.wake
}

// Pending returns the number of queued items.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// DrainOnce runs every item queued at the moment of the call, in submission
// order. It must only be called from the loop goroutine.
//
// Items are taken off the queue one at a time, so a nested run started by an
// item drains the items behind it before anything posted later. A failing
// item stops the pass and its error is returned; the items after it stay
// queued for the next drain. No item runs twice, and a panicking item leaves
// the rest of the queue intact.
func (b *Bridge) DrainOnce() error {
	b.mu.Lock()
	limit := b.seq
	b.mu.Unlock()

	ran := 0
	for {
		req, ok := b.next(limit)
		if !ok {
			break
		}
		ran++
		if req.Run == nil {
			continue
		}
		if err := req.Run(); err != nil {
			events.Bridge.Error(req.Source, req.Label, err)
			if b.Pending() > 0 {
				b.signal()
			}
			return fmt.Errorf("bridge: %s: %w", describe(req), err)
		}
	}
	if ran > 0 {
		events.Bridge.Drain(ran)
	}
	return nil
}

// next pops the head of the queue if it was posted at or before limit.
func (b *Bridge) next(limit uint64) (Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 || b.queue[0].Seq > limit {
		return Request{}, false
	}
	req := b.queue[0]
	b.queue[0] = Request{}
	b.queue = b.queue[1:]
	return req, true
}

func (b *Bridge) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Close discards every queued item and rejects later posts. It returns the
// number of items discarded.
func (b *Bridge) Close() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	b.closed = true
	n := len(b.queue)
	b.queue = nil
	if n > 0 {
		events.Bridge.Closed(n)
	}
	return n
}

// Closed reports whether Close has been called.
func (b *Bridge) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func describe(req Request) string {
	switch {
	case req.Source != "" && req.Label != "":
		return req.Source + "/" + req.Label
	case req.Source != "":
		return req.Source
	case req.Label != "":
		return req.Label
	default:
		return fmt.Sprintf("item %d", req.Seq)
	}
}
