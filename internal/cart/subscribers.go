package cart

import (
	"sync"
	"sync/atomic"
)

// Listener receives a private copy of the cart after every change.
type Listener func(Cart)

type subscription struct {
	fn      Listener
	removed atomic.Bool
}

// registry delivers snapshots in sequence order. A snapshot published while
// another goroutine (or a listener further up the stack) is delivering is
// queued and handed to that dispatcher instead, so listeners can call back
// into the engine without deadlocking and never see an older cart after a
// newer one.
type registry struct {
	mu          sync.Mutex
	subs        []*subscription
	delivered   uint64
	pending     *snapshot
	dispatching bool
}

type snapshot struct {
	seq  uint64
	cart Cart
}

func (r *registry) subscribe(fn Listener) func() {
	sub := &subscription{fn: fn}
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()

	return func() {
		if !sub.removed.CompareAndSwap(false, true) {
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, candidate := range r.subs {
			if candidate == sub {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *registry) publish(seq uint64, cart Cart) {
	r.mu.Lock()
	if seq <= r.delivered || (r.pending != nil && seq <= r.pending.seq) {
		r.mu.Unlock()
		return
	}
	r.pending = &snapshot{seq: seq, cart: cart}
	if r.dispatching {
		r.mu.Unlock()
		return
	}
	r.dispatching = true
	r.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			r.mu.Lock()
			r.dispatching = false
			r.mu.Unlock()
			panic(rec)
		}
	}()

	for {
		r.mu.Lock()
		next := r.pending
		r.pending = nil
		if next == nil {
			r.dispatching = false
			r.mu.Unlock()
			return
		}
		r.delivered = next.seq
		subs := make([]*subscription, len(r.subs))
		copy(subs, r.subs)
		r.mu.Unlock()

		for _, sub := range subs {
			if sub.removed.Load() {
				continue
			}
			sub.fn(next.cart.Clone())
		}
	}
}
