package orderbookv1

import (
	"sync"
	"sync/atomic"

	ledgerv1 "github.com/diznq/core-se/internal/domain/ledger/v1"
)

const feedBuffer = 128

// Feed is a push-based broadcast of executed trades. Subscribers receive
// every trade emitted after they subscribe, in chronological order; there
// is no replay. Publishing never blocks matching: when a subscriber's
// buffer is full the oldest buffered trade is dropped to make room.
type Feed struct {
	mu   sync.RWMutex
	subs map[int64]chan ledgerv1.Tx
	seq  atomic.Int64
}

// NewFeed creates an empty trade feed.
func NewFeed() *Feed {
	return &Feed{
		subs: make(map[int64]chan ledgerv1.Tx),
	}
}

// Subscribe registers a new subscriber and returns its id and channel.
func (f *Feed) Subscribe() (int64, <-chan ledgerv1.Tx) {
	id := f.seq.Add(1)
	ch := make(chan ledgerv1.Tx, feedBuffer)

	f.mu.Lock()
	f.subs[id] = ch
	f.mu.Unlock()

	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (f *Feed) Unsubscribe(id int64) {
	f.mu.Lock()
	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
	f.mu.Unlock()
}

// Publish delivers tx to every subscriber without blocking.
func (f *Feed) Publish(tx ledgerv1.Tx) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.subs {
		select {
		case ch <- tx:
			continue
		default:
		}
		// Buffer full: drop the oldest buffered trade, then retry once. The
		// second send can still race another publisher; losing the newest
		// trade instead of the oldest is acceptable then.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- tx:
		default:
		}
	}
}
