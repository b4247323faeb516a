/*
hub.go - Subscription bookkeeping shared by Store implementations

PURPOSE:
  Both stores need the same live-feed behavior: register a listener,
  hand it the current snapshot, re-deliver a fresh snapshot after every
  change, and stop cleanly on unsubscribe. Hub implements that once.

ORDERING:
  Deliveries are serialized. Each Publish loads the snapshot while holding
  the delivery lock, so a listener never sees an older snapshot after a
  newer one, even when appends race.

LISTENER RULES:
  Listeners run on the publisher's goroutine and must return quickly.
  They must not unsubscribe from inside the callback.

SEE ALSO:
  - store.go: Store.Subscribe contract
  - store/memory.go, store/sqlite/sqlite.go: users of Hub
*/
package generic

import (
	"context"
	"sync"
)

// LoadFunc reads the current snapshot for a profile.
type LoadFunc func(ctx context.Context, profileID ProfileID) ([]Transaction, error)

// Hub fans out profile snapshots to registered listeners.
type Hub struct {
	deliverMu sync.Mutex // serializes deliveries

	mu        sync.Mutex
	next      int
	listeners map[ProfileID]map[int]Listener
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[ProfileID]map[int]Listener)}
}

// Subscribe registers fn and delivers the current snapshot before returning.
func (h *Hub) Subscribe(ctx context.Context, profileID ProfileID, fn Listener, load LoadFunc) (func(), error) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	txs, err := load(ctx, profileID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	id := h.next
	h.next++
	if h.listeners[profileID] == nil {
		h.listeners[profileID] = make(map[int]Listener)
	}
	h.listeners[profileID][id] = fn
	h.mu.Unlock()

	fn(txs)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.deliverMu.Lock()
			defer h.deliverMu.Unlock()
			h.remove(profileID, id)
		})
	}, nil
}

// Publish loads a fresh snapshot and delivers it to every listener of the
// profile. Profiles without listeners are skipped without loading.
func (h *Hub) Publish(ctx context.Context, profileID ProfileID, load LoadFunc) error {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	listeners := h.listenersFor(profileID)
	if len(listeners) == 0 {
		return nil
	}

	txs, err := load(ctx, profileID)
	if err != nil {
		return err
	}
	for _, fn := range listeners {
		fn(append([]Transaction(nil), txs...))
	}
	return nil
}

// Profiles returns the profiles that currently have listeners.
func (h *Hub) Profiles() []ProfileID {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]ProfileID, 0, len(h.listeners))
	for id := range h.listeners {
		result = append(result, id)
	}
	return result
}

// Count returns the number of registered listeners across all profiles.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ls := range h.listeners {
		n += len(ls)
	}
	return n
}

func (h *Hub) listenersFor(profileID ProfileID) []Listener {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]Listener, 0, len(h.listeners[profileID]))
	for _, fn := range h.listeners[profileID] {
		result = append(result, fn)
	}
	return result
}

func (h *Hub) remove(profileID ProfileID, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners[profileID], id)
	if len(h.listeners[profileID]) == 0 {
		delete(h.listeners, profileID)
	}
}
