package consequence

import (
	"context"
	"sync"

	"github.com/warp/consequence-ledger/generic"
	"github.com/warp/consequence-ledger/observability"
)

// Subscription bridges a Store's live feed to one consumer for exactly one
// profile. Every delivery replaces the consumer's working set; snapshots
// are never merged, so repeated or reordered deliveries are harmless.
type Subscription struct {
	profileID generic.ProfileID

	mu         sync.Mutex
	closed     bool
	deliveries int
	cancel     func()
}

// Subscribe opens the feed. fn receives the current snapshot before
// Subscribe returns and every later snapshot until Close.
func Subscribe(ctx context.Context, store generic.Store, profileID generic.ProfileID, fn func([]generic.Transaction)) (*Subscription, error) {
	s := &Subscription{profileID: profileID}
	cancel, err := store.Subscribe(ctx, profileID, s.deliver(fn))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	observability.SubscriptionOpened()
	return s, nil
}

func (s *Subscription) deliver(fn func([]generic.Transaction)) generic.Listener {
	return func(txs []generic.Transaction) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		s.deliveries++
		observability.RecordFeedDelivery()
		fn(ownProfile(s.profileID, txs))
	}
}

// Deliveries returns how many snapshots reached the consumer.
func (s *Subscription) Deliveries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliveries
}

// Close stops deliveries and releases the store listener. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	observability.SubscriptionClosed()
}

// ownProfile drops entries that belong to another profile. Stores deliver
// per profile already; this only guards against a misbehaving one.
func ownProfile(profileID generic.ProfileID, txs []generic.Transaction) []generic.Transaction {
	for i := range txs {
		if txs[i].ProfileID != profileID {
			kept := make([]generic.Transaction, 0, len(txs))
			for _, tx := range txs {
				if tx.ProfileID == profileID {
					kept = append(kept, tx)
				}
			}
			return kept
		}
	}
	return txs
}
