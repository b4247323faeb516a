// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/consequence-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[generic.ProfileID][]generic.Transaction
	ids          map[generic.TransactionID]bool
	seq          int64
	closed       bool

	hub *generic.Hub
}

var _ generic.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[generic.ProfileID][]generic.Transaction),
		ids:          make(map[generic.TransactionID]bool),
		hub:          generic.NewHub(),
	}
}

// Append adds a single transaction in arrival order and notifies the
// profile's subscribers. Append-only.
func (m *Memory) Append(ctx context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return generic.ErrStoreClosed
	}
	if tx.ID != "" && m.ids[tx.ID] {
		m.mu.Unlock()
		return generic.ErrDuplicateTransaction
	}
	m.seq++
	tx.Seq = m.seq
	m.transactions[tx.ProfileID] = append(m.transactions[tx.ProfileID], tx)
	if tx.ID != "" {
		m.ids[tx.ID] = true
	}
	m.mu.Unlock()

	return m.hub.Publish(ctx, tx.ProfileID, m.Load)
}

func (m *Memory) Load(_ context.Context, profileID generic.ProfileID) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Transaction, len(m.transactions[profileID]))
	copy(result, m.transactions[profileID])
	return result, nil
}

func (m *Memory) Subscribe(ctx context.Context, profileID generic.ProfileID, fn generic.Listener) (func(), error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, generic.ErrStoreClosed
	}
	return m.hub.Subscribe(ctx, profileID, fn, m.Load)
}

// Subscribers returns the number of live subscriptions.
func (m *Memory) Subscribers() int {
	return m.hub.Count()
}

// Close rejects further appends and subscriptions. Existing subscribers
// stop receiving updates because nothing else is published.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
