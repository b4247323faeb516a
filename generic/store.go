/*
store.go - Persistence and live-feed interface for transactions

PURPOSE:
  Defines the boundary between the ledger logic and whatever keeps the
  log durable. The Store is a dumb log: it appends and it broadcasts.
  There is no business logic here.

KEY INTERFACES:
  Store: Append, Load and Subscribe for one profile's transactions

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write
  - NO Update() or Delete() methods exist

LIVE FEED CONTRACT:
  Subscribe() delivers the full ordered transaction set for the profile
  immediately, then again after every change (own appends and appends made
  by other writers). Each delivery is a complete snapshot, never a delta.
  Delivery order follows arrival order in the store, which is not
  necessarily timestamp order.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite with a watcher for cross-process writes
  - generic/store/memory.go: In-memory for tests

SEE ALSO:
  - hub.go: Shared subscription bookkeeping
  - ledger.go: Validating wrapper
*/
package generic

import "context"

// =============================================================================
// STORE - Interface for transaction persistence (append-only)
// =============================================================================

// Listener receives a full snapshot of a profile's transactions. The slice
// is owned by the listener.
type Listener func(txs []Transaction)

// Store handles persistence of transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
// Corrections are made via reversal transactions.
type Store interface {
	// Append persists a transaction and notifies the profile's subscribers.
	// This is the ONLY write operation.
	Append(ctx context.Context, tx Transaction) error

	// Load returns all transactions for a profile in arrival order.
	Load(ctx context.Context, profileID ProfileID) ([]Transaction, error)

	// Subscribe registers fn for the profile's live feed. fn is called with
	// the current snapshot before Subscribe returns. The returned function
	// unregisters fn; once it returns no further deliveries happen. It must
	// not be called from inside fn.
	Subscribe(ctx context.Context, profileID ProfileID, fn Listener) (unsubscribe func(), err error)
}
