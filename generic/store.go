/*
store.go - Persistence interface for ledger transactions

PURPOSE:
  Defines the interface between the domain logic and the database.
  The Store handles persistence while maintaining append-only semantics.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:   Core transaction persistence (append, load, exists)
  TxStore: Transactional operations (atomic multi-write)

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write
  - AppendBatch(): Atomic multi-transaction write
  - NO Update() or Delete() methods exist

ATOMIC BATCHES:
  AppendBatch() ensures all-or-nothing semantics. When a family pays one
  lump sum for three children, either all three payment entries are
  written or none are. This prevents a partially applied family payment.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package generic

import "context"

// =============================================================================
// STORE - Interface for transaction persistence (append-only)
// =============================================================================

// Store handles persistence of transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete.
type Store interface {
	// Append persists a transaction. Returns error if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple transactions atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Load returns all transactions for entity+account, ordered by EffectiveAt.
	Load(ctx context.Context, entityID EntityID, account Account) ([]Transaction, error)

	// LoadRange returns transactions in [from, to].
	LoadRange(ctx context.Context, entityID EntityID, account Account, from, to TimePoint) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
