/*
ledger.go - Append-only money log

PURPOSE:
  The Ledger is the immutable source of truth for all money received from
  families and paid to staff. Totals are always computed by replaying
  transactions; there is no separate "paid" field that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  A mistaken payment is not edited. A Reversal transaction with the same
  amount is appended instead; both stay in the ledger.

SEE ALSO:
  - store.go: Low-level persistence interface
  - totals.go: Paid totals
*/
package generic

import "context"

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger is the source of truth for all money movement.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch adds multiple transactions atomically.
	// Used for combined family payments.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Transactions returns all transactions for entity+account, chronologically.
	Transactions(ctx context.Context, entityID EntityID, account Account) ([]Transaction, error)

	// TransactionsInRange returns transactions in [from, to].
	TransactionsInRange(ctx context.Context, entityID EntityID, account Account, from, to TimePoint) ([]Transaction, error)

	// PaidAt computes the net paid amount up to and including at.
	PaidAt(ctx context.Context, entityID EntityID, account Account, at TimePoint) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	return l.AppendBatch(ctx, []Transaction{tx})
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if err := validateTransaction(tx); err != nil {
			return err
		}
		if tx.IdempotencyKey == "" {
			continue
		}
		if seen[tx.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
	}

	return l.write(ctx, func(s Store) error {
		for key := range seen {
			exists, err := s.Exists(ctx, key)
			if err != nil {
				return err
			}
			if exists {
				return ErrDuplicateIdempotencyKey
			}
		}
		if len(txs) == 1 {
			return s.Append(ctx, txs[0])
		}
		return s.AppendBatch(ctx, txs)
	})
}

// write runs fn inside a store transaction when the store has them, so the
// idempotency check and the append see the same rows.
func (l *DefaultLedger) write(ctx context.Context, fn func(Store) error) error {
	if ts, ok := l.Store.(TxStore); ok {
		return ts.WithTx(ctx, fn)
	}
	return fn(l.Store)
}

func (l *DefaultLedger) Transactions(ctx context.Context, entityID EntityID, account Account) ([]Transaction, error) {
	return l.Store.Load(ctx, entityID, account)
}

func (l *DefaultLedger) TransactionsInRange(ctx context.Context, entityID EntityID, account Account, from, to TimePoint) ([]Transaction, error) {
	return l.Store.LoadRange(ctx, entityID, account, from, to)
}

func (l *DefaultLedger) PaidAt(ctx context.Context, entityID EntityID, account Account, at TimePoint) (Amount, error) {
	txs, err := l.Store.Load(ctx, entityID, account)
	if err != nil {
		return Amount{}, err
	}

	var upTo []Transaction
	for _, tx := range txs {
		if tx.EffectiveAt.After(at) {
			break
		}
		upTo = append(upTo, tx)
	}
	return TotalsOf(upTo).Paid(), nil
}

// Payments and reversals carry positive amounts; the type gives the sign.
func validateTransaction(tx Transaction) error {
	switch tx.Type {
	case TxPayment, TxReversal:
		if !tx.Amount.IsPositive() {
			return ErrInvalidAmount
		}
	}
	return nil
}
