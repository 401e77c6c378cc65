/*
Package generic provides the core money ledger engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for tracking
  money received and paid out by a school. Whether recording a tuition
  payment, a family's combined payment split across siblings, or a teacher's
  monthly salary disbursement, the same ledger handles persistence, totals
  and date keys.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A monetary quantity in the school's currency
  - Transaction: An immutable ledger entry recording money movement
  - EntityID / AccountID: Type-safe identifiers
  - Account: Which ledger (fees, salary) a transaction belongs to

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing students and teachers
  4. Auditability: Every transaction has reason, reference, and idempotency key

USAGE:
  tx := generic.Transaction{
      EntityID: "stu-123",
      Account:  fees.AccountFees,
      Amount:   generic.NewAmount(1500),
      Type:     generic.TxPayment,
  }

SEE ALSO:
  - errors.go: Sentinel and structured errors
  - totals.go: Paid totals from transactions
  - ledger.go: Transaction persistence interface
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Money in the school's currency
// =============================================================================

type Amount struct {
	Value decimal.Decimal
}

// Cent is the smallest amount the ledger distinguishes when comparing residues.
var Cent = decimal.New(1, -2)

func NewAmount(value float64) Amount {
	return Amount{Value: decimal.NewFromFloat(value)}
}

func NewAmountFromInt(value int64) Amount {
	return Amount{Value: decimal.NewFromInt(value)}
}

func NewAmountFromDecimal(value decimal.Decimal) Amount {
	return Amount{Value: value}
}

func ZeroAmount() Amount { return Amount{Value: decimal.Zero} }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s)} }
func (a Amount) Div(s decimal.Decimal) Amount { return Amount{Value: a.Value.Div(s)} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg()} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) String() string               { return a.Value.StringFixed(2) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Floor returns a clamped at zero.
func (a Amount) Floor() Amount { return a.Max(ZeroAmount()) }

// Round2 rounds to two decimal places, half away from zero.
func (a Amount) Round2() Amount { return Amount{Value: a.Value.Round(2)} }

// Float64 is for JSON responses only; never feed it back into calculations.
func (a Amount) Float64() float64 {
	f, _ := a.Value.Float64()
	return f
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type TransactionID string

// Account identifies which ledger a transaction belongs to.
// This is an interface so domain packages define their own concrete types.
// The generic package has NO knowledge of specific accounts.
//
// Domain packages implement this:
//
//   // In fees/types.go
//   type Account string
//   func (a Account) AccountID() string     { return string(a) }
//   func (a Account) AccountDomain() string { return "fees" }
//   const AccountFees Account = "fees"
//
type Account interface {
	// AccountID returns the unique identifier for this account.
	AccountID() string

	// AccountDomain returns which domain this account belongs to.
	AccountDomain() string
}

// =============================================================================
// TRANSACTION - Atomic money movement
// =============================================================================

type TransactionType string

const (
	TxPayment    TransactionType = "payment"    // Money received (fees) or disbursed (salary)
	TxAdjustment TransactionType = "adjustment" // Manual admin correction, signed
	TxReversal   TransactionType = "reversal"   // Undo a previous payment
)

type Transaction struct {
	ID          TransactionID
	EntityID    EntityID
	Account     Account
	EffectiveAt TimePoint
	Amount      Amount
	Type        TransactionType

	// Method is how the money moved: cash, bank transfer, cheque, ...
	Method string

	// Months are the calendar months (yyyy-MM) this transaction covers.
	// Optional for fees; exactly one for salary.
	Months []MonthKey

	ReferenceID    string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string

	// Audit fields
	CreatedBy string
	CreatedAt TimePoint
}

// CoversMonth reports whether the transaction is tagged with month.
func (tx Transaction) CoversMonth(month MonthKey) bool {
	for _, m := range tx.Months {
		if m == month {
			return true
		}
	}
	return false
}
