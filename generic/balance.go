/*
balance.go - Money position for a period

PURPOSE:
  Compares what an entity owes over a period with what it has paid. This
  answers "how far behind is this student?" as well as "how much is left?".

KEY INSIGHT:
  The obligation belongs to the whole PERIOD (the academic session), but it
  falls due month by month. A student who has paid 3 of 12 months in month
  3 owes a lot for the year and nothing right now.

BALANCE COMPONENTS:
  Obligation:     Full period obligation (the annual fee)
  ExpectedToDate: Obligation spread evenly over the period's months, up to now
  Paid:           Payments - reversals + adjustments

  Outstanding = max(0, Obligation - Paid)
  Arrears     = max(0, ExpectedToDate - Paid)
  Credit      = max(0, Paid - Obligation)

EXAMPLE:
  Annual fee 12000, 3 of 12 months passed, 2000 paid:

  ExpectedToDate = 12000 x 3/12 = 3000
  Outstanding    = 10000
  Arrears        = 1000

SEE ALSO:
  - totals.go: Paid from transactions
  - fees/due.go: Uses Balance for the fee summary
*/
package generic

import "github.com/shopspring/decimal"

// Balance is an entity's money position for a period.
type Balance struct {
	Period         Period
	Obligation     Amount
	ExpectedToDate Amount
	Paid           Amount
}

// Outstanding is what remains of the full obligation.
func (b Balance) Outstanding() Amount { return b.Obligation.Sub(b.Paid).Floor() }

// Arrears is what should have been paid by now and wasn't.
func (b Balance) Arrears() Amount { return b.ExpectedToDate.Sub(b.Paid).Floor() }

// Credit is anything paid beyond the obligation.
func (b Balance) Credit() Amount { return b.Paid.Sub(b.Obligation).Floor() }

// NewBalance builds the position after monthsElapsed of monthsInPeriod.
func NewBalance(period Period, obligation Amount, txs []Transaction, monthsElapsed, monthsInPeriod int) Balance {
	return Balance{
		Period:         period,
		Obligation:     obligation,
		ExpectedToDate: ProRata(obligation, monthsElapsed, monthsInPeriod),
		Paid:           TotalsOf(txs).Paid(),
	}
}

// ProRata returns total x elapsed/of, rounded to cents. elapsed is clamped
// to [0, of]; a non-positive of yields the full total.
func ProRata(total Amount, elapsed, of int) Amount {
	if of <= 0 {
		return total
	}
	if elapsed <= 0 {
		return ZeroAmount()
	}
	if elapsed >= of {
		return total
	}
	share := total.Value.Mul(decimal.NewFromInt(int64(elapsed))).Div(decimal.NewFromInt(int64(of)))
	return Amount{Value: share}.Round2()
}
