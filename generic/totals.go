/*
totals.go - Paid totals from ledger transactions

PURPOSE:
  Answers "how much has been paid?" by replaying transactions. Callers
  compare the result against an obligation (annual fee, monthly salary)
  to derive what is still due.

TOTAL COMPONENTS:
  Payments:    Sum of payment transactions
  Reversals:   Sum of reversed payments
  Adjustments: Signed manual corrections

  Paid = Payments - Reversals + Adjustments

SEE ALSO:
  - fees/due.go: Due = max(0, annual fee - paid)
  - payroll/salary.go: Paid/pending by month
*/
package generic

// Totals summarizes a set of transactions.
type Totals struct {
	Payments    Amount
	Reversals   Amount
	Adjustments Amount
	Count       int
}

// Paid returns the net amount received or disbursed.
func (t Totals) Paid() Amount {
	return t.Payments.Sub(t.Reversals).Add(t.Adjustments)
}

// TotalsOf sums transactions by type.
func TotalsOf(txs []Transaction) Totals {
	t := Totals{
		Payments:    ZeroAmount(),
		Reversals:   ZeroAmount(),
		Adjustments: ZeroAmount(),
	}
	for _, tx := range txs {
		switch tx.Type {
		case TxPayment:
			t.Payments = t.Payments.Add(tx.Amount)
			t.Count++
		case TxReversal:
			t.Reversals = t.Reversals.Add(tx.Amount)
		case TxAdjustment:
			t.Adjustments = t.Adjustments.Add(tx.Amount)
		}
	}
	return t
}

// MonthsCovered returns the distinct month tags across payments, in first-seen order.
func MonthsCovered(txs []Transaction) []MonthKey {
	seen := make(map[MonthKey]bool)
	var months []MonthKey
	for _, tx := range txs {
		if tx.Type != TxPayment {
			continue
		}
		for _, m := range tx.Months {
			if !seen[m] {
				seen[m] = true
				months = append(months, m)
			}
		}
	}
	return months
}
