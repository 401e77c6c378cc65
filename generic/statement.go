package generic

// =============================================================================
// STATEMENT - Ledger replay with running totals
// =============================================================================

// StatementLine is one transaction with the net paid after it.
type StatementLine struct {
	Transaction
	PaidToDate Amount
}

// Statement replays an entity's transactions over a period.
// Opening is the net paid before the period starts.
// Read it with Ledger.PaidAt and Ledger.TransactionsInRange.
type Statement struct {
	EntityID EntityID
	Account  Account
	Period   Period
	Opening  Amount
	Lines    []StatementLine
	Closing  Amount
}

// BuildStatement lays out txs, ordered by effective date, with running
// totals from opening. Transactions outside the period are ignored.
func BuildStatement(entityID EntityID, account Account, period Period, opening Amount, txs []Transaction) Statement {
	s := Statement{
		EntityID: entityID,
		Account:  account,
		Period:   period,
		Opening:  opening,
		Lines:    make([]StatementLine, 0, len(txs)),
	}
	running := opening
	for _, tx := range txs {
		if !period.Contains(tx.EffectiveAt) {
			continue
		}
		running = running.Add(TotalsOf([]Transaction{tx}).Paid())
		s.Lines = append(s.Lines, StatementLine{Transaction: tx, PaidToDate: running})
	}
	s.Closing = running
	return s
}
