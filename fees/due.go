package fees

import (
	"github.com/warp/school-engine/generic"
)

// DueResult is the outcome of the annual due calculation.
type DueResult struct {
	Due            generic.Amount
	TotalAnnualFee generic.Amount
	TotalPaid      generic.Amount
	Breakdown      Breakdown
}

// CalculateAnnualDue compares a student's annual fee with what has been paid.
//
// A student with no structure anywhere owes nothing, whatever was paid.
// Overpayment is not carried as credit: due never goes below zero.
func CalculateAnnualDue(student Student, payments []generic.Transaction, settings Settings, isSibling bool) DueResult {
	b := AnnualFee(EffectiveStructure(student, settings), settings, isSibling)
	paid := generic.TotalsOf(payments).Paid()

	return DueResult{
		Due:            b.Total.Sub(paid).Floor(),
		TotalAnnualFee: b.Total,
		TotalPaid:      paid,
		Breakdown:      b,
	}
}

// Summary is what the fee screen shows for one student.
type Summary struct {
	Student      Student
	Session      string // "2024-2025", empty when no session is configured
	IsSibling    bool
	MonthsPassed int
	PaidMonths   []generic.MonthKey
	PaymentCount int
	DueResult

	// ExpectedToDate is the annual fee spread evenly over the session's
	// months passed so far. Arrears is how far payments trail it.
	// Both are zero when no session is configured.
	ExpectedToDate generic.Amount
	Arrears        generic.Amount
}

// Summarize builds a Summary as of the given day.
func Summarize(student Student, family []Student, payments []generic.Transaction, settings Settings, asOf generic.TimePoint) Summary {
	isSibling := IsSibling(student, family)
	s := Summary{
		Student:        student,
		IsSibling:      isSibling,
		PaidMonths:     generic.MonthsCovered(payments),
		PaymentCount:   generic.TotalsOf(payments).Count,
		DueResult:      CalculateAnnualDue(student, payments, settings, isSibling),
		ExpectedToDate: generic.ZeroAmount(),
		Arrears:        generic.ZeroAmount(),
	}
	if settings.SessionConfigured() {
		session := generic.SessionFor(settings.SessionStart)
		s.Session = generic.SessionLabel(session)
		s.MonthsPassed = generic.MonthsPassed(settings.SessionStart, asOf)

		bal := generic.NewBalance(session, s.TotalAnnualFee, payments,
			s.MonthsPassed, int(settings.multipliers().MonthsPerYear))
		s.ExpectedToDate = bal.ExpectedToDate
		s.Arrears = bal.Arrears()
	}
	return s
}
