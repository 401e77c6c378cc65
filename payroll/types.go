// Package payroll computes teacher salaries from attendance and holidays
// and records salary disbursements on the generic ledger.
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/school-engine/generic"
)

// =============================================================================
// SALARY ACCOUNT
// =============================================================================

// Account is the concrete ledger account for the payroll domain.
type Account string

func (a Account) AccountID() string     { return string(a) }
func (a Account) AccountDomain() string { return "payroll" }

var _ generic.Account = Account("")

// AccountSalary holds salary disbursements to a teacher.
const AccountSalary Account = "salary"

func init() {
	generic.RegisterAccount(AccountSalary)
}

// =============================================================================
// TEACHER
// =============================================================================

type Teacher struct {
	ID         generic.EntityID
	Name       string
	Subject    string
	Phone      string
	BaseSalary decimal.Decimal
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// AttendanceStatus is what was marked for a teacher on a day.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
)

// ParseAttendanceStatus accepts "present" or "absent".
func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	switch AttendanceStatus(s) {
	case StatusPresent, StatusAbsent:
		return AttendanceStatus(s), nil
	}
	return "", fmt.Errorf("invalid attendance status %q", s)
}

// AttendanceRegister maps a yyyy-MM-dd date key to each teacher's status that day.
type AttendanceRegister map[string]map[generic.EntityID]AttendanceStatus

// Mark records a status, replacing any earlier mark for the same day.
func (r AttendanceRegister) Mark(date generic.TimePoint, teacherID generic.EntityID, status AttendanceStatus) {
	key := date.DateKey()
	day, ok := r[key]
	if !ok {
		day = make(map[generic.EntityID]AttendanceStatus)
		r[key] = day
	}
	day[teacherID] = status
}

// Status returns the teacher's mark for the day; ok is false when unmarked.
func (r AttendanceRegister) Status(date generic.TimePoint, teacherID generic.EntityID) (AttendanceStatus, bool) {
	day, ok := r[date.DateKey()]
	if !ok {
		return "", false
	}
	status, ok := day[teacherID]
	return status, ok
}

// =============================================================================
// RULES
// =============================================================================

// Rules are the fixed salary constants.
type Rules struct {
	// DaysInMonth divides the base salary into a per-day rate. It is the same
	// for every month, even though attendance is read over the real calendar.
	DaysInMonth int64

	// AllowedAbsents are free absences per month. nil means one; use
	// FreeAbsents(0) to deduct every absence.
	AllowedAbsents *int
}

// DefaultRules are 30 days and one free absence.
func DefaultRules() Rules {
	return Rules{DaysInMonth: 30, AllowedAbsents: FreeAbsents(1)}
}

// FreeAbsents returns n as an AllowedAbsents value.
func FreeAbsents(n int) *int { return &n }

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.DaysInMonth <= 0 {
		r.DaysInMonth = d.DaysInMonth
	}
	if r.AllowedAbsents == nil || *r.AllowedAbsents < 0 {
		r.AllowedAbsents = d.AllowedAbsents
	}
	return r
}

func (r Rules) allowedAbsents() int { return *r.withDefaults().AllowedAbsents }

// =============================================================================
// SALARY PAYMENTS
// =============================================================================

// SalaryPayment is a disbursement recorded against one salary month.
type SalaryPayment struct {
	ID        generic.TransactionID
	TeacherID generic.EntityID
	Date      generic.TimePoint
	Amount    generic.Amount
	Method    string
	Month     generic.MonthKey
}

// PaymentFromTransaction reads a salary payment back from the ledger.
func PaymentFromTransaction(tx generic.Transaction) SalaryPayment {
	p := SalaryPayment{
		ID:        tx.ID,
		TeacherID: tx.EntityID,
		Date:      tx.EffectiveAt,
		Amount:    tx.Amount,
		Method:    tx.Method,
	}
	if len(tx.Months) > 0 {
		p.Month = tx.Months[0]
	}
	return p
}

// PaymentStatus is paid or pending for a salary month.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "paid"
	StatusPending PaymentStatus = "pending"
)

// Status is paid iff some payment is tagged with month.
func Status(payments []SalaryPayment, month generic.MonthKey) PaymentStatus {
	for _, p := range payments {
		if p.Month == month {
			return StatusPaid
		}
	}
	return StatusPending
}
