// Package fees implements student fee obligations and payments.
// It uses the generic ledger with a fee account, fee structures merged per
// student, and the combined family payment distributor.
package fees

import (
	"github.com/shopspring/decimal"

	"github.com/warp/school-engine/generic"
)

// =============================================================================
// FEE ACCOUNT
// =============================================================================

// Account is the concrete ledger account for the fees domain.
// Implements generic.Account interface.
type Account string

func (a Account) AccountID() string     { return string(a) }
func (a Account) AccountDomain() string { return "fees" }

// Compile-time check that Account implements generic.Account
var _ generic.Account = Account("")

// AccountFees holds every fee payment received for a student.
const AccountFees Account = "fees"

func init() {
	generic.RegisterAccount(AccountFees)
}

// =============================================================================
// FEE HEADS
// =============================================================================

// FeeHead names a category of fee.
type FeeHead string

const (
	// Monthly-recurring heads
	HeadTuition   FeeHead = "tuition"
	HeadTransport FeeHead = "transport"
	HeadComputer  FeeHead = "computer"

	// Annual one-time heads
	HeadAdmission     FeeHead = "admission"
	HeadMiscellaneous FeeHead = "miscellaneous"

	// Charged once per exam cycle
	HeadExam FeeHead = "exam"

	// Subtracted once from the annual total
	HeadDiscount FeeHead = "discount"
)

var (
	MonthlyHeads = []FeeHead{HeadTuition, HeadTransport, HeadComputer}
	OneTimeHeads = []FeeHead{HeadAdmission, HeadMiscellaneous}
	AllHeads     = []FeeHead{
		HeadTuition, HeadTransport, HeadComputer,
		HeadAdmission, HeadMiscellaneous, HeadExam, HeadDiscount,
	}
)

// IsKnownHead reports whether h is one of the fee heads the calculator reads.
func IsKnownHead(h FeeHead) bool {
	for _, known := range AllHeads {
		if h == known {
			return true
		}
	}
	return false
}

// =============================================================================
// STUDENT
// =============================================================================

// Student is the subset of a student record the fee engine needs.
type Student struct {
	ID          generic.EntityID
	Name        string
	ClassName   string
	ParentPhone string
	DateOfBirth generic.TimePoint // zero when unknown
	FeeOverride FeeStructure      // per-student heads; nil when none
}

// =============================================================================
// SETTINGS
// =============================================================================

// Multipliers turn head amounts into annual amounts.
type Multipliers struct {
	MonthsPerYear     int64 // monthly heads and sibling discount
	ExamCyclesPerYear int64 // exam head
}

// DefaultMultipliers are 12 months and 3 exam cycles.
func DefaultMultipliers() Multipliers {
	return Multipliers{MonthsPerYear: 12, ExamCyclesPerYear: 3}
}

// Settings holds the school-wide fee configuration.
type Settings struct {
	// ClassFees are the default structures keyed by class name.
	ClassFees map[string]FeeStructure

	// SiblingDiscount is a monthly reduction for non-firstborn children.
	SiblingDiscount decimal.Decimal

	// SessionStart is the first day of the academic session; zero when unset.
	SessionStart generic.TimePoint

	Multipliers Multipliers
}

// SessionConfigured reports whether a session start date is set.
func (s Settings) SessionConfigured() bool {
	return !s.SessionStart.IsZero()
}

func (s Settings) multipliers() Multipliers {
	m := s.Multipliers
	d := DefaultMultipliers()
	if m.MonthsPerYear <= 0 {
		m.MonthsPerYear = d.MonthsPerYear
	}
	if m.ExamCyclesPerYear <= 0 {
		m.ExamCyclesPerYear = d.ExamCyclesPerYear
	}
	return m
}
