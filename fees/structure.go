/*
structure.go - Fee structures and the annual fee formula

PURPOSE:
  A FeeStructure is a set of named fee heads. Every class has a default
  structure; a student may carry an override. The effective structure is a
  shallow merge: the override wins per head, missing heads fall back to the
  class default, and heads absent from both are zero.

ANNUAL FEE:
  gross = (tuition + transport + computer) x 12
        + admission + miscellaneous
        + exam x 3
        - discount
  sibling: gross -= siblingDiscount x 12   (only when the discount is positive)
  total  = max(0, gross)

EXAMPLE:
  class default {tuition: 500, admission: 1000, exam: 200}
  total = 500x12 + 1000 + 200x3 = 7600
*/
package fees

import (
	"github.com/shopspring/decimal"

	"github.com/warp/school-engine/generic"
)

// FeeStructure maps fee heads to amounts.
type FeeStructure map[FeeHead]decimal.Decimal

// Get returns the head's amount, or zero when absent.
func (fs FeeStructure) Get(h FeeHead) decimal.Decimal {
	if fs == nil {
		return decimal.Zero
	}
	if v, ok := fs[h]; ok {
		return v
	}
	return decimal.Zero
}

// IsEmpty reports whether no head is set.
func (fs FeeStructure) IsEmpty() bool {
	return len(fs) == 0
}

// Merge overlays override on top of base. Neither input is modified.
func Merge(base, override FeeStructure) FeeStructure {
	merged := make(FeeStructure, len(base)+len(override))
	for h, v := range base {
		merged[h] = v
	}
	for h, v := range override {
		merged[h] = v
	}
	return merged
}

// EffectiveStructure merges the student's override onto their class default.
func EffectiveStructure(student Student, settings Settings) FeeStructure {
	return Merge(settings.ClassFees[student.ClassName], student.FeeOverride)
}

// =============================================================================
// ANNUAL FEE BREAKDOWN
// =============================================================================

// Breakdown itemizes an annual fee.
type Breakdown struct {
	Monthly         generic.Amount // sum of monthly heads x months per year
	OneTime         generic.Amount
	Exam            generic.Amount // exam head x exam cycles
	Discount        generic.Amount
	SiblingDiscount generic.Amount // zero unless applied
	Gross           generic.Amount // before flooring, may be negative
	Total           generic.Amount // floored at zero
}

// AnnualFee computes the annual obligation for a fee structure.
func AnnualFee(fs FeeStructure, settings Settings, isSibling bool) Breakdown {
	m := settings.multipliers()
	months := decimal.NewFromInt(m.MonthsPerYear)

	monthly := decimal.Zero
	for _, h := range MonthlyHeads {
		monthly = monthly.Add(fs.Get(h))
	}
	monthly = monthly.Mul(months)

	oneTime := decimal.Zero
	for _, h := range OneTimeHeads {
		oneTime = oneTime.Add(fs.Get(h))
	}

	exam := fs.Get(HeadExam).Mul(decimal.NewFromInt(m.ExamCyclesPerYear))
	discount := fs.Get(HeadDiscount)

	gross := monthly.Add(oneTime).Add(exam).Sub(discount)

	sibling := decimal.Zero
	if isSibling && settings.SiblingDiscount.IsPositive() {
		sibling = settings.SiblingDiscount.Mul(months)
		gross = gross.Sub(sibling)
	}

	b := Breakdown{
		Monthly:         generic.NewAmountFromDecimal(monthly),
		OneTime:         generic.NewAmountFromDecimal(oneTime),
		Exam:            generic.NewAmountFromDecimal(exam),
		Discount:        generic.NewAmountFromDecimal(discount),
		SiblingDiscount: generic.NewAmountFromDecimal(sibling),
		Gross:           generic.NewAmountFromDecimal(gross),
	}
	b.Total = b.Gross.Floor()
	return b
}
