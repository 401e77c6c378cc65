/*
salary.go - Monthly salary from attendance

PURPOSE:
  Computes a teacher's net salary for one month from their base salary,
  the attendance register and the school holidays. Pure function; nothing
  here is stored.

ALGORITHM:
  perDay      = base / Rules.DaysInMonth (30 for every month)
  for each real calendar day of the month, skipping Sundays:
    marked absent  -> absentDays++
    marked present -> presentDays++
    unmarked       -> ignored
  holidayDays      = holidays in the month not falling on a Sunday
  totalPresent     = presentDays + holidayDays
  deductionDays    = max(0, absentDays - Rules.AllowedAbsents)
  deduction        = round2(deductionDays x perDay)
  net              = round2(base - deduction)

EXAMPLE:
  base 3000, 2 absences -> perDay 100, deduction 100, net 2900

  February has 28 real days but the per-day rate still divides by 30.
*/
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/warp/school-engine/generic"
)

// SalaryDetails is the computed salary slip for one month.
type SalaryDetails struct {
	TeacherID        generic.EntityID
	Month            generic.MonthKey
	BaseSalary       generic.Amount
	PerDaySalary     generic.Amount
	DaysInMonth      int // calendar days actually iterated
	WorkingDays      int // non-Sunday calendar days
	PresentDays      int
	AbsentDays       int
	UnmarkedDays     int
	HolidayDays      int
	TotalPresentDays int
	AllowedAbsents   int
	DeductionDays    int
	DeductionAmount  generic.Amount
	NetSalary        generic.Amount
}

// CalculateSalary computes the salary for teacher in month.
func CalculateSalary(teacher Teacher, month generic.MonthKey, register AttendanceRegister, holidays generic.HolidayCalendar, rules Rules) SalaryDetails {
	rules = rules.withDefaults()

	base := generic.NewAmountFromDecimal(teacher.BaseSalary)
	perDay := base.Div(decimal.NewFromInt(rules.DaysInMonth))

	sd := SalaryDetails{
		TeacherID:      teacher.ID,
		Month:          month,
		BaseSalary:     base,
		PerDaySalary:   perDay,
		AllowedAbsents: rules.allowedAbsents(),
	}

	for _, day := range month.Period().Days() {
		sd.DaysInMonth++
		if day.IsSunday() {
			continue
		}
		sd.WorkingDays++

		status, ok := register.Status(day, teacher.ID)
		switch {
		case !ok:
			sd.UnmarkedDays++
		case status == StatusAbsent:
			sd.AbsentDays++
		case status == StatusPresent:
			sd.PresentDays++
		}
	}

	if holidays != nil {
		for _, h := range holidays.HolidaysInMonth(month) {
			if !h.Date.IsSunday() {
				sd.HolidayDays++
			}
		}
	}
	sd.TotalPresentDays = sd.PresentDays + sd.HolidayDays

	sd.DeductionDays = sd.AbsentDays - sd.AllowedAbsents
	if sd.DeductionDays < 0 {
		sd.DeductionDays = 0
	}
	sd.DeductionAmount = perDay.Mul(decimal.NewFromInt(int64(sd.DeductionDays))).Round2()
	sd.NetSalary = base.Sub(sd.DeductionAmount).Round2()

	return sd
}
