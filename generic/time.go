package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - Calendar day abstraction
// =============================================================================

type TimePoint struct {
	Time time.Time
}

const (
	// DateLayout is the yyyy-MM-dd key used for attendance and holidays.
	DateLayout = "2006-01-02"
	// MonthLayout is the yyyy-MM key used for salary months and fee month tags.
	MonthLayout = "2006-01"
)

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint {
	return FromTime(time.Now())
}

// ParseDate parses a yyyy-MM-dd key.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, &DateKeyError{Value: s, Layout: DateLayout}
	}
	return FromTime(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsSunday() bool        { return tp.Weekday() == time.Sunday }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

// DateKey returns the yyyy-MM-dd key for the day.
func (tp TimePoint) DateKey() string { return tp.Time.Format(DateLayout) }

// MonthKey returns the yyyy-MM key for the day's month.
func (tp TimePoint) MonthKey() MonthKey { return MonthKey(tp.Time.Format(MonthLayout)) }

func (tp TimePoint) String() string { return tp.DateKey() }

// =============================================================================
// MONTH KEY - yyyy-MM
// =============================================================================

// MonthKey is a yyyy-MM string. It doubles as a storage key, so the format
// must never change.
type MonthKey string

// ParseMonth validates a yyyy-MM key.
func ParseMonth(s string) (MonthKey, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return "", &DateKeyError{Value: s, Layout: MonthLayout}
	}
	return MonthKey(t.Format(MonthLayout)), nil
}

// Start returns the first day of the month. Invalid keys yield the zero TimePoint.
func (m MonthKey) Start() TimePoint {
	t, err := time.Parse(MonthLayout, string(m))
	if err != nil {
		return TimePoint{}
	}
	return FromTime(t)
}

// Period returns the calendar month as a period.
func (m MonthKey) Period() Period {
	start := m.Start()
	return Period{Start: start, End: EndOfMonth(start.Year(), start.Month())}
}

func (m MonthKey) String() string { return string(m) }

// =============================================================================
// HOLIDAY CALENDAR - School holidays
// =============================================================================

// Holiday represents a school holiday. Holidays are paid days for staff.
type Holiday struct {
	ID   string
	Date TimePoint
	Name string
}

// HolidayCalendar provides holiday lookup functionality.
type HolidayCalendar interface {
	// HolidaysInMonth returns the holidays whose date falls in month.
	HolidaysInMonth(month MonthKey) []Holiday
}

// HolidayList is an in-memory calendar.
type HolidayList []Holiday

func (hl HolidayList) HolidaysInMonth(month MonthKey) []Holiday {
	var result []Holiday
	for _, h := range hl {
		if h.Date.MonthKey() == month {
			result = append(result, h)
		}
	}
	return result
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// EndOfMonth returns the last calendar day of the month.
func EndOfMonth(year int, month time.Month) TimePoint {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return TimePoint{Time: t}
}

// MonthsPassed counts calendar months from start to asOf, inclusive of both
// endpoint months. Returns 0 when asOf is in an earlier month than start.
func MonthsPassed(start, asOf TimePoint) int {
	n := (asOf.Year()-start.Year())*12 + int(asOf.Month()) - int(start.Month()) + 1
	if n < 0 {
		return 0
	}
	return n
}
