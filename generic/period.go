package generic

// =============================================================================
// PERIOD - A closed range of calendar days
// =============================================================================

// Period defines a time boundary: a calendar month for salary, an academic
// session for fees.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// SESSION - Academic year
// =============================================================================

// SessionFor returns the twelve-month academic session beginning at start.
func SessionFor(start TimePoint) Period {
	return Period{Start: start, End: start.AddMonths(12).AddDays(-1)}
}

// SessionLabel renders a session as "2024-2025".
func SessionLabel(p Period) string {
	return p.Start.Time.Format("2006") + "-" + p.End.Time.Format("2006")
}
