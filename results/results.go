/*
Package results computes cumulative exam percentages and grades.

EXAM CYCLES:
  quarterly -> halfYearly -> annual

  Each cycle is cumulative on the ones before it. Asking for halfYearly
  sums quarterly + halfYearly marks per subject; asking for annual sums
  all three. A cycle counts toward the maximum only if at least one
  subject has a recorded mark in it.

PERCENTAGE:
  max = subjects in the class x 100 x cycles with marks
  pct = obtained / max x 100, or nil when max is 0

  nil means "not yet available". It is never reported as 0.

GRADES (inclusive lower bounds, on the rounded percentage):
  90 A+, 80 A, 70 B+, 60 B, 50 C, 40 D, otherwise F
*/
package results

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnknownExamCycle is returned for exam names outside the three cycles.
var ErrUnknownExamCycle = errors.New("unknown exam cycle")

// MaxMarksPerSubject is the full mark of one subject in one cycle.
const MaxMarksPerSubject = 100

// =============================================================================
// EXAM CYCLES
// =============================================================================

type ExamCycle string

const (
	Quarterly  ExamCycle = "quarterly"
	HalfYearly ExamCycle = "halfYearly"
	Annual     ExamCycle = "annual"
)

// Cycles lists the exam cycles in order.
var Cycles = []ExamCycle{Quarterly, HalfYearly, Annual}

// ParseExamCycle accepts quarterly, halfYearly or annual.
func ParseExamCycle(s string) (ExamCycle, error) {
	for _, c := range Cycles {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownExamCycle, s)
}

// Through returns the cycles up to and including c.
func (c ExamCycle) Through() []ExamCycle {
	for i, cycle := range Cycles {
		if cycle == c {
			return Cycles[:i+1]
		}
	}
	return nil
}

// =============================================================================
// MARKS
// =============================================================================

// RecordedMarks are one cycle's marks by subject. A nil entry was not recorded.
type RecordedMarks map[string]*float64

// HasAny reports whether any subject has a recorded mark.
func (r RecordedMarks) HasAny() bool {
	for _, m := range r {
		if m != nil {
			return true
		}
	}
	return false
}

// StudentMarks are a student's recorded marks for every cycle.
type StudentMarks map[ExamCycle]RecordedMarks

// Marks are combined obtained marks by subject.
type Marks map[string]float64

// Total sums the obtained marks.
func (m Marks) Total() float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}

// Subjects returns the subject names in sorted order.
func (m Marks) Subjects() []string {
	subjects := make([]string, 0, len(m))
	for s := range m {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects
}

// CombineMarks sums each subject's marks over every cycle up to exam and
// counts the cycles that have any recorded mark.
func CombineMarks(all StudentMarks, exam ExamCycle) (Marks, int) {
	combined := make(Marks)
	cyclesWithMarks := 0
	for _, cycle := range exam.Through() {
		recorded := all[cycle]
		if !recorded.HasAny() {
			continue
		}
		cyclesWithMarks++
		for subject, mark := range recorded {
			if mark != nil {
				combined[subject] += *mark
			}
		}
	}
	return combined, cyclesWithMarks
}

// CumulativePercentage returns obtained / max x 100, or nil when max is 0.
func CumulativePercentage(marks Marks, cyclesWithMarks, subjectCount int) *float64 {
	maximum := float64(subjectCount * MaxMarksPerSubject * cyclesWithMarks)
	if maximum == 0 {
		return nil
	}
	pct := marks.Total() / maximum * 100
	return &pct
}

// Grade bands a percentage after rounding it to the nearest integer.
func Grade(pct float64) string {
	p := math.Round(pct)
	switch {
	case p >= 90:
		return "A+"
	case p >= 80:
		return "A"
	case p >= 70:
		return "B+"
	case p >= 60:
		return "B"
	case p >= 50:
		return "C"
	case p >= 40:
		return "D"
	default:
		return "F"
	}
}

// =============================================================================
// RESULT
// =============================================================================

// Result is a student's cumulative result for an exam.
type Result struct {
	Exam            ExamCycle
	Marks           Marks
	CyclesWithMarks int
	SubjectCount    int
	Obtained        float64
	Maximum         float64
	Percentage      *float64
	Grade           string // empty while no percentage is available
}

// Evaluate combines marks up to exam and grades the result.
func Evaluate(all StudentMarks, exam ExamCycle, subjectCount int) Result {
	marks, cycles := CombineMarks(all, exam)
	r := Result{
		Exam:            exam,
		Marks:           marks,
		CyclesWithMarks: cycles,
		SubjectCount:    subjectCount,
		Obtained:        marks.Total(),
		Maximum:         float64(subjectCount * MaxMarksPerSubject * cycles),
		Percentage:      CumulativePercentage(marks, cycles, subjectCount),
	}
	if r.Percentage != nil {
		r.Grade = Grade(*r.Percentage)
	}
	return r
}
