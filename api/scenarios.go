/*
scenarios.go - Demo school loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with a small
	school: classes with fee structures, families of siblings, teachers
	with a month of attendance, and exam marks.

AVAILABLE SCENARIOS:

	sibling-family:  Three siblings sharing a parent phone plus one only child
	payroll-month:   Teachers with March 2025 attendance, holidays and one paid slip
	exam-results:    Class subjects and marks across exam cycles
	full-school:     All of the above

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Save class fee structures and subjects
 3. Save students / teachers
 4. Append ledger transactions through the services

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "sibling-family"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
	The combined family payment in sibling-family is only made when a
	session start date is configured.

SEE ALSO:
  - handlers.go: Handler and helpers
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/school-engine/fees"
	"github.com/warp/school-engine/generic"
	"github.com/warp/school-engine/payroll"
	"github.com/warp/school-engine/results"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "sibling-family",
		Name:        "Sibling Family",
		Description: "Three siblings on one parent phone, sibling discount, single and combined payments",
		Category:    "fees",
	},
	{
		ID:          "payroll-month",
		Name:        "Payroll Month",
		Description: "Two teachers with March 2025 attendance, holidays and one salary already paid",
		Category:    "payroll",
	},
	{
		ID:          "exam-results",
		Name:        "Exam Results",
		Description: "Quarterly and half-yearly marks with a missing subject",
		Category:    "results",
	},
	{
		ID:          "full-school",
		Name:        "Full School",
		Description: "Fees, payroll and results together",
		Category:    "school",
	},
}

type scenarioLoader func(h *Handler, ctx context.Context) error

var scenarioLoaders = map[string]scenarioLoader{
	"sibling-family": (*Handler).loadSiblingFamilyScenario,
	"payroll-month":  (*Handler).loadPayrollMonthScenario,
	"exam-results":   (*Handler).loadExamResultsScenario,
	"full-school":    (*Handler).loadFullSchoolScenario,
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
}

// LoadScenario resets the database and loads a demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeRequest(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		h.fail(w, r, "Failed to reset database", err)
		return
	}
	if err := load(h, ctx); err != nil {
		h.fail(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.log.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		h.fail(w, r, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadSiblingFamilyScenario creates the Khan family (three children on one
// phone) and an only child. The eldest pays full fees; the two younger
// children get the sibling discount.
func (h *Handler) loadSiblingFamilyScenario(ctx context.Context) error {
	classFees := map[string]fees.FeeStructure{
		"Class 3": {fees.HeadTuition: d("400"), fees.HeadAdmission: d("1000"), fees.HeadExam: d("150")},
		"Class 5": {fees.HeadTuition: d("500"), fees.HeadTransport: d("200"), fees.HeadAdmission: d("1000"), fees.HeadExam: d("200")},
		"Class 8": {fees.HeadTuition: d("650"), fees.HeadComputer: d("100"), fees.HeadAdmission: d("1200"), fees.HeadExam: d("250")},
	}
	for className, fs := range classFees {
		if err := h.Store.SaveClassFees(ctx, className, fs); err != nil {
			return err
		}
	}

	students := []fees.Student{
		{ID: "stu-ayesha", Name: "Ayesha Khan", ClassName: "Class 8", ParentPhone: "0300-1234567", DateOfBirth: date(2011, 2, 14)},
		{ID: "stu-bilal", Name: "Bilal Khan", ClassName: "Class 5", ParentPhone: "0300-1234567", DateOfBirth: date(2014, 6, 3)},
		{ID: "stu-hina", Name: "Hina Khan", ClassName: "Class 3", ParentPhone: " 0300-1234567", DateOfBirth: date(2016, 9, 21),
			FeeOverride: fees.FeeStructure{fees.HeadDiscount: d("500")}},
		{ID: "stu-omar", Name: "Omar Siddiqui", ClassName: "Class 5", ParentPhone: "0321-7654321", DateOfBirth: date(2014, 1, 30)},
	}
	for _, st := range students {
		if err := h.Store.SaveStudent(ctx, st); err != nil {
			return err
		}
	}

	payments := []struct {
		student string
		amount  string
		date    generic.TimePoint
		months  []generic.MonthKey
	}{
		{"stu-ayesha", "2000", date(2024, 4, 5), []generic.MonthKey{"2024-04", "2024-05"}},
		{"stu-omar", "3000", date(2024, 4, 8), []generic.MonthKey{"2024-04", "2024-05", "2024-06"}},
		{"stu-omar", "700", date(2024, 7, 2), []generic.MonthKey{"2024-07"}},
	}
	for _, p := range payments {
		if _, err := h.Fees.RecordPayment(ctx, p.student, fees.PaymentInput{
			Amount:    d(p.amount),
			Method:    "cash",
			Date:      p.date,
			Months:    p.months,
			CreatedBy: "scenario",
		}); err != nil {
			return err
		}
	}

	if !h.Fees.Settings().SessionConfigured() {
		return nil
	}
	_, err := h.Fees.RecordCombinedPayment(ctx, fees.CombinedPaymentInput{
		StudentIDs: []string{"stu-ayesha", "stu-bilal", "stu-hina"},
		Amount:     d("6000"),
		Method:     "bank",
		Date:       date(2024, 8, 1),
		Months:     []generic.MonthKey{"2024-08"},
		CreatedBy:  "scenario",
	})
	return err
}

// loadPayrollMonthScenario marks March 2025 for two teachers. Mr. Rahman is
// absent three days and loses two days' pay; Ms. Fatima is absent once and
// keeps her full salary, which has already been paid.
func (h *Handler) loadPayrollMonthScenario(ctx context.Context) error {
	teachers := []payroll.Teacher{
		{ID: "tch-rahman", Name: "Abdul Rahman", Subject: "Mathematics", Phone: "0333-1112223", BaseSalary: d("30000")},
		{ID: "tch-fatima", Name: "Fatima Noor", Subject: "English", Phone: "0345-9998887", BaseSalary: d("27000")},
	}
	for _, t := range teachers {
		if err := h.Store.SaveTeacher(ctx, t); err != nil {
			return err
		}
	}

	holidays := []generic.Holiday{
		{ID: "hol-pakistan-day", Date: date(2025, 3, 23), Name: "Pakistan Day"}, // Sunday, not counted
		{ID: "hol-eid-1", Date: date(2025, 3, 31), Name: "Eid ul-Fitr"},
	}
	for _, hol := range holidays {
		if err := h.Store.SaveHoliday(ctx, hol); err != nil {
			return err
		}
	}

	absent := map[generic.EntityID]map[int]bool{
		"tch-rahman": {4: true, 12: true, 19: true},
		"tch-fatima": {7: true},
	}
	month := generic.MonthKey("2025-03")
	for _, day := range month.Period().Days() {
		if day.IsSunday() || day.Day() == 31 {
			continue
		}
		for _, t := range teachers {
			status := payroll.StatusPresent
			if absent[t.ID][day.Day()] {
				status = payroll.StatusAbsent
			}
			if err := h.Store.MarkAttendance(ctx, day, string(t.ID), status); err != nil {
				return err
			}
		}
	}

	_, err := h.Payroll.PaySalary(ctx, "tch-fatima", payroll.PayInput{
		Month:     month.String(),
		Method:    "bank",
		Date:      date(2025, 4, 1),
		CreatedBy: "scenario",
	})
	return err
}

// loadExamResultsScenario records two exam cycles for a Class 5 student.
// English was not recorded in the quarterly exam.
func (h *Handler) loadExamResultsScenario(ctx context.Context) error {
	if err := h.Store.SaveSubjects(ctx, "Class 5", []string{"Mathematics", "English", "Science", "Urdu"}); err != nil {
		return err
	}

	st, err := h.Store.GetStudent(ctx, "stu-bilal")
	if err != nil {
		return err
	}
	if st == nil {
		err := h.Store.SaveStudent(ctx, fees.Student{
			ID: "stu-bilal", Name: "Bilal Khan", ClassName: "Class 5",
			ParentPhone: "0300-1234567", DateOfBirth: date(2014, 6, 3),
		})
		if err != nil {
			return err
		}
	}

	marks := map[results.ExamCycle]results.RecordedMarks{
		results.Quarterly: {
			"Mathematics": mark(88), "English": nil, "Science": mark(74), "Urdu": mark(69),
		},
		results.HalfYearly: {
			"Mathematics": mark(91), "English": mark(78), "Science": mark(80), "Urdu": mark(72),
		},
	}
	for cycle, m := range marks {
		if err := h.Store.SaveMarks(ctx, "stu-bilal", cycle, m); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadFullSchoolScenario(ctx context.Context) error {
	for _, load := range []scenarioLoader{
		(*Handler).loadSiblingFamilyScenario,
		(*Handler).loadPayrollMonthScenario,
		(*Handler).loadExamResultsScenario,
	} {
		if err := load(h, ctx); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(year, month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, time.Month(month), day)
}

func mark(v float64) *float64 { return &v }
