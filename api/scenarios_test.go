/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state:
	- Students, teachers and classes are created
	- Ledger transactions are appended through the services
	- Dues, salaries and results match hand-computed values

These tests double as integration tests of the engines over SQLite.
*/
package api

import (
	"context"
	"math"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/school-engine/fees"
	"github.com/warp/school-engine/generic"
)

func familySettings() fees.Settings {
	s := sessionSettings()
	s.SiblingDiscount = decimal.NewFromInt(100)
	return s
}

func TestScenario_SiblingFamily(t *testing.T) {
	// GIVEN: Sibling family scenario with a configured session
	// WHEN: Loading the scenario
	// THEN: Firstborn pays full fees, siblings get the discount, and the
	//       combined payment is split across all three children

	s := newTestServer(t, familySettings())
	ctx := context.Background()

	if err := s.handler.loadSiblingFamilyScenario(ctx); err != nil {
		t.Fatalf("Failed to load sibling-family scenario: %v", err)
	}

	students, err := s.handler.Store.ListStudents(ctx)
	if err != nil {
		t.Fatalf("Failed to list students: %v", err)
	}
	if len(students) != 4 {
		t.Errorf("Expected 4 students, got %d", len(students))
	}

	asOf := generic.NewTimePoint(2024, 9, 1)
	expected := map[string]struct {
		annual    string
		isSibling bool
	}{
		// (650+100)x12 + 1200 + 250x3
		"stu-ayesha": {"10950.00", false},
		// (500+200)x12 + 1000 + 200x3 - 100x12
		"stu-bilal": {"8800.00", true},
		// 400x12 + 1000 + 150x3 - 500 - 100x12
		"stu-hina": {"4550.00", true},
		"stu-omar": {"10000.00", false},
	}
	for id, want := range expected {
		summary, err := s.handler.Fees.Summary(ctx, id, asOf)
		if err != nil {
			t.Fatalf("Failed to get summary for %s: %v", id, err)
		}
		if summary.TotalAnnualFee.String() != want.annual {
			t.Errorf("%s: expected annual fee %s, got %s", id, want.annual, summary.TotalAnnualFee)
		}
		if summary.IsSibling != want.isSibling {
			t.Errorf("%s: expected sibling=%v", id, want.isSibling)
		}
	}

	// Omar paid 3000 + 700 on his own
	omar, _ := s.handler.Fees.Summary(ctx, "stu-omar", asOf)
	if omar.Due.String() != "6300.00" {
		t.Errorf("Expected Omar's due 6300.00, got %s", omar.Due)
	}

	// The 6000 family payment is fully allocated across the three children
	paid := generic.ZeroAmount()
	var reference string
	for _, id := range []string{"stu-ayesha", "stu-bilal", "stu-hina"} {
		txs, err := s.handler.Fees.Payments(ctx, id)
		if err != nil {
			t.Fatalf("Failed to get payments for %s: %v", id, err)
		}
		last := txs[len(txs)-1]
		if reference == "" {
			reference = last.ReferenceID
		}
		if last.ReferenceID == "" || last.ReferenceID != reference {
			t.Errorf("%s: expected shared reference %q, got %q", id, reference, last.ReferenceID)
		}
		paid = paid.Add(last.Amount)
	}
	if paid.String() != "6000.00" {
		t.Errorf("Expected combined allocations to total 6000.00, got %s", paid)
	}

	batch, err := s.handler.Store.TransactionsByReference(ctx, reference)
	if err != nil {
		t.Fatalf("Failed to load batch: %v", err)
	}
	if len(batch) != 3 {
		t.Errorf("Expected 3 transactions in the combined batch, got %d", len(batch))
	}
}

func TestScenario_SiblingFamily_NoSession(t *testing.T) {
	// GIVEN: No session start configured
	// WHEN: Loading the scenario
	// THEN: Single payments are recorded but the combined payment is skipped

	s := newTestServer(t, fees.Settings{})
	ctx := context.Background()

	if err := s.handler.loadSiblingFamilyScenario(ctx); err != nil {
		t.Fatalf("Failed to load sibling-family scenario: %v", err)
	}

	txs, err := s.handler.Fees.Payments(ctx, "stu-bilal")
	if err != nil {
		t.Fatalf("Failed to get payments: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("Expected no payments for Bilal, got %d", len(txs))
	}
}

func TestScenario_PayrollMonth(t *testing.T) {
	// GIVEN: Payroll month scenario
	// WHEN: Computing March 2025 slips
	// THEN: Rahman loses two days, Fatima is paid in full and marked paid

	s := newTestServer(t, sessionSettings())
	ctx := context.Background()

	if err := s.handler.loadPayrollMonthScenario(ctx); err != nil {
		t.Fatalf("Failed to load payroll-month scenario: %v", err)
	}

	rahman, err := s.handler.Payroll.Slip(ctx, "tch-rahman", "2025-03")
	if err != nil {
		t.Fatalf("Failed to compute slip: %v", err)
	}
	if rahman.Details.AbsentDays != 3 || rahman.Details.DeductionDays != 2 {
		t.Errorf("Expected 3 absences and 2 deduction days, got %d and %d",
			rahman.Details.AbsentDays, rahman.Details.DeductionDays)
	}
	if rahman.Details.NetSalary.String() != "28000.00" {
		t.Errorf("Expected Rahman's net 28000.00, got %s", rahman.Details.NetSalary)
	}
	// Only the Monday holiday counts; the Sunday one does not
	if rahman.Details.HolidayDays != 1 {
		t.Errorf("Expected 1 holiday day, got %d", rahman.Details.HolidayDays)
	}
	if rahman.Status != "pending" {
		t.Errorf("Expected Rahman pending, got %s", rahman.Status)
	}

	fatima, err := s.handler.Payroll.Slip(ctx, "tch-fatima", "2025-03")
	if err != nil {
		t.Fatalf("Failed to compute slip: %v", err)
	}
	if fatima.Details.NetSalary.String() != "27000.00" {
		t.Errorf("Expected Fatima's net 27000.00, got %s", fatima.Details.NetSalary)
	}
	if fatima.Status != "paid" || len(fatima.Payments) != 1 {
		t.Errorf("Expected Fatima paid once, got %s with %d payments", fatima.Status, len(fatima.Payments))
	}
}

func TestScenario_ExamResults(t *testing.T) {
	// GIVEN: Exam results scenario
	// WHEN: Evaluating the annual result before the annual exam
	// THEN: Two cycles count, English's missing quarterly mark counts as zero

	s := newTestServer(t, sessionSettings())
	ctx := context.Background()

	if err := s.handler.loadExamResultsScenario(ctx); err != nil {
		t.Fatalf("Failed to load exam-results scenario: %v", err)
	}

	result, err := s.handler.Results.Result(ctx, "stu-bilal", "annual")
	if err != nil {
		t.Fatalf("Failed to evaluate result: %v", err)
	}
	if result.CyclesWithMarks != 2 {
		t.Errorf("Expected 2 cycles with marks, got %d", result.CyclesWithMarks)
	}
	// (88+91) + 78 + (74+80) + (69+72) = 552 of 800
	if result.Percentage == nil || math.Abs(*result.Percentage-69) > 1e-9 {
		t.Fatalf("Expected 69%%, got %v", result.Percentage)
	}
	if result.Grade != "B" {
		t.Errorf("Expected grade B, got %s", result.Grade)
	}
}

func TestScenario_LoadViaAPI(t *testing.T) {
	s := newTestServer(t, familySettings())

	var list []ScenarioDTO
	s.mustDo(http.MethodGet, "/api/scenarios", nil, http.StatusOK, &list)
	if len(list) != len(scenarios) {
		t.Errorf("Expected %d scenarios, got %d", len(scenarios), len(list))
	}

	s.mustDo(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "full-school"}, http.StatusOK, nil)

	var current struct {
		Scenario *ScenarioDTO `json:"scenario"`
	}
	s.mustDo(http.MethodGet, "/api/scenarios/current", nil, http.StatusOK, &current)
	if current.Scenario == nil || current.Scenario.ID != "full-school" {
		t.Errorf("Expected current scenario full-school, got %+v", current.Scenario)
	}

	var teachers []TeacherDTO
	s.mustDo(http.MethodGet, "/api/teachers", nil, http.StatusOK, &teachers)
	if len(teachers) != 2 {
		t.Errorf("Expected 2 teachers, got %d", len(teachers))
	}

	// Reset clears data and the current scenario
	s.mustDo(http.MethodPost, "/api/scenarios/reset", nil, http.StatusOK, nil)
	var students []StudentDTO
	s.mustDo(http.MethodGet, "/api/students", nil, http.StatusOK, &students)
	if len(students) != 0 {
		t.Errorf("Expected no students after reset, got %d", len(students))
	}
	s.mustDo(http.MethodGet, "/api/scenarios/current", nil, http.StatusOK, &current)
	if current.Scenario != nil {
		t.Errorf("Expected no current scenario after reset, got %+v", current.Scenario)
	}

	s.mustDo(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"}, http.StatusBadRequest, nil)
	s.mustDo(http.MethodPost, "/api/scenarios/load", map[string]string{}, http.StatusBadRequest, nil)
}
