/*
handlers_test.go - HTTP tests for the API handlers

Tests go through the chi router with httptest against an in-memory store:
- Students, class fees and fee summaries
- Single and combined payments, including error statuses
- Salary slips and salary payments
- Holidays, marks and results
*/
package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/school-engine/fees"
	"github.com/warp/school-engine/generic"
	"github.com/warp/school-engine/payroll"
	"github.com/warp/school-engine/store/sqlite"
)

type testServer struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T, settings fees.Settings) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, settings, payroll.DefaultRules(), nil)
	return &testServer{t: t, handler: h, router: NewRouter(h, []string{"http://localhost:5173"})}
}

func sessionSettings() fees.Settings {
	return fees.Settings{
		SessionStart: generic.NewTimePoint(2024, 4, 1),
		Multipliers:  fees.DefaultMultipliers(),
	}
}

// do sends a JSON request and decodes the JSON response into out (if non-nil).
func (s *testServer) do(method, path string, body any, out any) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			s.t.Fatalf("decode %s %s response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func (s *testServer) mustDo(method, path string, body any, wantStatus int, out any) {
	s.t.Helper()
	if got := s.do(method, path, body, out); got != wantStatus {
		s.t.Fatalf("%s %s: expected status %d, got %d", method, path, wantStatus, got)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, sessionSettings())

	var resp map[string]string
	s.mustDo(http.MethodGet, "/health", nil, http.StatusOK, &resp)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", resp)
	}
}

func TestStudents_CreateAndGet(t *testing.T) {
	// GIVEN: An empty school
	s := newTestServer(t, sessionSettings())

	// WHEN: Creating a student with a fee override
	var created StudentDTO
	s.mustDo(http.MethodPost, "/api/students", map[string]any{
		"id":            "stu-1",
		"name":          "Ali",
		"class_name":    "class5",
		"parent_phone":  "0300-1234567",
		"date_of_birth": "2012-05-01",
		"fee_override":  map[string]any{"tuition": "450"},
	}, http.StatusCreated, &created)

	// THEN: The student can be fetched and listed
	var got StudentDTO
	s.mustDo(http.MethodGet, "/api/students/stu-1", nil, http.StatusOK, &got)
	if got.Name != "Ali" || got.DateOfBirth != "2012-05-01" {
		t.Errorf("Unexpected student: %+v", got)
	}
	if got.FeeOverride["tuition"] != "450.00" {
		t.Errorf("Expected tuition override 450.00, got %v", got.FeeOverride)
	}

	var list []StudentDTO
	s.mustDo(http.MethodGet, "/api/students", nil, http.StatusOK, &list)
	if len(list) != 1 {
		t.Errorf("Expected 1 student, got %d", len(list))
	}

	s.mustDo(http.MethodGet, "/api/students/missing", nil, http.StatusNotFound, nil)
}

func TestStudents_ValidationErrors(t *testing.T) {
	s := newTestServer(t, sessionSettings())

	var resp ErrorResponse
	s.mustDo(http.MethodPost, "/api/students", map[string]any{
		"class_name":    "class5",
		"date_of_birth": "01/05/2012",
		"fee_override":  map[string]any{"library": "10"},
	}, http.StatusBadRequest, &resp)

	fields := map[string]bool{}
	for _, f := range resp.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"name", "date_of_birth"} {
		if !fields[want] {
			t.Errorf("Expected a field error for %s, got %+v", want, resp.Fields)
		}
	}
	if len(resp.Fields) != 3 {
		t.Errorf("Expected 3 field errors (name, date, unknown head), got %+v", resp.Fields)
	}

	s.mustDo(http.MethodPost, "/api/students", strings.Repeat("x", 3), http.StatusBadRequest, nil)
}

func TestFees_PaymentReducesDue(t *testing.T) {
	// GIVEN: Class 5 costs 500/month + 1000 admission + 200 per exam (7600/year)
	s := newTestServer(t, sessionSettings())
	s.mustDo(http.MethodPut, "/api/classes/class5/fees", map[string]any{
		"fees": map[string]any{"tuition": 500, "admission": "1000", "exam": 200},
	}, http.StatusOK, nil)
	s.mustDo(http.MethodPost, "/api/students", map[string]any{
		"id": "stu-1", "name": "Ali", "class_name": "class5",
	}, http.StatusCreated, nil)

	var classFees ClassFeesDTO
	s.mustDo(http.MethodGet, "/api/classes/class5/fees", nil, http.StatusOK, &classFees)
	if classFees.Fees["admission"] != "1000.00" {
		t.Errorf("Expected admission 1000.00, got %v", classFees.Fees)
	}

	// WHEN: A payment of 2000 is recorded for April and May
	var tx TransactionDTO
	s.mustDo(http.MethodPost, "/api/students/stu-1/payments", map[string]any{
		"amount": "2000",
		"date":   "2024-04-10",
		"months": []string{"2024-04", "2024-05"},
	}, http.StatusCreated, &tx)
	if tx.Amount != "2000.00" || tx.Method != "cash" {
		t.Errorf("Unexpected transaction: %+v", tx)
	}

	// THEN: The due drops to 5600
	var summary FeeSummaryDTO
	s.mustDo(http.MethodGet, "/api/students/stu-1/fees?as_of=2024-06-15", nil, http.StatusOK, &summary)
	if summary.TotalAnnualFee != "7600.00" {
		t.Errorf("Expected annual fee 7600.00, got %s", summary.TotalAnnualFee)
	}
	if summary.Due != "5600.00" {
		t.Errorf("Expected due 5600.00, got %s", summary.Due)
	}
	if summary.MonthsPassed != 3 {
		t.Errorf("Expected 3 months passed, got %d", summary.MonthsPassed)
	}
	if summary.Session != "2024-2025" {
		t.Errorf("Expected session 2024-2025, got %q", summary.Session)
	}
	if len(summary.PaidMonths) != 2 {
		t.Errorf("Expected 2 paid months, got %v", summary.PaidMonths)
	}
	// 7600 x 3/12 = 1900 expected so far; 2000 paid leaves no arrears
	if summary.ExpectedToDate != "1900.00" || summary.Arrears != "0.00" {
		t.Errorf("Expected 1900.00 expected and no arrears, got %s and %s",
			summary.ExpectedToDate, summary.Arrears)
	}

	var payments []TransactionDTO
	s.mustDo(http.MethodGet, "/api/students/stu-1/payments", nil, http.StatusOK, &payments)
	if len(payments) != 1 {
		t.Errorf("Expected 1 payment, got %d", len(payments))
	}

	var statement StatementDTO
	s.mustDo(http.MethodGet, "/api/students/stu-1/statement", nil, http.StatusOK, &statement)
	if statement.From != "2024-04-01" || statement.To != "2025-03-31" {
		t.Errorf("Expected the session range, got %s to %s", statement.From, statement.To)
	}
	if len(statement.Lines) != 1 || statement.Lines[0].PaidToDate != "2000.00" {
		t.Errorf("Expected one line with 2000.00 paid to date, got %+v", statement.Lines)
	}
	s.mustDo(http.MethodGet, "/api/students/stu-1/statement?from=2024-05-01&to=2024-05-31", nil, http.StatusOK, &statement)
	if statement.Opening != "2000.00" || len(statement.Lines) != 0 || statement.Closing != "2000.00" {
		t.Errorf("Expected May to open and close at 2000.00, got %+v", statement)
	}
	s.mustDo(http.MethodGet, "/api/students/stu-1/statement?from=2024-06-01&to=2024-05-01", nil, http.StatusBadRequest, nil)
	s.mustDo(http.MethodGet, "/api/students/stu-1/statement?from=June", nil, http.StatusBadRequest, nil)
	s.mustDo(http.MethodGet, "/api/students/nobody/statement", nil, http.StatusNotFound, nil)

	s.mustDo(http.MethodGet, "/api/students/stu-1/fees?as_of=15-06-2024", nil, http.StatusBadRequest, nil)
	s.mustDo(http.MethodGet, "/api/classes/class9/fees", nil, http.StatusNotFound, nil)
}

func TestFees_PaymentErrors(t *testing.T) {
	s := newTestServer(t, sessionSettings())
	s.mustDo(http.MethodPost, "/api/students", map[string]any{
		"id": "stu-1", "name": "Ali", "class_name": "class5",
	}, http.StatusCreated, nil)

	// Zero amount fails validation
	var resp ErrorResponse
	s.mustDo(http.MethodPost, "/api/students/stu-1/payments", map[string]any{"amount": 0}, http.StatusBadRequest, &resp)
	if len(resp.Fields) != 1 || resp.Fields[0].Field != "amount" {
		t.Errorf("Expected an amount field error, got %+v", resp.Fields)
	}

	// Unknown student
	s.mustDo(http.MethodPost, "/api/students/nobody/payments", map[string]any{"amount": 10}, http.StatusNotFound, nil)

	// Same idempotency key twice
	body := map[string]any{"amount": 10, "idempotency_key": "receipt-42"}
	s.mustDo(http.MethodPost, "/api/students/stu-1/payments", body, http.StatusCreated, nil)
	s.mustDo(http.MethodPost, "/api/students/stu-1/payments", body, http.StatusConflict, nil)
}

func seedFamily(s *testServer) {
	s.t.Helper()
	s.mustDo(http.MethodPut, "/api/classes/class5/fees", map[string]any{
		"fees": map[string]any{"tuition": 100},
	}, http.StatusOK, nil)
	s.mustDo(http.MethodPut, "/api/classes/class3/fees", map[string]any{
		"fees": map[string]any{"tuition": 50},
	}, http.StatusOK, nil)
	s.mustDo(http.MethodPost, "/api/students", map[string]any{
		"id": "ali", "name": "Ali", "class_name": "class5",
		"parent_phone": "0300-1234567", "date_of_birth": "2012-01-01",
	}, http.StatusCreated, nil)
	s.mustDo(http.MethodPost, "/api/students", map[string]any{
		"id": "sara", "name": "Sara", "class_name": "class3",
		"parent_phone": "0300-1234567", "date_of_birth": "2015-01-01",
	}, http.StatusCreated, nil)
}

func TestFamilies_CombinedPaymentByPhone(t *testing.T) {
	// GIVEN: Ali owes 1200 and Sara owes 600
	s := newTestServer(t, sessionSettings())
	seedFamily(s)

	// WHEN: The parent pays 900 for the whole family
	var result CombinedPaymentDTO
	s.mustDo(http.MethodPost, "/api/families/payments", map[string]any{
		"parent_phone": "0300-1234567",
		"amount":       900,
		"date":         "2024-05-01",
	}, http.StatusCreated, &result)

	// THEN: The payment is split in proportion to the dues
	shares := map[string]string{}
	for _, a := range result.Allocations {
		shares[a.StudentID] = a.Amount
	}
	if shares["ali"] != "600.00" || shares["sara"] != "300.00" {
		t.Errorf("Expected 600/300 split, got %v", shares)
	}
	if result.Allocated != "900.00" || result.Unallocated != "0.00" {
		t.Errorf("Unexpected totals: %+v", result)
	}

	var aliPayments []TransactionDTO
	s.mustDo(http.MethodGet, "/api/students/ali/payments", nil, http.StatusOK, &aliPayments)
	if len(aliPayments) != 1 || aliPayments[0].ReferenceID != result.ReferenceID {
		t.Errorf("Expected Ali's payment to carry reference %s, got %+v", result.ReferenceID, aliPayments)
	}
}

func TestTransactions_RecentFeed(t *testing.T) {
	// GIVEN: A combined payment for two children, then a single payment
	s := newTestServer(t, sessionSettings())
	seedFamily(s)
	s.mustDo(http.MethodPost, "/api/families/payments", map[string]any{
		"parent_phone": "0300-1234567",
		"amount":       900,
		"date":         "2024-05-01",
	}, http.StatusCreated, nil)
	s.mustDo(http.MethodPost, "/api/students/sara/payments", map[string]any{
		"amount": "50",
		"date":   "2024-05-02",
	}, http.StatusCreated, nil)

	// WHEN: Reading the feed
	var recent []TransactionDTO
	s.mustDo(http.MethodGet, "/api/transactions/recent", nil, http.StatusOK, &recent)

	// THEN: Every row is listed, newest first
	if len(recent) != 3 {
		t.Fatalf("Expected 3 transactions, got %d", len(recent))
	}
	if recent[0].EntityID != "sara" || recent[0].Amount != "50.00" {
		t.Errorf("Expected Sara's single payment first, got %+v", recent[0])
	}

	s.mustDo(http.MethodGet, "/api/transactions/recent?limit=1", nil, http.StatusOK, &recent)
	if len(recent) != 1 {
		t.Errorf("Expected 1 transaction, got %d", len(recent))
	}
	s.mustDo(http.MethodGet, "/api/transactions/recent?limit=abc", nil, http.StatusBadRequest, nil)
	s.mustDo(http.MethodGet, "/api/transactions/recent?limit=0", nil, http.StatusBadRequest, nil)
	s.mustDo(http.MethodGet, "/api/transactions/recent?limit=500", nil, http.StatusBadRequest, nil)
}

func TestFamilies_CombinedPaymentErrors(t *testing.T) {
	t.Run("session not configured", func(t *testing.T) {
		s := newTestServer(t, fees.Settings{})
		seedFamily(s)

		var resp ErrorResponse
		s.mustDo(http.MethodPost, "/api/families/payments", map[string]any{
			"student_ids": []string{"ali", "sara"},
			"amount":      900,
		}, http.StatusBadRequest, &resp)
		if !strings.Contains(resp.Details, "session start date not configured") {
			t.Errorf("Expected session error, got %+v", resp)
		}
	})

	t.Run("no students", func(t *testing.T) {
		s := newTestServer(t, sessionSettings())
		var resp ErrorResponse
		s.mustDo(http.MethodPost, "/api/families/payments", map[string]any{
			"parent_phone": "0999-0000000",
			"amount":       900,
		}, http.StatusBadRequest, &resp)
		if !strings.Contains(resp.Details, "no students selected") {
			t.Errorf("Expected no-students error, got %+v", resp)
		}
	})

	t.Run("unknown student", func(t *testing.T) {
		s := newTestServer(t, sessionSettings())
		seedFamily(s)
		s.mustDo(http.MethodPost, "/api/families/payments", map[string]any{
			"student_ids": []string{"ali", "ghost"},
			"amount":      900,
		}, http.StatusNotFound, nil)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		s := newTestServer(t, sessionSettings())
		seedFamily(s)
		s.mustDo(http.MethodPost, "/api/families/payments", map[string]any{
			"student_ids": []string{"ali"},
			"amount":      -5,
		}, http.StatusBadRequest, nil)
	})
}

func TestPayroll_SlipAndPayment(t *testing.T) {
	// GIVEN: A teacher on 30000 absent twice in March 2025
	s := newTestServer(t, sessionSettings())
	s.mustDo(http.MethodPost, "/api/teachers", map[string]any{
		"id": "tch-1", "name": "Rahman", "base_salary": "30000",
	}, http.StatusCreated, nil)
	for date, status := range map[string]string{
		"2025-03-03": "absent",
		"2025-03-04": "absent",
		"2025-03-05": "present",
	} {
		s.mustDo(http.MethodPost, "/api/attendance", map[string]any{
			"date": date, "teacher_id": "tch-1", "status": status,
		}, http.StatusOK, nil)
	}

	var marks []AttendanceDTO
	s.mustDo(http.MethodGet, "/api/attendance?month=2025-03", nil, http.StatusOK, &marks)
	if len(marks) != 3 || marks[0].Date != "2025-03-03" {
		t.Errorf("Unexpected attendance: %+v", marks)
	}

	// WHEN: Computing the March slip
	var slip SalarySlipDTO
	s.mustDo(http.MethodGet, "/api/teachers/tch-1/salary?month=2025-03", nil, http.StatusOK, &slip)

	// THEN: One absence is free, one costs a day (30000 / 30)
	if slip.AbsentDays != 2 || slip.DeductionDays != 1 {
		t.Errorf("Expected 2 absences and 1 deduction day, got %+v", slip)
	}
	if slip.PerDaySalary != "1000.00" || slip.NetSalary != "29000.00" {
		t.Errorf("Expected net 29000.00 at 1000.00/day, got %s at %s", slip.NetSalary, slip.PerDaySalary)
	}
	if slip.Status != "pending" {
		t.Errorf("Expected pending, got %s", slip.Status)
	}

	// WHEN: Paying the month without an amount
	var payment SalaryPaymentDTO
	s.mustDo(http.MethodPost, "/api/teachers/tch-1/salary-payments", map[string]any{
		"month": "2025-03", "date": "2025-04-01",
	}, http.StatusCreated, &payment)

	// THEN: The computed net is paid and the month is marked paid
	if payment.Amount != "29000.00" || payment.Month != "2025-03" {
		t.Errorf("Unexpected payment: %+v", payment)
	}
	s.mustDo(http.MethodGet, "/api/teachers/tch-1/salary?month=2025-03", nil, http.StatusOK, &slip)
	if slip.Status != "paid" || len(slip.Payments) != 1 {
		t.Errorf("Expected paid with 1 payment, got %s with %d", slip.Status, len(slip.Payments))
	}

	var payments []SalaryPaymentDTO
	s.mustDo(http.MethodGet, "/api/teachers/tch-1/salary-payments", nil, http.StatusOK, &payments)
	if len(payments) != 1 {
		t.Errorf("Expected 1 salary payment, got %d", len(payments))
	}
}

func TestPayroll_Errors(t *testing.T) {
	s := newTestServer(t, sessionSettings())
	s.mustDo(http.MethodPost, "/api/teachers", map[string]any{
		"id": "tch-1", "name": "Rahman", "base_salary": 30000,
	}, http.StatusCreated, nil)

	s.mustDo(http.MethodGet, "/api/teachers/tch-1/salary?month=March", nil, http.StatusBadRequest, nil)
	s.mustDo(http.MethodGet, "/api/teachers/ghost/salary?month=2025-03", nil, http.StatusNotFound, nil)
	s.mustDo(http.MethodGet, "/api/teachers/ghost", nil, http.StatusNotFound, nil)
	s.mustDo(http.MethodGet, "/api/attendance", nil, http.StatusBadRequest, nil)
	s.mustDo(http.MethodPost, "/api/attendance", map[string]any{
		"date": "2025-03-03", "teacher_id": "tch-1", "status": "late",
	}, http.StatusBadRequest, nil)
	s.mustDo(http.MethodPost, "/api/attendance", map[string]any{
		"date": "2025-03-03", "teacher_id": "ghost", "status": "present",
	}, http.StatusNotFound, nil)
	s.mustDo(http.MethodPost, "/api/teachers/tch-1/salary-payments", map[string]any{
		"month": "2025-3",
	}, http.StatusBadRequest, nil)
}

func TestHolidays_Lifecycle(t *testing.T) {
	s := newTestServer(t, sessionSettings())

	var created HolidayDTO
	s.mustDo(http.MethodPost, "/api/holidays", map[string]any{
		"date": "2025-03-31", "name": "Eid ul-Fitr",
	}, http.StatusCreated, &created)
	if created.ID == "" {
		t.Fatal("Expected a generated holiday ID")
	}

	var list []HolidayDTO
	s.mustDo(http.MethodGet, "/api/holidays", nil, http.StatusOK, &list)
	if len(list) != 1 || list[0].Date != "2025-03-31" {
		t.Errorf("Unexpected holidays: %+v", list)
	}

	s.mustDo(http.MethodDelete, "/api/holidays/"+created.ID, nil, http.StatusNoContent, nil)
	s.mustDo(http.MethodGet, "/api/holidays", nil, http.StatusOK, &list)
	if len(list) != 0 {
		t.Errorf("Expected no holidays after delete, got %d", len(list))
	}
}

func TestResults_MarksAndResult(t *testing.T) {
	// GIVEN: Class 5 studies two subjects
	s := newTestServer(t, sessionSettings())
	s.mustDo(http.MethodPost, "/api/students", map[string]any{
		"id": "stu-1", "name": "Ali", "class_name": "class5",
	}, http.StatusCreated, nil)
	s.mustDo(http.MethodPut, "/api/classes/class5/subjects", map[string]any{
		"subjects": []string{"Mathematics", "English"},
	}, http.StatusOK, nil)

	// No marks yet: no percentage
	var empty ResultDTO
	s.mustDo(http.MethodGet, "/api/students/stu-1/results", nil, http.StatusOK, &empty)
	if empty.Percentage != nil || empty.Exam != "annual" {
		t.Errorf("Expected no percentage for annual, got %+v", empty)
	}

	// WHEN: Quarterly marks of 80 and 70 are recorded
	s.mustDo(http.MethodPut, "/api/students/stu-1/marks/quarterly", map[string]any{
		"marks": map[string]any{"Mathematics": 80, "English": 70},
	}, http.StatusOK, nil)

	// THEN: The quarterly result is 75% (B+)
	var result ResultDTO
	s.mustDo(http.MethodGet, "/api/students/stu-1/results?exam=quarterly", nil, http.StatusOK, &result)
	if result.Percentage == nil || math.Abs(*result.Percentage-75) > 1e-9 {
		t.Fatalf("Expected 75%%, got %v", result.Percentage)
	}
	if result.Grade != "B+" {
		t.Errorf("Expected grade B+, got %s", result.Grade)
	}

	s.mustDo(http.MethodGet, "/api/students/stu-1/results?exam=final", nil, http.StatusBadRequest, nil)
	s.mustDo(http.MethodPut, "/api/students/stu-1/marks/final", map[string]any{
		"marks": map[string]any{"Mathematics": 80},
	}, http.StatusBadRequest, nil)
	s.mustDo(http.MethodPut, "/api/students/stu-1/marks/annual", map[string]any{
		"marks": map[string]any{"Mathematics": 120},
	}, http.StatusBadRequest, nil)
	s.mustDo(http.MethodPut, "/api/students/ghost/marks/annual", map[string]any{
		"marks": map[string]any{"Mathematics": 50},
	}, http.StatusNotFound, nil)
}

func TestDecimalValidation(t *testing.T) {
	req := PaymentRequest{Amount: decimal.RequireFromString("0.01")}
	if err := validate.Struct(req); err != nil {
		t.Errorf("Expected 0.01 to pass gt=0, got %v", err)
	}
	req.Amount = decimal.Zero
	if err := validate.Struct(req); err == nil {
		t.Error("Expected zero amount to fail gt=0")
	}
}
