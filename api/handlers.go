/*
handlers.go - HTTP API handlers for the school ledger

PURPOSE:
  Exposes the fee, payroll and results engines via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the services.

ENDPOINTS:
  Students:
    GET    /api/students                      List students
    POST   /api/students                      Create or replace a student
    GET    /api/students/{id}                 Student details
    GET    /api/students/{id}/fees            Due summary (?as_of=yyyy-MM-dd)
    GET    /api/students/{id}/payments        Fee transactions
    POST   /api/students/{id}/payments        Record a payment
    PUT    /api/students/{id}/marks/{cycle}   Replace one exam cycle's marks
    GET    /api/students/{id}/results         Cumulative result (?exam=annual)

  Families:
    POST   /api/families/payments             Combined payment across children

  Classes:
    GET    /api/classes/{class}/fees          Default fee structure
    PUT    /api/classes/{class}/fees          Replace default fee structure
    PUT    /api/classes/{class}/subjects      Replace subjects

  Staff (staff.go):
    /api/teachers, /api/attendance, /api/holidays

  Scenarios (scenarios.go):
    /api/scenarios

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Records and ledger persistence
  - Fees, Payroll, Results: Engine services over the store

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, session not configured
  - 404: Student, teacher or class not found
  - 409: Duplicate idempotency key
  - 500: Internal errors (details are logged, not returned)

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - staff.go: Teacher, attendance and holiday handlers
  - scenarios.go: Demo school loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/school-engine/fees"
	"github.com/warp/school-engine/generic"
	"github.com/warp/school-engine/logger"
	"github.com/warp/school-engine/payroll"
	"github.com/warp/school-engine/results"
	"github.com/warp/school-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Fees    *fees.Service
	Payroll *payroll.Service
	Results *results.Service

	log *zap.Logger

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler wires the engine services over the store.
func NewHandler(store *sqlite.Store, settings fees.Settings, rules payroll.Rules, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	ledger := generic.NewLedger(store)
	return &Handler{
		Store:   store,
		Fees:    fees.NewService(ledger, store, settings, log),
		Payroll: payroll.NewService(ledger, store, rules, log),
		Results: results.NewService(store, log),
		log:     log.Named("api"),
	}
}

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns all students.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.Store.ListStudents(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list students", err)
		return
	}

	dtos := make([]StudentDTO, len(students))
	for i, st := range students {
		dtos[i] = toStudentDTO(st)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStudent returns a single student.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := h.Store.GetStudent(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get student", err)
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "Student not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(*st))
}

// CreateStudent creates or replaces a student.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if err := decodeRequest(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	st := fees.Student{
		ID:          generic.EntityID(req.ID),
		Name:        req.Name,
		ClassName:   req.ClassName,
		ParentPhone: req.ParentPhone,
		FeeOverride: toFeeStructure(req.FeeOverride),
	}
	if st.ID == "" {
		st.ID = generic.EntityID(uuid.NewString())
	}
	if req.DateOfBirth != "" {
		st.DateOfBirth, _ = generic.ParseDate(req.DateOfBirth)
	}

	if err := h.Store.SaveStudent(r.Context(), st); err != nil {
		h.fail(w, r, "Failed to save student", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStudentDTO(st))
}

// =============================================================================
// FEE HANDLERS
// =============================================================================

// GetFeeSummary returns a student's due and fee breakdown.
func (h *Handler) GetFeeSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	asOf := generic.Today()
	if s := r.URL.Query().Get("as_of"); s != "" {
		d, err := generic.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
			return
		}
		asOf = d
	}

	summary, err := h.Fees.Summary(r.Context(), id, asOf)
	if err != nil {
		h.fail(w, r, "Failed to compute fees", err)
		return
	}
	writeJSON(w, http.StatusOK, toFeeSummaryDTO(summary))
}

// ListPayments returns a student's fee transactions.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Fees.Payments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get payments", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// maxRecent caps ?limit= on the recent activity feed.
const maxRecent = 200

// ListRecentTransactions returns the latest fee and salary transactions,
// newest first. ?limit= defaults to 20.
func (h *Handler) ListRecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxRecent {
			writeError(w, http.StatusBadRequest, "Invalid limit (use 1-200)", err)
			return
		}
		limit = n
	}

	txs, err := h.Store.RecentTransactions(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "Failed to get transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStatement returns a student's payments over ?from=&to= with running
// totals. Either bound defaults to the session.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	var bounds [2]generic.TimePoint
	for i, key := range []string{"from", "to"} {
		s := r.URL.Query().Get(key)
		if s == "" {
			continue
		}
		d, err := generic.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+key+" date (use YYYY-MM-DD)", err)
			return
		}
		bounds[i] = d
	}

	st, err := h.Fees.Statement(r.Context(), chi.URLParam(r, "id"), bounds[0], bounds[1])
	if err != nil {
		h.fail(w, r, "Failed to build statement", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

// RecordPayment records a payment for one student.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := decodeRequest(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	tx, err := h.Fees.RecordPayment(r.Context(), chi.URLParam(r, "id"), fees.PaymentInput{
		Amount:         req.Amount,
		Method:         methodOrDefault(req.Method),
		Date:           dateOrToday(req.Date),
		Months:         monthKeys(req.Months),
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		h.fail(w, r, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// RecordCombinedPayment splits one payment across several children.
func (h *Handler) RecordCombinedPayment(w http.ResponseWriter, r *http.Request) {
	var req CombinedPaymentRequest
	if err := decodeRequest(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	ids := req.StudentIDs
	if len(ids) == 0 && req.ParentPhone != "" {
		family, err := h.Store.StudentsByPhone(r.Context(), req.ParentPhone)
		if err != nil {
			h.fail(w, r, "Failed to find family", err)
			return
		}
		for _, st := range family {
			ids = append(ids, string(st.ID))
		}
	}

	result, err := h.Fees.RecordCombinedPayment(r.Context(), fees.CombinedPaymentInput{
		StudentIDs: ids,
		Amount:     req.Amount,
		Method:     methodOrDefault(req.Method),
		Date:       dateOrToday(req.Date),
		Months:     monthKeys(req.Months),
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		h.fail(w, r, "Failed to record combined payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCombinedPaymentDTO(result))
}

// =============================================================================
// CLASS HANDLERS
// =============================================================================

// GetClassFees returns a class's default fee structure.
func (h *Handler) GetClassFees(w http.ResponseWriter, r *http.Request) {
	className := chi.URLParam(r, "class")

	all, err := h.Store.ClassFees(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to get class fees", err)
		return
	}
	fs, ok := all[className]
	if !ok {
		writeError(w, http.StatusNotFound, "Class has no fee structure", nil)
		return
	}
	writeJSON(w, http.StatusOK, ClassFeesDTO{ClassName: className, Fees: feesToStrings(fs)})
}

// SaveClassFees replaces a class's default fee structure.
func (h *Handler) SaveClassFees(w http.ResponseWriter, r *http.Request) {
	className := chi.URLParam(r, "class")

	var req ClassFeesRequest
	if err := decodeRequest(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	fs := toFeeStructure(req.Fees)
	if err := h.Store.SaveClassFees(r.Context(), className, fs); err != nil {
		h.fail(w, r, "Failed to save class fees", err)
		return
	}
	writeJSON(w, http.StatusOK, ClassFeesDTO{ClassName: className, Fees: feesToStrings(fs)})
}

// SaveSubjects replaces the subjects taught in a class.
func (h *Handler) SaveSubjects(w http.ResponseWriter, r *http.Request) {
	className := chi.URLParam(r, "class")

	var req SubjectsRequest
	if err := decodeRequest(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	if err := h.Store.SaveSubjects(r.Context(), className, req.Subjects); err != nil {
		h.fail(w, r, "Failed to save subjects", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"class_name": className, "subjects": req.Subjects})
}

// =============================================================================
// RESULT HANDLERS
// =============================================================================

// SaveMarks replaces a student's marks for one exam cycle.
func (h *Handler) SaveMarks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cycle, err := results.ParseExamCycle(chi.URLParam(r, "cycle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown exam cycle", err)
		return
	}

	var req MarksRequest
	if err := decodeRequest(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	// 404 for unknown students before anything is written
	if _, err := h.Store.StudentClass(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to save marks", err)
		return
	}
	if err := h.Store.SaveMarks(r.Context(), id, cycle, results.RecordedMarks(req.Marks)); err != nil {
		h.fail(w, r, "Failed to save marks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"student_id": id, "exam": cycle, "marks": req.Marks})
}

// GetResult returns the cumulative result up to an exam (default annual).
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exam := r.URL.Query().Get("exam")
	if exam == "" {
		exam = string(results.Annual)
	}

	result, err := h.Results.Result(r.Context(), id, exam)
	if err != nil {
		h.fail(w, r, "Failed to compute result", err)
		return
	}
	writeJSON(w, http.StatusOK, toResultDTO(id, result))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeRequestError reports a body that failed to decode or validate.
func writeRequestError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: "Invalid request body", Fields: fieldErrors(err)}
	if resp.Fields == nil {
		resp.Details = err.Error()
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

// fail maps a service error to its HTTP status. Internal errors are logged
// and their details withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case fees.IsValidationError(err),
		errors.Is(err, payroll.ErrInvalidMonth),
		errors.Is(err, results.ErrUnknownExamCycle):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		logger.FromContext(r.Context()).Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

func methodOrDefault(method string) string {
	if method == "" {
		return "cash"
	}
	return method
}

// dateOrToday parses an already validated yyyy-MM-dd date.
func dateOrToday(s string) generic.TimePoint {
	if s == "" {
		return generic.Today()
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		return generic.Today()
	}
	return d
}

// monthKeys converts already validated yyyy-MM strings.
func monthKeys(months []string) []generic.MonthKey {
	if len(months) == 0 {
		return nil
	}
	keys := make([]generic.MonthKey, len(months))
	for i, m := range months {
		keys[i] = generic.MonthKey(m)
	}
	return keys
}
