package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/school-engine/generic"
	"github.com/warp/school-engine/payroll"
)

// =============================================================================
// TEACHER HANDLERS
// =============================================================================

// ListTeachers returns all teachers.
func (h *Handler) ListTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.Store.ListTeachers(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list teachers", err)
		return
	}

	dtos := make([]TeacherDTO, len(teachers))
	for i, t := range teachers {
		dtos[i] = toTeacherDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTeacher returns a single teacher.
func (h *Handler) GetTeacher(w http.ResponseWriter, r *http.Request) {
	t, err := h.Store.GetTeacher(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get teacher", err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "Teacher not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toTeacherDTO(*t))
}

// CreateTeacher creates or replaces a teacher.
func (h *Handler) CreateTeacher(w http.ResponseWriter, r *http.Request) {
	var req CreateTeacherRequest
	if err := decodeRequest(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	t := payroll.Teacher{
		ID:         generic.EntityID(req.ID),
		Name:       req.Name,
		Subject:    req.Subject,
		Phone:      req.Phone,
		BaseSalary: req.BaseSalary,
	}
	if t.ID == "" {
		t.ID = generic.EntityID(uuid.NewString())
	}

	if err := h.Store.SaveTeacher(r.Context(), t); err != nil {
		h.fail(w, r, "Failed to save teacher", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTeacherDTO(t))
}

// GetSalary computes a teacher's salary slip for ?month=yyyy-MM.
func (h *Handler) GetSalary(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		month = generic.Today().MonthKey().String()
	}

	slip, err := h.Payroll.Slip(r.Context(), chi.URLParam(r, "id"), month)
	if err != nil {
		h.fail(w, r, "Failed to compute salary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSalarySlipDTO(slip))
}

// ListSalaryPayments returns every salary payment made to a teacher.
func (h *Handler) ListSalaryPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Payroll.Payments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get salary payments", err)
		return
	}

	dtos := make([]SalaryPaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toSalaryPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PaySalary records a salary payment for a month.
func (h *Handler) PaySalary(w http.ResponseWriter, r *http.Request) {
	var req SalaryPaymentRequest
	if err := decodeRequest(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	payment, err := h.Payroll.PaySalary(r.Context(), chi.URLParam(r, "id"), payroll.PayInput{
		Month:     req.Month,
		Amount:    req.Amount,
		Method:    methodOrDefault(req.Method),
		Date:      dateOrToday(req.Date),
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		h.fail(w, r, "Failed to pay salary", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSalaryPaymentDTO(payment))
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// MarkAttendance records one teacher's status for one day.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if err := decodeRequest(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	t, err := h.Store.GetTeacher(r.Context(), req.TeacherID)
	if err != nil {
		h.fail(w, r, "Failed to mark attendance", err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "Teacher not found", nil)
		return
	}

	date, _ := generic.ParseDate(req.Date)
	status, _ := payroll.ParseAttendanceStatus(req.Status)
	if err := h.Store.MarkAttendance(r.Context(), date, req.TeacherID, status); err != nil {
		h.fail(w, r, "Failed to mark attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, AttendanceDTO{Date: date.DateKey(), TeacherID: req.TeacherID, Status: string(status)})
}

// ListAttendance returns every mark in ?month=yyyy-MM.
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	month, err := payroll.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	register, err := h.Store.AttendanceForMonth(r.Context(), month)
	if err != nil {
		h.fail(w, r, "Failed to get attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTOs(register))
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns all holidays.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.Holidays(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to get holidays", err)
		return
	}

	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = HolidayDTO{ID: hol.ID, Date: hol.Date.DateKey(), Name: hol.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday creates a new holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := decodeRequest(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	date, _ := generic.ParseDate(req.Date)
	hol := generic.Holiday{ID: uuid.NewString(), Date: date, Name: req.Name}
	if err := h.Store.SaveHoliday(r.Context(), hol); err != nil {
		h.fail(w, r, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, HolidayDTO{ID: hol.ID, Date: date.DateKey(), Name: hol.Name})
}

// DeleteHoliday removes a holiday.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
