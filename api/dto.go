/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engines' types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts go out as fixed two-decimal strings ("1200.00") and come in as
  JSON numbers or strings. Nothing is converted through float64 on the way
  into the ledger.

VALIDATION:
  Request bodies carry go-playground/validator tags and are checked by
  decodeRequest before any handler logic runs. Field errors are returned
  as a list under "fields".

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/school-engine/fees"
	"github.com/warp/school-engine/generic"
	"github.com/warp/school-engine/payroll"
	"github.com/warp/school-engine/results"
)

// =============================================================================
// STUDENTS
// =============================================================================

// StudentDTO represents a student in API responses.
type StudentDTO struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	ClassName   string            `json:"class_name"`
	ParentPhone string            `json:"parent_phone,omitempty"`
	DateOfBirth string            `json:"date_of_birth,omitempty"`
	FeeOverride map[string]string `json:"fee_override,omitempty"`
}

// CreateStudentRequest creates or replaces a student. ID is generated when empty.
type CreateStudentRequest struct {
	ID          string                     `json:"id" validate:"omitempty,max=64"`
	Name        string                     `json:"name" validate:"required,max=200"`
	ClassName   string                     `json:"class_name" validate:"required,max=50"`
	ParentPhone string                     `json:"parent_phone" validate:"omitempty,max=32"`
	DateOfBirth string                     `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	FeeOverride map[string]decimal.Decimal `json:"fee_override" validate:"omitempty,dive,keys,feehead,endkeys,gte=0"`
}

// =============================================================================
// FEES
// =============================================================================

// FeeBreakdownDTO itemizes the annual fee.
type FeeBreakdownDTO struct {
	Monthly         string `json:"monthly"`
	OneTime         string `json:"one_time"`
	Exam            string `json:"exam"`
	Discount        string `json:"discount"`
	SiblingDiscount string `json:"sibling_discount"`
	Total           string `json:"total"`
}

// FeeSummaryDTO is a student's fee position.
type FeeSummaryDTO struct {
	StudentID      string          `json:"student_id"`
	Session        string          `json:"session,omitempty"`
	IsSibling      bool            `json:"is_sibling"`
	MonthsPassed   int             `json:"months_passed"`
	PaidMonths     []string        `json:"paid_months"`
	PaymentCount   int             `json:"payment_count"`
	TotalAnnualFee string          `json:"total_annual_fee"`
	TotalPaid      string          `json:"total_paid"`
	Due            string          `json:"due"`
	ExpectedToDate string          `json:"expected_to_date"`
	Arrears        string          `json:"arrears"`
	Breakdown      FeeBreakdownDTO `json:"breakdown"`
}

// PaymentRequest records a payment for one student.
type PaymentRequest struct {
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	Method         string          `json:"method" validate:"omitempty,oneof=cash bank cheque online"`
	Date           string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Months         []string        `json:"months" validate:"omitempty,dive,datetime=2006-01"`
	Reason         string          `json:"reason" validate:"omitempty,max=500"`
	IdempotencyKey string          `json:"idempotency_key" validate:"omitempty,max=128"`
	CreatedBy      string          `json:"created_by" validate:"omitempty,max=100"`
}

// CombinedPaymentRequest pays for several children at once. Either the
// student IDs or the parent phone selects the children.
type CombinedPaymentRequest struct {
	StudentIDs  []string        `json:"student_ids" validate:"omitempty,dive,required"`
	ParentPhone string          `json:"parent_phone" validate:"omitempty,max=32"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" validate:"omitempty,oneof=cash bank cheque online"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Months      []string        `json:"months" validate:"omitempty,dive,datetime=2006-01"`
	CreatedBy   string          `json:"created_by" validate:"omitempty,max=100"`
}

// AllocationDTO is one child's share of a combined payment.
type AllocationDTO struct {
	StudentID     string `json:"student_id"`
	DueBefore     string `json:"due_before"`
	Amount        string `json:"amount"`
	TransactionID string `json:"transaction_id"`
}

// CombinedPaymentDTO reports how a combined payment was split.
type CombinedPaymentDTO struct {
	ReferenceID string          `json:"reference_id"`
	Total       string          `json:"total"`
	Allocated   string          `json:"allocated"`
	Unallocated string          `json:"unallocated"`
	Allocations []AllocationDTO `json:"allocations"`
}

// ClassFeesRequest replaces a class's default fee structure.
type ClassFeesRequest struct {
	Fees map[string]decimal.Decimal `json:"fees" validate:"required,dive,keys,feehead,endkeys,gte=0"`
}

// ClassFeesDTO is a class's default fee structure.
type ClassFeesDTO struct {
	ClassName string            `json:"class_name"`
	Fees      map[string]string `json:"fees"`
}

// SubjectsRequest replaces the subjects taught in a class.
type SubjectsRequest struct {
	Subjects []string `json:"subjects" validate:"required,min=1,dive,required,max=100"`
}

// TransactionDTO represents a ledger transaction in API responses.
type TransactionDTO struct {
	ID          string            `json:"id"`
	EntityID    string            `json:"entity_id"`
	Account     string            `json:"account"`
	EffectiveAt string            `json:"effective_at"`
	Amount      string            `json:"amount"`
	Type        string            `json:"type"`
	Method      string            `json:"method,omitempty"`
	Months      []string          `json:"months,omitempty"`
	ReferenceID string            `json:"reference_id,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedBy   string            `json:"created_by,omitempty"`
	CreatedAt   string            `json:"created_at,omitempty"`
}

// StatementLineDTO is a transaction with the net paid after it.
type StatementLineDTO struct {
	TransactionDTO
	PaidToDate string `json:"paid_to_date"`
}

// StatementDTO replays a student's fee payments over a date range.
type StatementDTO struct {
	StudentID string             `json:"student_id"`
	From      string             `json:"from"`
	To        string             `json:"to"`
	Opening   string             `json:"opening"`
	Lines     []StatementLineDTO `json:"lines"`
	Closing   string             `json:"closing"`
}

// =============================================================================
// PAYROLL
// =============================================================================

// TeacherDTO represents a teacher in API responses.
type TeacherDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Subject    string `json:"subject,omitempty"`
	Phone      string `json:"phone,omitempty"`
	BaseSalary string `json:"base_salary"`
}

// CreateTeacherRequest creates or replaces a teacher. ID is generated when empty.
type CreateTeacherRequest struct {
	ID         string          `json:"id" validate:"omitempty,max=64"`
	Name       string          `json:"name" validate:"required,max=200"`
	Subject    string          `json:"subject" validate:"omitempty,max=100"`
	Phone      string          `json:"phone" validate:"omitempty,max=32"`
	BaseSalary decimal.Decimal `json:"base_salary" validate:"gte=0"`
}

// SalarySlipDTO is a computed monthly salary with its status.
type SalarySlipDTO struct {
	TeacherID        string             `json:"teacher_id"`
	Month            string             `json:"month"`
	BaseSalary       string             `json:"base_salary"`
	PerDaySalary     string             `json:"per_day_salary"`
	DaysInMonth      int                `json:"days_in_month"`
	WorkingDays      int                `json:"working_days"`
	PresentDays      int                `json:"present_days"`
	AbsentDays       int                `json:"absent_days"`
	UnmarkedDays     int                `json:"unmarked_days"`
	HolidayDays      int                `json:"holiday_days"`
	TotalPresentDays int                `json:"total_present_days"`
	AllowedAbsents   int                `json:"allowed_absents"`
	DeductionDays    int                `json:"deduction_days"`
	DeductionAmount  string             `json:"deduction_amount"`
	NetSalary        string             `json:"net_salary"`
	Status           string             `json:"status"`
	Payments         []SalaryPaymentDTO `json:"payments"`
}

// SalaryPaymentDTO is a recorded salary disbursement.
type SalaryPaymentDTO struct {
	ID     string `json:"id"`
	Month  string `json:"month"`
	Date   string `json:"date"`
	Amount string `json:"amount"`
	Method string `json:"method,omitempty"`
}

// SalaryPaymentRequest pays a salary month. A missing amount pays the computed net.
type SalaryPaymentRequest struct {
	Month     string          `json:"month" validate:"required,datetime=2006-01"`
	Amount    decimal.Decimal `json:"amount" validate:"gte=0"`
	Method    string          `json:"method" validate:"omitempty,oneof=cash bank cheque online"`
	Date      string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	CreatedBy string          `json:"created_by" validate:"omitempty,max=100"`
}

// AttendanceRequest marks one teacher for one day.
type AttendanceRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	TeacherID string `json:"teacher_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent"`
}

// AttendanceDTO is one attendance mark.
type AttendanceDTO struct {
	Date      string `json:"date"`
	TeacherID string `json:"teacher_id"`
	Status    string `json:"status"`
}

// HolidayDTO represents a holiday in API responses.
type HolidayDTO struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Name string `json:"name"`
}

// CreateHolidayRequest is the request to create a holiday.
type CreateHolidayRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Name string `json:"name" validate:"required,max=200"`
}

// =============================================================================
// RESULTS
// =============================================================================

// MarksRequest replaces a student's marks for one exam cycle. A null mark
// means the subject was not recorded.
type MarksRequest struct {
	Marks map[string]*float64 `json:"marks" validate:"required,dive,keys,required,endkeys,omitempty,gte=0,lte=100"`
}

// ResultDTO is a cumulative exam result.
type ResultDTO struct {
	StudentID       string             `json:"student_id"`
	Exam            string             `json:"exam"`
	Marks           map[string]float64 `json:"marks"`
	CyclesWithMarks int                `json:"cycles_with_marks"`
	SubjectCount    int                `json:"subject_count"`
	Obtained        float64            `json:"obtained"`
	Maximum         float64            `json:"maximum"`
	Percentage      *float64           `json:"percentage"`
	Grade           string             `json:"grade,omitempty"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// FieldErrorDTO is one failed validation rule.
type FieldErrorDTO struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Details string          `json:"details,omitempty"`
	Fields  []FieldErrorDTO `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toStudentDTO(st fees.Student) StudentDTO {
	dto := StudentDTO{
		ID:          string(st.ID),
		Name:        st.Name,
		ClassName:   st.ClassName,
		ParentPhone: st.ParentPhone,
	}
	if !st.DateOfBirth.IsZero() {
		dto.DateOfBirth = st.DateOfBirth.DateKey()
	}
	if !st.FeeOverride.IsEmpty() {
		dto.FeeOverride = feesToStrings(st.FeeOverride)
	}
	return dto
}

func feesToStrings(fs fees.FeeStructure) map[string]string {
	out := make(map[string]string, len(fs))
	for head, v := range fs {
		out[string(head)] = generic.NewAmountFromDecimal(v).String()
	}
	return out
}

func toFeeStructure(m map[string]decimal.Decimal) fees.FeeStructure {
	if len(m) == 0 {
		return nil
	}
	fs := make(fees.FeeStructure, len(m))
	for head, v := range m {
		fs[fees.FeeHead(head)] = v
	}
	return fs
}

func toFeeSummaryDTO(s fees.Summary) FeeSummaryDTO {
	paid := make([]string, len(s.PaidMonths))
	for i, m := range s.PaidMonths {
		paid[i] = m.String()
	}
	b := s.Breakdown
	return FeeSummaryDTO{
		StudentID:      string(s.Student.ID),
		Session:        s.Session,
		IsSibling:      s.IsSibling,
		MonthsPassed:   s.MonthsPassed,
		PaidMonths:     paid,
		PaymentCount:   s.PaymentCount,
		TotalAnnualFee: s.TotalAnnualFee.String(),
		TotalPaid:      s.TotalPaid.String(),
		Due:            s.Due.String(),
		ExpectedToDate: s.ExpectedToDate.String(),
		Arrears:        s.Arrears.String(),
		Breakdown: FeeBreakdownDTO{
			Monthly:         b.Monthly.String(),
			OneTime:         b.OneTime.String(),
			Exam:            b.Exam.String(),
			Discount:        b.Discount.String(),
			SiblingDiscount: b.SiblingDiscount.String(),
			Total:           b.Total.String(),
		},
	}
}

func toCombinedPaymentDTO(r fees.CombinedResult) CombinedPaymentDTO {
	dto := CombinedPaymentDTO{
		ReferenceID: r.ReferenceID,
		Total:       r.Total.String(),
		Allocated:   r.Allocated.String(),
		Unallocated: r.Unallocated.String(),
		Allocations: make([]AllocationDTO, len(r.Lines)),
	}
	for i, l := range r.Lines {
		dto.Allocations[i] = AllocationDTO{
			StudentID:     string(l.StudentID),
			DueBefore:     l.DueBefore.String(),
			Amount:        l.Amount.String(),
			TransactionID: string(l.TxID),
		}
	}
	return dto
}

func toStatementDTO(st generic.Statement) StatementDTO {
	dto := StatementDTO{
		StudentID: string(st.EntityID),
		From:      st.Period.Start.DateKey(),
		To:        st.Period.End.DateKey(),
		Opening:   st.Opening.String(),
		Lines:     make([]StatementLineDTO, len(st.Lines)),
		Closing:   st.Closing.String(),
	}
	for i, line := range st.Lines {
		dto.Lines[i] = StatementLineDTO{
			TransactionDTO: toTransactionDTO(line.Transaction),
			PaidToDate:     line.PaidToDate.String(),
		}
	}
	return dto
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:          string(tx.ID),
		EntityID:    string(tx.EntityID),
		Account:     tx.Account.AccountID(),
		EffectiveAt: tx.EffectiveAt.DateKey(),
		Amount:      tx.Amount.String(),
		Type:        string(tx.Type),
		Method:      tx.Method,
		ReferenceID: tx.ReferenceID,
		Reason:      tx.Reason,
		Metadata:    tx.Metadata,
		CreatedBy:   tx.CreatedBy,
	}
	for _, m := range tx.Months {
		dto.Months = append(dto.Months, m.String())
	}
	if !tx.CreatedAt.IsZero() {
		dto.CreatedAt = tx.CreatedAt.DateKey()
	}
	return dto
}

func toTeacherDTO(t payroll.Teacher) TeacherDTO {
	return TeacherDTO{
		ID:         string(t.ID),
		Name:       t.Name,
		Subject:    t.Subject,
		Phone:      t.Phone,
		BaseSalary: generic.NewAmountFromDecimal(t.BaseSalary).String(),
	}
}

func toSalaryPaymentDTO(p payroll.SalaryPayment) SalaryPaymentDTO {
	return SalaryPaymentDTO{
		ID:     string(p.ID),
		Month:  p.Month.String(),
		Date:   p.Date.DateKey(),
		Amount: p.Amount.String(),
		Method: p.Method,
	}
}

func toSalarySlipDTO(s payroll.Slip) SalarySlipDTO {
	d := s.Details
	dto := SalarySlipDTO{
		TeacherID:        string(d.TeacherID),
		Month:            d.Month.String(),
		BaseSalary:       d.BaseSalary.String(),
		PerDaySalary:     d.PerDaySalary.String(),
		DaysInMonth:      d.DaysInMonth,
		WorkingDays:      d.WorkingDays,
		PresentDays:      d.PresentDays,
		AbsentDays:       d.AbsentDays,
		UnmarkedDays:     d.UnmarkedDays,
		HolidayDays:      d.HolidayDays,
		TotalPresentDays: d.TotalPresentDays,
		AllowedAbsents:   d.AllowedAbsents,
		DeductionDays:    d.DeductionDays,
		DeductionAmount:  d.DeductionAmount.String(),
		NetSalary:        d.NetSalary.String(),
		Status:           string(s.Status),
		Payments:         make([]SalaryPaymentDTO, len(s.Payments)),
	}
	for i, p := range s.Payments {
		dto.Payments[i] = toSalaryPaymentDTO(p)
	}
	return dto
}

func toAttendanceDTOs(register payroll.AttendanceRegister) []AttendanceDTO {
	dtos := []AttendanceDTO{}
	for date, day := range register {
		for teacherID, status := range day {
			dtos = append(dtos, AttendanceDTO{Date: date, TeacherID: string(teacherID), Status: string(status)})
		}
	}
	sort.Slice(dtos, func(i, j int) bool {
		if dtos[i].Date != dtos[j].Date {
			return dtos[i].Date < dtos[j].Date
		}
		return dtos[i].TeacherID < dtos[j].TeacherID
	})
	return dtos
}

func toResultDTO(studentID string, r results.Result) ResultDTO {
	marks := r.Marks
	if marks == nil {
		marks = results.Marks{}
	}
	return ResultDTO{
		StudentID:       studentID,
		Exam:            string(r.Exam),
		Marks:           marks,
		CyclesWithMarks: r.CyclesWithMarks,
		SubjectCount:    r.SubjectCount,
		Obtained:        r.Obtained,
		Maximum:         r.Maximum,
		Percentage:      r.Percentage,
		Grade:           r.Grade,
	}
}

// =============================================================================
// REQUEST DECODING
// =============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Numeric rules (gt, gte) compare decimals through their float value.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	v.RegisterValidation("feehead", func(fl validator.FieldLevel) bool {
		return fees.IsKnownHead(fees.FeeHead(fl.Field().String()))
	})
	return v
}

// errInvalidBody wraps malformed JSON so it maps to 400.
var errInvalidBody = errors.New("invalid request body")

// decodeRequest decodes the JSON body into dst and validates it.
func decodeRequest(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return validate.Struct(dst)
}

// fieldErrors flattens validator errors for the response body.
func fieldErrors(err error) []FieldErrorDTO {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldErrorDTO, len(verrs))
	for i, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out[i] = FieldErrorDTO{Field: fe.Field(), Error: "failed on " + msg}
	}
	return out
}
