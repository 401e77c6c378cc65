package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/school-engine/generic"
)

// ErrInvalidMonth is returned for salary months that are not yyyy-MM.
var ErrInvalidMonth = errors.New("invalid salary month")

// Directory provides the teacher, attendance and holiday data a salary needs.
type Directory interface {
	// GetTeacher returns nil, nil when the teacher doesn't exist.
	GetTeacher(ctx context.Context, id string) (*Teacher, error)
	AttendanceForMonth(ctx context.Context, month generic.MonthKey) (AttendanceRegister, error)
	Holidays(ctx context.Context) ([]generic.Holiday, error)
}

// Service computes salary slips and records salary payments.
type Service struct {
	ledger    generic.Ledger
	directory Directory
	rules     Rules
	log       *zap.Logger
}

func NewService(ledger generic.Ledger, directory Directory, rules Rules, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		ledger:    ledger,
		directory: directory,
		rules:     rules.withDefaults(),
		log:       log.Named("payroll"),
	}
}

// Slip is a month's salary details with its payment status.
type Slip struct {
	Details  SalaryDetails
	Status   PaymentStatus
	Payments []SalaryPayment // payments tagged with the month
}

// PayInput describes a salary disbursement. A zero Amount pays the computed net.
type PayInput struct {
	Month     string
	Amount    decimal.Decimal
	Method    string
	Date      generic.TimePoint
	CreatedBy string
}

// ParseMonth validates a yyyy-MM salary month.
func ParseMonth(s string) (generic.MonthKey, error) {
	m, err := generic.ParseMonth(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidMonth, err)
	}
	return m, nil
}

// Slip computes the teacher's salary for month along with its status.
func (s *Service) Slip(ctx context.Context, teacherID, month string) (Slip, error) {
	m, err := ParseMonth(month)
	if err != nil {
		return Slip{}, err
	}
	teacher, err := s.teacher(ctx, teacherID)
	if err != nil {
		return Slip{}, err
	}

	register, err := s.directory.AttendanceForMonth(ctx, m)
	if err != nil {
		return Slip{}, fmt.Errorf("load attendance: %w", err)
	}
	holidays, err := s.directory.Holidays(ctx)
	if err != nil {
		return Slip{}, fmt.Errorf("load holidays: %w", err)
	}
	txs, err := s.ledger.Transactions(ctx, teacher.ID, AccountSalary)
	if err != nil {
		return Slip{}, fmt.Errorf("load salary payments: %w", err)
	}

	slip := Slip{
		Details: CalculateSalary(*teacher, m, register, generic.HolidayList(holidays), s.rules),
	}
	for _, tx := range txs {
		if tx.Type == generic.TxPayment && tx.CoversMonth(m) {
			slip.Payments = append(slip.Payments, PaymentFromTransaction(tx))
		}
	}
	slip.Status = Status(slip.Payments, m)
	return slip, nil
}

// Payments returns every salary payment made to the teacher.
func (s *Service) Payments(ctx context.Context, teacherID string) ([]SalaryPayment, error) {
	teacher, err := s.teacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	return s.payments(ctx, teacher.ID)
}

// PaySalary records a salary payment for a month. Paying the same month
// twice is allowed; both payments are kept.
func (s *Service) PaySalary(ctx context.Context, teacherID string, in PayInput) (SalaryPayment, error) {
	amount := in.Amount
	if amount.IsZero() {
		slip, err := s.Slip(ctx, teacherID, in.Month)
		if err != nil {
			return SalaryPayment{}, err
		}
		amount = slip.Details.NetSalary.Value
	}
	if !amount.IsPositive() {
		return SalaryPayment{}, generic.ErrInvalidAmount
	}

	m, err := ParseMonth(in.Month)
	if err != nil {
		return SalaryPayment{}, err
	}
	teacher, err := s.teacher(ctx, teacherID)
	if err != nil {
		return SalaryPayment{}, err
	}

	tx := generic.Transaction{
		ID:          generic.TransactionID(uuid.NewString()),
		EntityID:    teacher.ID,
		Account:     AccountSalary,
		EffectiveAt: in.Date,
		Amount:      generic.NewAmountFromDecimal(amount),
		Type:        generic.TxPayment,
		Method:      in.Method,
		Months:      []generic.MonthKey{m},
		Reason:      "Salary " + m.String(),
		CreatedBy:   in.CreatedBy,
		CreatedAt:   generic.Today(),
	}
	if err := s.ledger.Append(ctx, tx); err != nil {
		return SalaryPayment{}, fmt.Errorf("record salary payment: %w", err)
	}

	s.log.Info("salary paid",
		zap.String("teacher_id", string(teacher.ID)),
		zap.String("month", m.String()),
		zap.String("amount", tx.Amount.String()),
	)
	return PaymentFromTransaction(tx), nil
}

func (s *Service) teacher(ctx context.Context, id string) (*Teacher, error) {
	t, err := s.directory.GetTeacher(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get teacher %s: %w", id, err)
	}
	if t == nil {
		return nil, &generic.NotFoundError{Kind: "teacher", ID: id}
	}
	return t, nil
}

func (s *Service) payments(ctx context.Context, teacherID generic.EntityID) ([]SalaryPayment, error) {
	txs, err := s.ledger.Transactions(ctx, teacherID, AccountSalary)
	if err != nil {
		return nil, fmt.Errorf("load salary payments: %w", err)
	}
	payments := make([]SalaryPayment, 0, len(txs))
	for _, tx := range txs {
		if tx.Type == generic.TxPayment {
			payments = append(payments, PaymentFromTransaction(tx))
		}
	}
	return payments, nil
}
