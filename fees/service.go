/*
service.go - Fee ledger service

PURPOSE:
  Connects the pure fee calculations to persisted students and the
  append-only ledger. Records single payments and combined family
  payments, and reports a student's due.

COMBINED PAYMENT FLOW:
  1. Validate: amount positive, at least one student, session configured
  2. Load every child and compute their due
  3. Keep children with due > 0
  4. DistributePayment, round to cents within the payment, drop zeros
  5. AppendBatch: one atomic write for the whole family

  Two payments for the same student submitted at once are not serialized;
  both are appended.

SEE ALSO:
  - distribute.go: The split algorithm
  - due.go: Due calculation
  - generic/ledger.go: Append-only persistence
*/
package fees

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/school-engine/generic"
)

var (
	// ErrSessionNotConfigured blocks combined payments until a session start date is set.
	ErrSessionNotConfigured = errors.New("session start date not configured")

	// ErrNoStudents is returned when a combined payment names no students.
	ErrNoStudents = errors.New("no students selected")

	// ErrNothingDue is returned when none of the selected students owes anything.
	ErrNothingDue = errors.New("selected students have no outstanding dues")
)

// IsValidationError reports errors that should be shown to the user as-is.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrSessionNotConfigured) ||
		errors.Is(err, ErrNoStudents) ||
		errors.Is(err, ErrNothingDue) ||
		generic.IsClientError(err)
}

// Directory provides read access to students and class fee defaults.
type Directory interface {
	// GetStudent returns nil, nil when the student doesn't exist.
	GetStudent(ctx context.Context, id string) (*Student, error)
	ListStudents(ctx context.Context) ([]Student, error)
	ClassFees(ctx context.Context) (map[string]FeeStructure, error)
}

// Service records fee payments and reports dues.
type Service struct {
	ledger    generic.Ledger
	directory Directory
	settings  Settings
	log       *zap.Logger
}

// NewService creates a fee service. settings.ClassFees is ignored; class
// defaults are read from the directory on every call.
func NewService(ledger generic.Ledger, directory Directory, settings Settings, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		ledger:    ledger,
		directory: directory,
		settings:  settings,
		log:       log.Named("fees"),
	}
}

// Settings returns the configured fee settings.
func (s *Service) Settings() Settings { return s.settings }

// PaymentInput describes a payment received for one student.
type PaymentInput struct {
	Amount         decimal.Decimal
	Method         string
	Date           generic.TimePoint
	Months         []generic.MonthKey
	Reason         string
	IdempotencyKey string
	CreatedBy      string
}

// CombinedPaymentInput describes one lump payment for several children.
type CombinedPaymentInput struct {
	StudentIDs []string
	Amount     decimal.Decimal
	Method     string
	Date       generic.TimePoint
	Months     []generic.MonthKey
	CreatedBy  string
}

// AllocationLine is one child's share of a combined payment.
type AllocationLine struct {
	StudentID generic.EntityID
	DueBefore generic.Amount
	Amount    generic.Amount
	TxID      generic.TransactionID
}

// CombinedResult reports how a combined payment was applied.
type CombinedResult struct {
	ReferenceID string
	Total       generic.Amount
	Allocated   generic.Amount
	Unallocated generic.Amount
	Lines       []AllocationLine
}

// =============================================================================
// QUERIES
// =============================================================================

// Summary returns the student's fee summary as of asOf.
func (s *Service) Summary(ctx context.Context, studentID string, asOf generic.TimePoint) (Summary, error) {
	student, err := s.student(ctx, studentID)
	if err != nil {
		return Summary{}, err
	}
	all, err := s.directory.ListStudents(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list students: %w", err)
	}
	settings, err := s.loadSettings(ctx)
	if err != nil {
		return Summary{}, err
	}
	payments, err := s.ledger.Transactions(ctx, student.ID, AccountFees)
	if err != nil {
		return Summary{}, fmt.Errorf("load payments: %w", err)
	}
	return Summarize(*student, all, payments, settings, asOf), nil
}

// Payments returns a student's fee transactions, oldest first.
func (s *Service) Payments(ctx context.Context, studentID string) ([]generic.Transaction, error) {
	student, err := s.student(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.ledger.Transactions(ctx, student.ID, AccountFees)
}

// Statement replays a student's fee transactions over [from, to].
// A zero from or to defaults to the configured session bounds.
func (s *Service) Statement(ctx context.Context, studentID string, from, to generic.TimePoint) (generic.Statement, error) {
	student, err := s.student(ctx, studentID)
	if err != nil {
		return generic.Statement{}, err
	}
	if from.IsZero() || to.IsZero() {
		settings, err := s.loadSettings(ctx)
		if err != nil {
			return generic.Statement{}, err
		}
		if !settings.SessionConfigured() {
			return generic.Statement{}, ErrSessionNotConfigured
		}
		session := generic.SessionFor(settings.SessionStart)
		if from.IsZero() {
			from = session.Start
		}
		if to.IsZero() {
			to = session.End
		}
	}
	period := generic.Period{Start: from, End: to}
	if err := period.Validate(); err != nil {
		return generic.Statement{}, err
	}

	opening, err := s.ledger.PaidAt(ctx, student.ID, AccountFees, from.AddDays(-1))
	if err != nil {
		return generic.Statement{}, fmt.Errorf("load opening balance: %w", err)
	}
	txs, err := s.ledger.TransactionsInRange(ctx, student.ID, AccountFees, from, to)
	if err != nil {
		return generic.Statement{}, fmt.Errorf("load payments: %w", err)
	}
	return generic.BuildStatement(student.ID, AccountFees, period, opening, txs), nil
}

// =============================================================================
// COMMANDS
// =============================================================================

// RecordPayment appends a single payment for a student.
func (s *Service) RecordPayment(ctx context.Context, studentID string, in PaymentInput) (generic.Transaction, error) {
	if !in.Amount.IsPositive() {
		return generic.Transaction{}, generic.ErrInvalidAmount
	}
	student, err := s.student(ctx, studentID)
	if err != nil {
		return generic.Transaction{}, err
	}

	tx := generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		EntityID:       student.ID,
		Account:        AccountFees,
		EffectiveAt:    in.Date,
		Amount:         generic.NewAmountFromDecimal(in.Amount),
		Type:           generic.TxPayment,
		Method:         in.Method,
		Months:         in.Months,
		Reason:         in.Reason,
		IdempotencyKey: in.IdempotencyKey,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      generic.Today(),
	}
	if err := s.ledger.Append(ctx, tx); err != nil {
		return generic.Transaction{}, fmt.Errorf("record payment: %w", err)
	}

	s.log.Info("fee payment recorded",
		zap.String("student_id", string(student.ID)),
		zap.String("amount", tx.Amount.String()),
		zap.String("method", tx.Method),
	)
	return tx, nil
}

// RecordCombinedPayment distributes one family payment across several
// students and writes all shares in a single batch.
func (s *Service) RecordCombinedPayment(ctx context.Context, in CombinedPaymentInput) (CombinedResult, error) {
	if !in.Amount.IsPositive() {
		return CombinedResult{}, generic.ErrInvalidAmount
	}
	if len(in.StudentIDs) == 0 {
		return CombinedResult{}, ErrNoStudents
	}
	if !s.settings.SessionConfigured() {
		s.log.Warn("combined payment rejected", zap.Error(ErrSessionNotConfigured))
		return CombinedResult{}, ErrSessionNotConfigured
	}

	settings, err := s.loadSettings(ctx)
	if err != nil {
		return CombinedResult{}, err
	}
	all, err := s.directory.ListStudents(ctx)
	if err != nil {
		return CombinedResult{}, fmt.Errorf("list students: %w", err)
	}

	var (
		children []ChildDue
		dues     = make(map[generic.EntityID]generic.Amount)
	)
	for _, id := range uniqueIDs(in.StudentIDs) {
		student, err := s.student(ctx, id)
		if err != nil {
			return CombinedResult{}, err
		}
		payments, err := s.ledger.Transactions(ctx, student.ID, AccountFees)
		if err != nil {
			return CombinedResult{}, fmt.Errorf("load payments for %s: %w", id, err)
		}
		due := CalculateAnnualDue(*student, payments, settings, IsSibling(*student, all)).Due
		dues[student.ID] = due
		if due.IsPositive() {
			children = append(children, ChildDue{StudentID: student.ID, Due: due})
		}
	}
	if len(children) == 0 {
		return CombinedResult{}, ErrNothingDue
	}

	total := generic.NewAmountFromDecimal(in.Amount)
	allocations := DistributePayment(total, children).RoundedWithin(total)

	ref := uuid.NewString()
	result := CombinedResult{ReferenceID: ref, Total: total}
	var batch []generic.Transaction
	for _, c := range children {
		amount, ok := allocations[c.StudentID]
		if !ok {
			continue
		}
		tx := generic.Transaction{
			ID:             generic.TransactionID(uuid.NewString()),
			EntityID:       c.StudentID,
			Account:        AccountFees,
			EffectiveAt:    in.Date,
			Amount:         amount,
			Type:           generic.TxPayment,
			Method:         in.Method,
			Months:         in.Months,
			ReferenceID:    ref,
			Reason:         "Combined family payment",
			IdempotencyKey: ref + ":" + string(c.StudentID),
			Metadata: map[string]string{
				"combined_total": total.String(),
				"children":       fmt.Sprintf("%d", len(children)),
			},
			CreatedBy: in.CreatedBy,
			CreatedAt: generic.Today(),
		}
		batch = append(batch, tx)
		result.Lines = append(result.Lines, AllocationLine{
			StudentID: c.StudentID,
			DueBefore: dues[c.StudentID],
			Amount:    amount,
			TxID:      tx.ID,
		})
		result.Allocated = result.Allocated.Add(amount)
	}

	if len(batch) > 0 {
		if err := s.ledger.AppendBatch(ctx, batch); err != nil {
			return CombinedResult{}, fmt.Errorf("record combined payment: %w", err)
		}
	}
	result.Unallocated = total.Sub(result.Allocated).Floor()

	s.log.Info("combined payment distributed",
		zap.String("reference_id", ref),
		zap.String("total", total.String()),
		zap.String("allocated", result.Allocated.String()),
		zap.Int("children", len(result.Lines)),
	)
	return result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) student(ctx context.Context, id string) (*Student, error) {
	student, err := s.directory.GetStudent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get student %s: %w", id, err)
	}
	if student == nil {
		return nil, &generic.NotFoundError{Kind: "student", ID: id}
	}
	return student, nil
}

func (s *Service) loadSettings(ctx context.Context) (Settings, error) {
	classFees, err := s.directory.ClassFees(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("load class fees: %w", err)
	}
	settings := s.settings
	settings.ClassFees = classFees
	return settings, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
