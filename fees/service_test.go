package fees_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/school-engine/fees"
	"github.com/warp/school-engine/generic"
	"github.com/warp/school-engine/generic/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fakeDirectory struct {
	students  []fees.Student
	classFees map[string]fees.FeeStructure
}

func (f *fakeDirectory) GetStudent(_ context.Context, id string) (*fees.Student, error) {
	for _, s := range f.students {
		if string(s.ID) == id {
			s := s
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) ListStudents(context.Context) ([]fees.Student, error) {
	return f.students, nil
}

func (f *fakeDirectory) ClassFees(context.Context) (map[string]fees.FeeStructure, error) {
	return f.classFees, nil
}

func newTestService(t *testing.T, sessionStart generic.TimePoint) (*fees.Service, *fakeDirectory, generic.Ledger) {
	t.Helper()
	dir := &fakeDirectory{
		students: []fees.Student{
			{ID: "ali", Name: "Ali", ClassName: "5", ParentPhone: "0300 1234567", DateOfBirth: dob(2012)},
			{ID: "sara", Name: "Sara", ClassName: "3", ParentPhone: "0300 1234567", DateOfBirth: dob(2015)},
		},
		classFees: map[string]fees.FeeStructure{
			"5": {fees.HeadTuition: d(100)},
			"3": {fees.HeadTuition: d(50)},
		},
	}
	ledger := generic.NewLedger(store.NewMemory())
	svc := fees.NewService(ledger, dir, fees.Settings{SessionStart: sessionStart}, nil)
	return svc, dir, ledger
}

var sessionStart = generic.NewTimePoint(2024, time.April, 1)

// =============================================================================
// SINGLE PAYMENTS
// =============================================================================

func TestService_RecordPayment_ReducesDue(t *testing.T) {
	svc, _, _ := newTestService(t, sessionStart)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, "ali", fees.PaymentInput{
		Amount: d(400),
		Method: "cash",
		Date:   generic.NewTimePoint(2024, time.May, 3),
		Months: []generic.MonthKey{"2024-04", "2024-05"},
	})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, "ali", generic.NewTimePoint(2024, time.May, 10))
	require.NoError(t, err)

	assert.Equal(t, "1200.00", summary.TotalAnnualFee.String())
	assert.Equal(t, "800.00", summary.Due.String())
	assert.Equal(t, 2, summary.MonthsPassed)
	assert.False(t, summary.IsSibling)
}

func TestService_RecordPayment_Validation(t *testing.T) {
	svc, _, _ := newTestService(t, sessionStart)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, "ali", fees.PaymentInput{Amount: d(0)})
	assert.ErrorIs(t, err, generic.ErrInvalidAmount)

	_, err = svc.RecordPayment(ctx, "nobody", fees.PaymentInput{Amount: d(10)})
	assert.ErrorIs(t, err, generic.ErrEntityNotFound)
}

func TestService_RecordPayment_Idempotent(t *testing.T) {
	svc, _, _ := newTestService(t, sessionStart)
	ctx := context.Background()
	in := fees.PaymentInput{Amount: d(100), IdempotencyKey: "receipt-17"}

	_, err := svc.RecordPayment(ctx, "ali", in)
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, "ali", in)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	payments, err := svc.Payments(ctx, "ali")
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestService_Statement_RunningTotals(t *testing.T) {
	// GIVEN: Payments in March (before the session), May and June
	// WHEN: Requesting a statement for May through July
	// THEN: March opens the statement, each line carries the running paid total
	svc, _, _ := newTestService(t, sessionStart)
	ctx := context.Background()

	for i, on := range []generic.TimePoint{
		generic.NewTimePoint(2024, time.March, 20),
		generic.NewTimePoint(2024, time.May, 5),
		generic.NewTimePoint(2024, time.June, 5),
	} {
		_, err := svc.RecordPayment(ctx, "ali", fees.PaymentInput{Amount: d(int64(100 * (i + 1))), Date: on})
		require.NoError(t, err)
	}

	st, err := svc.Statement(ctx, "ali",
		generic.NewTimePoint(2024, time.May, 1), generic.NewTimePoint(2024, time.July, 31))
	require.NoError(t, err)

	assert.Equal(t, "100.00", st.Opening.String())
	require.Len(t, st.Lines, 2)
	assert.Equal(t, "300.00", st.Lines[0].PaidToDate.String())
	assert.Equal(t, "600.00", st.Lines[1].PaidToDate.String())
	assert.Equal(t, "600.00", st.Closing.String())
}

func TestService_Statement_DefaultsToSession(t *testing.T) {
	svc, _, _ := newTestService(t, sessionStart)
	ctx := context.Background()

	st, err := svc.Statement(ctx, "ali", generic.TimePoint{}, generic.TimePoint{})
	require.NoError(t, err)
	assert.Equal(t, "2024-04-01", st.Period.Start.String())
	assert.Equal(t, "2025-03-31", st.Period.End.String())
	assert.Empty(t, st.Lines)
	assert.True(t, st.Closing.IsZero())
}

func TestService_Statement_Errors(t *testing.T) {
	ctx := context.Background()

	noSession, _, _ := newTestService(t, generic.TimePoint{})
	_, err := noSession.Statement(ctx, "ali", generic.TimePoint{}, generic.TimePoint{})
	assert.ErrorIs(t, err, fees.ErrSessionNotConfigured)

	svc, _, _ := newTestService(t, sessionStart)
	_, err = svc.Statement(ctx, "ali",
		generic.NewTimePoint(2024, time.June, 1), generic.NewTimePoint(2024, time.May, 1))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	_, err = svc.Statement(ctx, "nobody", sessionStart, sessionStart)
	assert.ErrorIs(t, err, generic.ErrEntityNotFound)
}

// =============================================================================
// COMBINED PAYMENTS
// =============================================================================

func TestService_RecordCombinedPayment_SplitsByDue(t *testing.T) {
	// GIVEN: Ali owes 1200, Sara owes 600 - 0 sibling discount
	// WHEN: Parent pays 900 for both
	// THEN: Ali gets 600, Sara gets 300, both share one reference

	svc, _, ledger := newTestService(t, sessionStart)
	ctx := context.Background()

	res, err := svc.RecordCombinedPayment(ctx, fees.CombinedPaymentInput{
		StudentIDs: []string{"ali", "sara"},
		Amount:     d(900),
		Method:     "bank",
		Date:       generic.NewTimePoint(2024, time.June, 1),
	})
	require.NoError(t, err)

	require.Len(t, res.Lines, 2)
	assert.Equal(t, "900.00", res.Allocated.String())
	assert.True(t, res.Unallocated.IsZero())
	assert.NotEmpty(t, res.ReferenceID)

	byID := map[generic.EntityID]fees.AllocationLine{}
	for _, l := range res.Lines {
		byID[l.StudentID] = l
	}
	assert.Equal(t, "600.00", byID["ali"].Amount.String())
	assert.Equal(t, "1200.00", byID["ali"].DueBefore.String())
	assert.Equal(t, "300.00", byID["sara"].Amount.String())

	txs, err := ledger.Transactions(ctx, "sara", fees.AccountFees)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, res.ReferenceID, txs[0].ReferenceID)
	assert.Equal(t, "bank", txs[0].Method)
}

func TestService_RecordCombinedPayment_SiblingDiscountApplied(t *testing.T) {
	svc, dir, _ := newTestService(t, sessionStart)
	svc = fees.NewService(generic.NewLedger(store.NewMemory()), dir,
		fees.Settings{SessionStart: sessionStart, SiblingDiscount: d(25)}, nil)
	ctx := context.Background()

	// Sara is younger: 50x12 - 25x12 = 300
	summary, err := svc.Summary(ctx, "sara", sessionStart)
	require.NoError(t, err)
	assert.True(t, summary.IsSibling)
	assert.Equal(t, "300.00", summary.Due.String())

	res, err := svc.RecordCombinedPayment(ctx, fees.CombinedPaymentInput{
		StudentIDs: []string{"ali", "sara"},
		Amount:     d(3000),
	})
	require.NoError(t, err)
	assert.Equal(t, "1500.00", res.Allocated.String())
	assert.Equal(t, "1500.00", res.Unallocated.String())
}

func TestService_RecordCombinedPayment_SkipsPaidChildren(t *testing.T) {
	svc, _, _ := newTestService(t, sessionStart)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, "sara", fees.PaymentInput{Amount: d(600)})
	require.NoError(t, err)

	res, err := svc.RecordCombinedPayment(ctx, fees.CombinedPaymentInput{
		StudentIDs: []string{"ali", "sara"},
		Amount:     d(500),
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, generic.EntityID("ali"), res.Lines[0].StudentID)
	assert.Equal(t, "500.00", res.Lines[0].Amount.String())
}

func TestService_RecordCombinedPayment_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no students", func(t *testing.T) {
		svc, _, _ := newTestService(t, sessionStart)
		_, err := svc.RecordCombinedPayment(ctx, fees.CombinedPaymentInput{Amount: d(100)})
		assert.ErrorIs(t, err, fees.ErrNoStudents)
	})

	t.Run("session not configured", func(t *testing.T) {
		svc, _, _ := newTestService(t, generic.TimePoint{})
		_, err := svc.RecordCombinedPayment(ctx, fees.CombinedPaymentInput{
			StudentIDs: []string{"ali"},
			Amount:     d(100),
		})
		assert.ErrorIs(t, err, fees.ErrSessionNotConfigured)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		svc, _, _ := newTestService(t, sessionStart)
		_, err := svc.RecordCombinedPayment(ctx, fees.CombinedPaymentInput{
			StudentIDs: []string{"ali"},
			Amount:     d(-5),
		})
		assert.ErrorIs(t, err, generic.ErrInvalidAmount)
		assert.True(t, fees.IsValidationError(err))
	})

	t.Run("nothing due", func(t *testing.T) {
		svc, dir, _ := newTestService(t, sessionStart)
		dir.classFees = nil
		_, err := svc.RecordCombinedPayment(ctx, fees.CombinedPaymentInput{
			StudentIDs: []string{"ali", "sara"},
			Amount:     d(100),
		})
		assert.ErrorIs(t, err, fees.ErrNothingDue)
	})

	t.Run("unknown student", func(t *testing.T) {
		svc, _, _ := newTestService(t, sessionStart)
		_, err := svc.RecordCombinedPayment(ctx, fees.CombinedPaymentInput{
			StudentIDs: []string{"ali", "ghost"},
			Amount:     d(100),
		})
		assert.True(t, generic.IsNotFound(err))
	})
}
