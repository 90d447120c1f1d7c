package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"cashbox_backend/internal/authz"
	"cashbox_backend/internal/events"
	"cashbox_backend/internal/models"
	"cashbox_backend/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type liquidationFixture struct {
	env          *testEnv
	shifts       *MockShiftRepository
	liquidations *MockLiquidationRepository
}

func newLiquidationFixture() (*liquidationFixture, LiquidationService) {
	f := &liquidationFixture{
		env:          newTestEnv(),
		shifts:       new(MockShiftRepository),
		liquidations: new(MockLiquidationRepository),
	}
	return f, NewLiquidationService(f.shifts, f.liquidations, f.env.deps)
}

func closedShift(id, employeeID int64, startedAt time.Time, payment int64) models.Shift {
	p := decimal.NewFromInt(payment)
	return models.Shift{ID: id, EmployeeID: employeeID, OrganizationID: 10, StartedAt: startedAt, TotalPayment: &p, Status: models.ShiftClosed}
}

func systemCtx() context.Context {
	return authz.WithActor(context.Background(), authz.SystemActor(10))
}

func TestRunLiquidation_AggregatesPerEmployee(t *testing.T) {
	f, svc := newLiquidationFixture()
	ctx := systemCtx()
	day1 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	s1, s2 := closedShift(1, 7, day1, 40000), closedShift(2, 7, day2, 60000)
	f.shifts.On("ListClosedByOrganization", ctx, mock.Anything, int64(10)).Return([]models.Shift{s1, s2}, nil)
	f.shifts.On("ClaimForPayment", ctx, mock.Anything, []int64{1, 2}).Return([]models.Shift{s1, s2}, nil)
	f.liquidations.On("Create", ctx, mock.Anything, mock.MatchedBy(func(l *models.Liquidation) bool {
		return l.EmployeeID == 7 && l.TotalAmount.Equal(decimal.NewFromInt(100000)) && l.ShiftCount == 2 &&
			l.PeriodStart.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) &&
			l.PeriodEnd.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	})).Run(func(args mock.Arguments) {
		args.Get(2).(*models.Liquidation).ID = 500
	}).Return(nil)

	run, err := svc.RunLiquidation(ctx, 10)

	require.NoError(t, err)
	require.Len(t, run.Created, 1)
	assert.Equal(t, int64(500), run.Created[0].ID)
	assert.True(t, run.Created[0].TotalAmount.Equal(decimal.NewFromInt(100000)))
	assert.Empty(t, run.Failed)
	assert.Equal(t, []string{events.TypeLiquidation}, f.env.publisher.types())
	f.liquidations.AssertExpectations(t)
}

func TestRunLiquidation_SecondRunIsNoop(t *testing.T) {
	f, svc := newLiquidationFixture()
	ctx := systemCtx()

	f.shifts.On("ListClosedByOrganization", ctx, mock.Anything, int64(10)).Return([]models.Shift{}, nil)

	run, err := svc.RunLiquidation(ctx, 10)

	require.NoError(t, err)
	assert.Empty(t, run.Created)
	assert.Equal(t, 0, f.env.tx.begun)
	f.liquidations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunLiquidation_SkipsGroupClaimedConcurrently(t *testing.T) {
	f, svc := newLiquidationFixture()
	ctx := systemCtx()
	day := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	f.shifts.On("ListClosedByOrganization", ctx, mock.Anything, int64(10)).
		Return([]models.Shift{closedShift(1, 7, day, 40000)}, nil)
	f.shifts.On("ClaimForPayment", ctx, mock.Anything, []int64{1}).Return([]models.Shift{}, nil)

	run, err := svc.RunLiquidation(ctx, 10)

	require.NoError(t, err)
	assert.Equal(t, 1, run.Skipped)
	assert.Empty(t, run.Created)
	f.liquidations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunLiquidation_FailingGroupDoesNotStopOthers(t *testing.T) {
	f, svc := newLiquidationFixture()
	ctx := systemCtx()
	day := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	a, b := closedShift(1, 7, day, 40000), closedShift(2, 8, day, 30000)
	f.shifts.On("ListClosedByOrganization", ctx, mock.Anything, int64(10)).Return([]models.Shift{b, a}, nil)
	f.shifts.On("ClaimForPayment", ctx, mock.Anything, []int64{1}).Return(nil, errors.New("deadlock detected"))
	f.shifts.On("ClaimForPayment", ctx, mock.Anything, []int64{2}).Return([]models.Shift{b}, nil)
	f.liquidations.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)

	run, err := svc.RunLiquidation(ctx, 10)

	require.NoError(t, err)
	require.Len(t, run.Failed, 1)
	assert.Equal(t, int64(7), run.Failed[0].EmployeeID)
	require.Len(t, run.Created, 1)
	assert.Equal(t, int64(8), run.Created[0].EmployeeID)
	assert.Equal(t, 2, f.env.tx.begun, "each employee group runs in its own transaction")
	assert.Equal(t, 1, f.env.tx.committed)
}

func TestRunLiquidation_Forbidden(t *testing.T) {
	f, _ := newLiquidationFixture()
	f.env.deps.Authz = denyAll{}
	svc := NewLiquidationService(f.shifts, f.liquidations, f.env.deps)

	_, err := svc.RunLiquidation(cashierCtx(7), 10)

	assert.ErrorIs(t, err, ErrForbidden)
	f.shifts.AssertNotCalled(t, "ListClosedByOrganization", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkLiquidationPaid(t *testing.T) {
	f, svc := newLiquidationFixture()
	ctx := managerCtx()
	pending := &models.Liquidation{ID: 500, EmployeeID: 7, OrganizationID: 10, Status: models.LiquidationPending}
	paidAt := testNow
	paid := &models.Liquidation{ID: 500, EmployeeID: 7, OrganizationID: 10, Status: models.LiquidationPaid, PaidAt: &paidAt}

	f.liquidations.On("GetByID", ctx, mock.Anything, int64(500)).Return(pending, nil)
	f.liquidations.On("MarkPaid", ctx, mock.Anything, int64(500), testNow).Return(paid, nil)

	result, err := svc.MarkLiquidationPaid(ctx, 500)

	require.NoError(t, err)
	assert.Equal(t, models.LiquidationPaid, result.Status)
}

func TestMarkLiquidationPaid_AlreadyPaid(t *testing.T) {
	f, svc := newLiquidationFixture()
	ctx := managerCtx()

	f.liquidations.On("GetByID", ctx, mock.Anything, int64(500)).
		Return(&models.Liquidation{ID: 500, OrganizationID: 10, Status: models.LiquidationPending}, nil)
	f.liquidations.On("MarkPaid", ctx, mock.Anything, int64(500), testNow).Return(nil, repositories.ErrNotFound)

	_, err := svc.MarkLiquidationPaid(ctx, 500)

	assert.ErrorIs(t, err, ErrLiquidationAlreadyPaid)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestListLiquidations_RejectsUnknownStatus(t *testing.T) {
	_, svc := newLiquidationFixture()
	status := models.LiquidationStatus("void")

	_, err := svc.ListLiquidations(managerCtx(), 10, &status)

	assert.ErrorIs(t, err, ErrValidation)
}

func TestOrganizationsPending(t *testing.T) {
	f, svc := newLiquidationFixture()
	ctx := context.Background()
	f.shifts.On("OrganizationsWithClosedShifts", ctx, mock.Anything).Return([]int64{10, 11}, nil)

	ids, err := svc.OrganizationsPending(ctx)

	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids)
}
