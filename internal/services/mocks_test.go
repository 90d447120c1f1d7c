package services

import (
	"context"
	"time"

	"cashbox_backend/internal/authz"
	"cashbox_backend/internal/events"
	"cashbox_backend/internal/models"
	"cashbox_backend/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockEmployeeRepository is a mock implementation of EmployeeRepository for testing
type MockEmployeeRepository struct {
	mock.Mock
}

func (m *MockEmployeeRepository) FindByUsername(ctx context.Context, exec repositories.SQLExecutor, username string) (*models.Employee, error) {
	args := m.Called(ctx, exec, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Employee), args.Error(1)
}

func (m *MockEmployeeRepository) FindByID(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.Employee, error) {
	args := m.Called(ctx, exec, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Employee), args.Error(1)
}

// MockShiftRepository is a mock implementation of ShiftRepository for testing
type MockShiftRepository struct {
	mock.Mock
}

func (m *MockShiftRepository) Create(ctx context.Context, exec repositories.SQLExecutor, shift *models.Shift) error {
	args := m.Called(ctx, exec, shift)
	return args.Error(0)
}

func (m *MockShiftRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.Shift, error) {
	args := m.Called(ctx, exec, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shift), args.Error(1)
}

func (m *MockShiftRepository) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.Shift, error) {
	args := m.Called(ctx, exec, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shift), args.Error(1)
}

func (m *MockShiftRepository) Close(ctx context.Context, exec repositories.SQLExecutor, id int64, endedAt time.Time, pay models.ShiftPay) (*models.Shift, error) {
	args := m.Called(ctx, exec, id, endedAt, pay)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shift), args.Error(1)
}

func (m *MockShiftRepository) List(ctx context.Context, exec repositories.SQLExecutor, filter models.ShiftFilter) ([]models.Shift, int, error) {
	args := m.Called(ctx, exec, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Shift), args.Int(1), args.Error(2)
}

func (m *MockShiftRepository) ListClosedByOrganization(ctx context.Context, exec repositories.SQLExecutor, organizationID int64) ([]models.Shift, error) {
	args := m.Called(ctx, exec, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Shift), args.Error(1)
}

func (m *MockShiftRepository) ClaimForPayment(ctx context.Context, exec repositories.SQLExecutor, ids []int64) ([]models.Shift, error) {
	args := m.Called(ctx, exec, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Shift), args.Error(1)
}

func (m *MockShiftRepository) OrganizationsWithClosedShifts(ctx context.Context, exec repositories.SQLExecutor) ([]int64, error) {
	args := m.Called(ctx, exec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

// MockCashboxRepository is a mock implementation of CashboxRepository for testing
type MockCashboxRepository struct {
	mock.Mock
}

func (m *MockCashboxRepository) session(args mock.Arguments) (*models.CashboxSession, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CashboxSession), args.Error(1)
}

func (m *MockCashboxRepository) Create(ctx context.Context, exec repositories.SQLExecutor, session *models.CashboxSession) error {
	args := m.Called(ctx, exec, session)
	return args.Error(0)
}

func (m *MockCashboxRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.CashboxSession, error) {
	return m.session(m.Called(ctx, exec, id))
}

func (m *MockCashboxRepository) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.CashboxSession, error) {
	return m.session(m.Called(ctx, exec, id))
}

func (m *MockCashboxRepository) GetForShare(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.CashboxSession, error) {
	return m.session(m.Called(ctx, exec, id))
}

func (m *MockCashboxRepository) GetOpenByShiftForUpdate(ctx context.Context, exec repositories.SQLExecutor, shiftID int64) (*models.CashboxSession, error) {
	return m.session(m.Called(ctx, exec, shiftID))
}

func (m *MockCashboxRepository) Close(ctx context.Context, exec repositories.SQLExecutor, id int64, closing models.SessionClosing) (*models.CashboxSession, error) {
	return m.session(m.Called(ctx, exec, id, closing))
}

func (m *MockCashboxRepository) GetTerminalStatus(ctx context.Context, exec repositories.SQLExecutor, organizationID, employeeID int64) (*models.TerminalStatus, error) {
	args := m.Called(ctx, exec, organizationID, employeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TerminalStatus), args.Error(1)
}

// MockMovementRepository is a mock implementation of MovementRepository for testing
type MockMovementRepository struct {
	mock.Mock
}

func (m *MockMovementRepository) Append(ctx context.Context, exec repositories.SQLExecutor, movement *models.CashMovement) (*models.CashMovement, error) {
	args := m.Called(ctx, exec, movement)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CashMovement), args.Error(1)
}

func (m *MockMovementRepository) FindByRequestID(ctx context.Context, exec repositories.SQLExecutor, sessionID int64, requestID uuid.UUID) (*models.CashMovement, error) {
	args := m.Called(ctx, exec, sessionID, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CashMovement), args.Error(1)
}

func (m *MockMovementRepository) Totals(ctx context.Context, exec repositories.SQLExecutor, sessionID int64) (models.Balance, error) {
	args := m.Called(ctx, exec, sessionID)
	return args.Get(0).(models.Balance), args.Error(1)
}

func (m *MockMovementRepository) ListBySession(ctx context.Context, exec repositories.SQLExecutor, sessionID int64) ([]models.CashMovement, error) {
	args := m.Called(ctx, exec, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CashMovement), args.Error(1)
}

// MockAuditRepository is a mock implementation of AuditRepository for testing
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, exec repositories.SQLExecutor, checkpoint *models.AuditCheckpoint) error {
	args := m.Called(ctx, exec, checkpoint)
	return args.Error(0)
}

func (m *MockAuditRepository) ListBySession(ctx context.Context, exec repositories.SQLExecutor, sessionID int64) ([]models.AuditCheckpoint, error) {
	args := m.Called(ctx, exec, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AuditCheckpoint), args.Error(1)
}

// MockLiquidationRepository is a mock implementation of LiquidationRepository for testing
type MockLiquidationRepository struct {
	mock.Mock
}

func (m *MockLiquidationRepository) Create(ctx context.Context, exec repositories.SQLExecutor, liquidation *models.Liquidation) error {
	args := m.Called(ctx, exec, liquidation)
	return args.Error(0)
}

func (m *MockLiquidationRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.Liquidation, error) {
	args := m.Called(ctx, exec, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Liquidation), args.Error(1)
}

func (m *MockLiquidationRepository) List(ctx context.Context, exec repositories.SQLExecutor, organizationID int64, status *models.LiquidationStatus) ([]models.Liquidation, error) {
	args := m.Called(ctx, exec, organizationID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Liquidation), args.Error(1)
}

func (m *MockLiquidationRepository) MarkPaid(ctx context.Context, exec repositories.SQLExecutor, id int64, paidAt time.Time) (*models.Liquidation, error) {
	args := m.Called(ctx, exec, id, paidAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Liquidation), args.Error(1)
}

// fakeTx runs the unit of work directly, counting how many transactions were opened
// and how many committed.
type fakeTx struct {
	begun     int
	committed int
}

func (f *fakeTx) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	f.begun++
	if err := fn(nil); err != nil {
		return err
	}
	f.committed++
	return nil
}

// allowAll authorizes every request that carries an actor.
type allowAll struct {
	requests []authz.Request
}

func (a *allowAll) Authorize(ctx context.Context, req authz.Request) error {
	if _, ok := authz.ActorFrom(ctx); !ok {
		return authz.ErrUnauthenticated
	}
	a.requests = append(a.requests, req)
	return nil
}

// denyAll rejects everything.
type denyAll struct{}

func (denyAll) Authorize(context.Context, authz.Request) error { return authz.ErrForbidden }

// recordingPublisher keeps published events in memory.
type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var testNow = time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)

type testEnv struct {
	tx        *fakeTx
	authz     *allowAll
	publisher *recordingPublisher
	deps      Dependencies
}

func newTestEnv() *testEnv {
	env := &testEnv{tx: &fakeTx{}, authz: &allowAll{}, publisher: &recordingPublisher{}}
	env.deps = Dependencies{
		Tx:     env.tx,
		Authz:  env.authz,
		Events: env.publisher,
		Retry:  RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond},
		Now:    func() time.Time { return testNow },
	}
	return env
}

func managerCtx() context.Context {
	return authz.WithActor(context.Background(), authz.Actor{EmployeeID: 1, OrganizationID: 10, Role: models.RoleManager})
}

func cashierCtx(employeeID int64) context.Context {
	return authz.WithActor(context.Background(), authz.Actor{EmployeeID: employeeID, OrganizationID: 10, Role: models.RoleCashier})
}
