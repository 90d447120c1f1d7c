//go:build integration

package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"cashbox_backend/internal/authz"
	"cashbox_backend/internal/database"
	"cashbox_backend/internal/events"
	"cashbox_backend/internal/models"
	"cashbox_backend/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/services/...
func integrationServices(t *testing.T) (*Services, int64) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	require.NoError(t, database.RunMigrations(dsn, "up"))
	db, err := database.Open(ctx, dsn, 30)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `TRUNCATE liquidation_shifts, liquidations, audit_checkpoints, cash_movements,
		cashbox_sessions, shifts, employees RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	var employeeID int64
	err = db.QueryRowContext(ctx, `INSERT INTO employees (organization_id, full_name, username, password_hash, role)
		VALUES (10, 'Integration Cashier', $1, 'x', 'cashier') RETURNING id`,
		fmt.Sprintf("cashier-%d", time.Now().UnixNano())).Scan(&employeeID)
	require.NoError(t, err)

	authorizer, err := authz.NewPolicyAuthorizer(ctx, "")
	require.NoError(t, err)

	svc := New(Dependencies{
		DB:     db,
		Tx:     repositories.NewTransactor(db),
		Authz:  authorizer,
		Events: events.NewLogPublisher(),
		Retry:  RetryPolicy{MaxTries: 3, InitialInterval: 10 * time.Millisecond},
	}, Settings{
		JWTSecret:         "integration",
		TokenTTL:          time.Minute,
		ShiftEndPolicy:    ShiftEndReject,
		DefaultHourlyRate: decimal.NewFromInt(5000),
	})
	return svc, employeeID
}

func parallel(n int, fn func() error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = fn()
		}(i)
	}
	wg.Wait()
	return errs
}

func TestIntegration_ConcurrentStartShiftOpensOne(t *testing.T) {
	svc, employeeID := integrationServices(t)
	ctx := cashierCtx(employeeID)

	errs := parallel(10, func() error {
		_, err := svc.Shifts.StartShift(ctx, employeeID)
		return err
	})

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrShiftAlreadyOpen)
	}
	assert.Equal(t, 1, succeeded)
}

func TestIntegration_ConcurrentOpenSessionOpensOne(t *testing.T) {
	svc, employeeID := integrationServices(t)
	ctx := cashierCtx(employeeID)
	shift, err := svc.Shifts.StartShift(ctx, employeeID)
	require.NoError(t, err)

	errs := parallel(10, func() error {
		_, err := svc.Cashbox.OpenSession(ctx, OpenSessionRequest{ShiftID: shift.ID, OpeningAmount: amount(100000)})
		return err
	})

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSessionAlreadyOpen)
	}
	assert.Equal(t, 1, succeeded)
}

func TestIntegration_CloseSeesEveryCommittedMovement(t *testing.T) {
	svc, employeeID := integrationServices(t)
	ctx := cashierCtx(employeeID)
	shift, err := svc.Shifts.StartShift(ctx, employeeID)
	require.NoError(t, err)
	session, err := svc.Cashbox.OpenSession(ctx, OpenSessionRequest{ShiftID: shift.ID, OpeningAmount: amount(100000)})
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		recorded int64
		wg       sync.WaitGroup
		report   *models.ZReport
		closeErr error
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Cashbox.RecordMovement(ctx, session.ID, RecordMovementRequest{
				MovementType: models.MovementSale,
				Amount:       amount(1000),
			})
			if err == nil {
				mu.Lock()
				recorded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrSessionNotOpen) {
				t.Errorf("unexpected record error: %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		report, closeErr = svc.Reconciliation.CloseSession(ctx, session.ID, CountRequest{CountedAmount: amount(100000)})
	}()
	wg.Wait()

	require.NoError(t, closeErr)
	expected := decimal.NewFromInt(100000 + 1000*recorded)
	assert.True(t, report.SystemAmount.Equal(expected), "system %s, expected %s", report.SystemAmount, expected)

	movements, err := svc.Cashbox.ListMovements(authz.WithActor(context.Background(),
		authz.Actor{EmployeeID: 1, OrganizationID: 10, Role: models.RoleManager}), session.ID)
	require.NoError(t, err)
	assert.Len(t, movements, int(recorded)+1, "opening plus every committed sale")
	for _, m := range movements {
		assert.False(t, m.CreatedAt.IsZero(), "movement %d has no timestamp", m.ID)
		assert.Greater(t, m.CreatedAt.Year(), 2000, "movement %d stamped %s", m.ID, m.CreatedAt)
	}
}

func TestIntegration_TerminalStatusScopedToOrganization(t *testing.T) {
	svc, employeeID := integrationServices(t)
	_, err := svc.Shifts.StartShift(cashierCtx(employeeID), employeeID)
	require.NoError(t, err)

	own := authz.WithActor(context.Background(), authz.Actor{EmployeeID: 1, OrganizationID: 10, Role: models.RoleManager})
	status, err := svc.Cashbox.GetStatus(own, employeeID)
	require.NoError(t, err)
	assert.True(t, status.HasActiveShift)

	foreign := authz.WithActor(context.Background(), authz.Actor{EmployeeID: 1, OrganizationID: 20, Role: models.RoleManager})
	_, err = svc.Cashbox.GetStatus(foreign, employeeID)
	assert.ErrorIs(t, err, ErrForbidden)
}
