package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"cashbox_backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shiftCols = []string{
	"id", "employee_id", "organization_id", "started_at", "ended_at", "total_hours", "total_payment",
	"status", "created_at", "updated_at",
}

func TestShiftCreate_SecondOpenShiftIsDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO shifts")).
		WithArgs(int64(7), int64(10), started, models.ShiftOpen).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "shifts_one_open_per_employee"})

	err := NewShiftRepository().Create(context.Background(), db, &models.Shift{EmployeeID: 7, OrganizationID: 10, StartedAt: started})

	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestShiftGetForUpdate_LocksRow(t *testing.T) {
	db, mock := newMockDB(t)
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM shifts WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows(shiftCols).
			AddRow(int64(100), int64(7), int64(10), started, nil, nil, nil, "OPEN", started, started))

	shift, err := NewShiftRepository().GetForUpdate(context.Background(), db, 100)

	require.NoError(t, err)
	assert.Equal(t, models.ShiftOpen, shift.Status)
	assert.Nil(t, shift.EndedAt)
	assert.Nil(t, shift.TotalPayment)
}

func TestShiftClaimForPayment_OnlyClosedRows(t *testing.T) {
	db, mock := newMockDB(t)
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	ended := started.Add(8 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ANY($2) AND status = $3")).
		WithArgs(models.ShiftPaid, pq.Array([]int64{100, 101}), models.ShiftClosed).
		WillReturnRows(sqlmock.NewRows(shiftCols).
			AddRow(int64(100), int64(7), int64(10), started, ended, "8.00", "40000", "PAID", started, ended))

	claimed, err := NewShiftRepository().ClaimForPayment(context.Background(), db, []int64{100, 101})

	require.NoError(t, err)
	require.Len(t, claimed, 1, "a shift claimed by a concurrent batch is not returned")
	assert.Equal(t, models.ShiftPaid, claimed[0].Status)
	assert.Equal(t, "40000", claimed[0].TotalPayment.String())
}

func TestShiftOrganizationsWithClosedShifts_TransientError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT organization_id FROM shifts")).
		WithArgs(models.ShiftClosed).
		WillReturnError(&pq.Error{Code: "57P01"})

	_, err := NewShiftRepository().OrganizationsWithClosedShifts(context.Background(), db)

	assert.ErrorIs(t, err, ErrTransient)
}
