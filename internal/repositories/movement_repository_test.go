package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"cashbox_backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

// nonZeroTime matches a bound time.Time other than the zero value.
type nonZeroTime struct{}

func (nonZeroTime) Match(v driver.Value) bool {
	t, ok := v.(time.Time)
	return ok && !t.IsZero()
}

// sqlNull matches a NULL bind.
type sqlNull struct{}

func (sqlNull) Match(v driver.Value) bool { return v == nil }

var movementCols = []string{
	"id", "session_id", "employee_id", "organization_id", "movement_type", "amount",
	"payment_method", "description", "request_id", "created_at",
}

func movementRow(id int64, requestID uuid.UUID, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(movementCols).
		AddRow(id, int64(11), int64(7), int64(10), "SALE", "250", "CARD", "Table 4", requestID.String(), at)
}

func TestMovementAppend_BindsCreatedAt(t *testing.T) {
	db, mock := newMockDB(t)
	requestID := uuid.New()
	at := time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cash_movements")).
		WithArgs(int64(11), int64(7), int64(10), models.MovementSale, decimal.NewFromInt(250),
			"CARD", "Table 4", requestID, nonZeroTime{}).
		WillReturnRows(movementRow(5, requestID, at))

	card := models.PaymentCard
	stored, err := NewMovementRepository().Append(context.Background(), db, &models.CashMovement{
		SessionID: 11, EmployeeID: 7, OrganizationID: 10, MovementType: models.MovementSale,
		Amount: decimal.NewFromInt(250), PaymentMethod: &card, Description: "Table 4",
		RequestID: requestID, CreatedAt: at,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.ID)
	assert.True(t, stored.CreatedAt.Equal(at))
	assert.Equal(t, models.PaymentCard, *stored.PaymentMethod)
	assert.True(t, stored.Amount.Equal(decimal.NewFromInt(250)))
}

func TestMovementAppend_ZeroCreatedAtFallsBackToDatabaseClock(t *testing.T) {
	db, mock := newMockDB(t)
	requestID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("COALESCE($9, NOW())")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlNull{}, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlNull{}).
		WillReturnRows(movementRow(6, requestID, time.Now()))

	stored, err := NewMovementRepository().Append(context.Background(), db, &models.CashMovement{
		SessionID: 11, EmployeeID: 7, OrganizationID: 10, MovementType: models.MovementSale,
		Amount: decimal.NewFromInt(250), RequestID: requestID,
	})

	require.NoError(t, err)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestMovementAppend_ReplayReturnsStoredRow(t *testing.T) {
	db, mock := newMockDB(t)
	requestID := uuid.New()
	at := time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (session_id, request_id) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows(movementCols))
	mock.ExpectQuery(regexp.QuoteMeta("FROM cash_movements WHERE session_id = $1 AND request_id = $2")).
		WithArgs(int64(11), requestID).
		WillReturnRows(movementRow(5, requestID, at))

	stored, err := NewMovementRepository().Append(context.Background(), db, &models.CashMovement{
		SessionID: 11, EmployeeID: 7, OrganizationID: 10, MovementType: models.MovementSale,
		Amount: decimal.NewFromInt(250), RequestID: requestID, CreatedAt: time.Now(),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.ID)
	assert.True(t, stored.CreatedAt.Equal(at), "the first write wins")
}

func TestMovementAppend_ClassifiesDriverErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"serialization failure", &pq.Error{Code: "40001"}, ErrTransient},
		{"check violation", &pq.Error{Code: "23514"}, ErrDatabaseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cash_movements")).WillReturnError(tt.err)

			_, err := NewMovementRepository().Append(context.Background(), db, &models.CashMovement{
				SessionID: 11, MovementType: models.MovementSale, Amount: decimal.NewFromInt(1), RequestID: uuid.New(),
			})

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMovementFindByRequestID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	requestID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE session_id = $1 AND request_id = $2")).
		WithArgs(int64(11), requestID).
		WillReturnRows(sqlmock.NewRows(movementCols))

	_, err := NewMovementRepository().FindByRequestID(context.Background(), db, 11, requestID)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMovementTotals_BuildsBalance(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY movement_type")).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"movement_type", "sum"}).
			AddRow("OPENING", "100000").
			AddRow("SALE", "70000").
			AddRow("REFUND", "5000").
			AddRow("WITHDRAWAL", "20000"))

	balance, err := NewMovementRepository().Totals(context.Background(), db, 11)

	require.NoError(t, err)
	assert.True(t, balance.Refunds.Equal(decimal.NewFromInt(5000)))
	assert.True(t, balance.Total.Equal(decimal.NewFromInt(150000)), "refunds do not reduce cash, got %s", balance.Total)
}

func TestMovementListBySession_OrderedByCreation(t *testing.T) {
	db, mock := newMockDB(t)
	first, second := uuid.New(), uuid.New()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at, id")).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(movementCols).
			AddRow(int64(1), int64(11), int64(7), int64(10), "OPENING", "100000", nil, "Opening float", first.String(), at).
			AddRow(int64(2), int64(11), int64(7), int64(10), "SALE", "250", nil, "", second.String(), at.Add(time.Minute)))

	movements, err := NewMovementRepository().ListBySession(context.Background(), db, 11)

	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, models.MovementOpening, movements[0].MovementType)
	assert.Nil(t, movements[0].PaymentMethod)
	assert.Equal(t, second, movements[1].RequestID)
}

func TestMovementListBySession_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM cash_movements")).WillReturnRows(sqlmock.NewRows(movementCols))

	movements, err := NewMovementRepository().ListBySession(context.Background(), db, 11)

	require.NoError(t, err)
	assert.NotNil(t, movements)
	assert.Empty(t, movements)
}
