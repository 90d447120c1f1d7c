package services

import (
	"context"
	"errors"
	"strings"

	"cashbox_backend/internal/authz"
	"cashbox_backend/internal/models"
	"cashbox_backend/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

// OpenSessionRequest DTO
type OpenSessionRequest struct {
	ShiftID       int64            `json:"shift_id" binding:"required"`
	OpeningAmount *decimal.Decimal `json:"opening_amount" binding:"required"`
}

// RecordMovementRequest DTO. A repeated RequestID returns the movement written
// by the first request instead of appending a duplicate.
type RecordMovementRequest struct {
	MovementType  models.MovementType   `json:"movement_type" binding:"required"`
	Amount        *decimal.Decimal      `json:"amount" binding:"required"`
	PaymentMethod *models.PaymentMethod `json:"payment_method"`
	Description   string                `json:"description" binding:"max=500"`
	RequestID     *uuid.UUID            `json:"request_id"`
}

// SessionBalance is the live balance of a session.
type SessionBalance struct {
	SessionID int64                `json:"session_id"`
	Status    models.SessionStatus `json:"status"`
	models.Balance
}

// --- CashboxService Interface ---
type CashboxService interface {
	OpenSession(ctx context.Context, req OpenSessionRequest) (*models.CashboxSession, error)
	GetStatus(ctx context.Context, employeeID int64) (*models.TerminalStatus, error)
	RecordMovement(ctx context.Context, sessionID int64, req RecordMovementRequest) (*models.CashMovement, error)
	ComputeBalance(ctx context.Context, sessionID int64) (*SessionBalance, error)
	GetSession(ctx context.Context, sessionID int64) (*models.CashboxSession, error)
	ListMovements(ctx context.Context, sessionID int64) ([]models.CashMovement, error)
}

// --- cashboxService Implementation ---
type cashboxService struct {
	employees repositories.EmployeeRepository
	shifts    repositories.ShiftRepository
	sessions  repositories.CashboxRepository
	movements repositories.MovementRepository
	deps      Dependencies
}

// NewCashboxService creates a new instance of CashboxService.
func NewCashboxService(
	employees repositories.EmployeeRepository,
	shifts repositories.ShiftRepository,
	sessions repositories.CashboxRepository,
	movements repositories.MovementRepository,
	deps Dependencies,
) CashboxService {
	return &cashboxService{employees: employees, shifts: shifts, sessions: sessions, movements: movements, deps: deps}
}

func (s *cashboxService) OpenSession(ctx context.Context, req OpenSessionRequest) (*models.CashboxSession, error) {
	if req.ShiftID <= 0 {
		return nil, validationError("shift_id is required")
	}
	opening, err := validateAmount("opening_amount", req.OpeningAmount, true)
	if err != nil {
		return nil, err
	}

	var session *models.CashboxSession
	err = s.deps.inTx(ctx, func(exec repositories.SQLExecutor) error {
		shift, err := s.shifts.GetForUpdate(ctx, exec, req.ShiftID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrShiftNotFound
			}
			return storeError(err, "failed to lock shift")
		}
		if err := s.deps.authorize(ctx, authz.ActionSessionOpen, shift.OrganizationID, shift.EmployeeID); err != nil {
			return err
		}
		if shift.Status != models.ShiftOpen {
			return ErrShiftNotOpen
		}

		session = &models.CashboxSession{
			ShiftID:        shift.ID,
			EmployeeID:     shift.EmployeeID,
			OrganizationID: shift.OrganizationID,
			OpeningAmount:  opening,
			Status:         models.SessionOpen,
			OpenedAt:       s.deps.now(),
		}
		if err := s.sessions.Create(ctx, exec, session); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return ErrSessionAlreadyOpen
			}
			return storeError(err, "failed to open cash drawer")
		}

		_, err = s.movements.Append(ctx, exec, &models.CashMovement{
			SessionID:      session.ID,
			EmployeeID:     shift.EmployeeID,
			OrganizationID: shift.OrganizationID,
			MovementType:   models.MovementOpening,
			Amount:         opening,
			Description:    "Opening float",
			RequestID:      uuid.New(),
			CreatedAt:      session.OpenedAt,
		})
		return storeError(err, "failed to record opening float")
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.MovementRecorded(string(models.MovementOpening))
	log.Info().Int64("session_id", session.ID).Int64("shift_id", session.ShiftID).
		Str("opening_amount", session.OpeningAmount.String()).Msg("Cash drawer opened")
	return session, nil
}

func (s *cashboxService) GetStatus(ctx context.Context, employeeID int64) (*models.TerminalStatus, error) {
	if employeeID <= 0 {
		return nil, validationError("employee_id is required")
	}
	if _, ok := authz.ActorFrom(ctx); !ok {
		return nil, ErrUnauthenticated
	}
	// The employee's own organization scopes both the check and the lookup.
	employee, err := withRetry(ctx, s.deps, "terminal_status_lookup", func() (*models.Employee, error) {
		e, err := s.employees.FindByID(ctx, s.deps.DB, employeeID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return e, storeError(err, "failed to load employee")
	})
	if err != nil {
		return nil, err
	}
	if err := s.deps.authorize(ctx, authz.ActionSessionStatus, employee.OrganizationID, employee.ID); err != nil {
		return nil, err
	}
	return withRetry(ctx, s.deps, "terminal_status", func() (*models.TerminalStatus, error) {
		status, err := s.sessions.GetTerminalStatus(ctx, s.deps.DB, employee.OrganizationID, employee.ID)
		return status, storeError(err, "failed to load terminal status")
	})
}

func (s *cashboxService) RecordMovement(ctx context.Context, sessionID int64, req RecordMovementRequest) (*models.CashMovement, error) {
	if !req.MovementType.Recordable() {
		return nil, validationError("movement_type must be one of SALE, REFUND, DEPOSIT, WITHDRAWAL")
	}
	amount, err := validateAmount("amount", req.Amount, false)
	if err != nil {
		return nil, err
	}
	if req.PaymentMethod != nil && !req.PaymentMethod.Valid() {
		return nil, validationError("payment_method must be one of CASH, CARD, TRANSFER")
	}
	if len(req.Description) > 500 {
		return nil, validationError("description must be at most 500 characters")
	}
	requestID := uuid.New()
	if req.RequestID != nil && *req.RequestID != uuid.Nil {
		requestID = *req.RequestID
	}

	// Safe to retry as a whole: the request id makes the append idempotent.
	movement, err := withRetry(ctx, s.deps, "record_movement", func() (*models.CashMovement, error) {
		var recorded *models.CashMovement
		err := s.deps.inTx(ctx, func(exec repositories.SQLExecutor) error {
			session, err := s.sessions.GetForShare(ctx, exec, sessionID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return ErrSessionNotFound
				}
				return storeError(err, "failed to load cash drawer")
			}
			if err := s.deps.authorize(ctx, authz.ActionMovementRecord, session.OrganizationID, session.EmployeeID); err != nil {
				return err
			}
			if session.Status != models.SessionOpen {
				if req.RequestID == nil || *req.RequestID == uuid.Nil {
					return ErrSessionNotOpen
				}
				// A retry of a movement accepted before the close still gets its answer.
				recorded, err = s.movements.FindByRequestID(ctx, exec, session.ID, requestID)
				if errors.Is(err, repositories.ErrNotFound) {
					return ErrSessionNotOpen
				}
				return storeError(err, "failed to look up movement")
			}
			recorded, err = s.movements.Append(ctx, exec, &models.CashMovement{
				SessionID:      session.ID,
				EmployeeID:     actingEmployee(ctx, session.EmployeeID),
				OrganizationID: session.OrganizationID,
				MovementType:   req.MovementType,
				Amount:         amount,
				PaymentMethod:  req.PaymentMethod,
				Description:    strings.TrimSpace(req.Description),
				RequestID:      requestID,
				CreatedAt:      s.deps.now(),
			})
			return storeError(err, "failed to record movement")
		})
		return recorded, err
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.MovementRecorded(string(movement.MovementType))
	log.Debug().Int64("session_id", sessionID).Int64("movement_id", movement.ID).
		Str("type", string(movement.MovementType)).Str("amount", movement.Amount.String()).
		Msg("Cash movement recorded")
	return movement, nil
}

func (s *cashboxService) ComputeBalance(ctx context.Context, sessionID int64) (*SessionBalance, error) {
	session, err := s.loadSession(ctx, sessionID, authz.ActionBalanceView)
	if err != nil {
		return nil, err
	}
	balance, err := withRetry(ctx, s.deps, "compute_balance", func() (models.Balance, error) {
		b, err := s.movements.Totals(ctx, s.deps.DB, sessionID)
		return b, storeError(err, "failed to compute balance")
	})
	if err != nil {
		return nil, err
	}
	return &SessionBalance{SessionID: session.ID, Status: session.Status, Balance: balance}, nil
}

func (s *cashboxService) GetSession(ctx context.Context, sessionID int64) (*models.CashboxSession, error) {
	return s.loadSession(ctx, sessionID, authz.ActionSessionView)
}

func (s *cashboxService) ListMovements(ctx context.Context, sessionID int64) ([]models.CashMovement, error) {
	if _, err := s.loadSession(ctx, sessionID, authz.ActionMovementList); err != nil {
		return nil, err
	}
	movements, err := withRetry(ctx, s.deps, "list_movements", func() ([]models.CashMovement, error) {
		m, err := s.movements.ListBySession(ctx, s.deps.DB, sessionID)
		return m, storeError(err, "failed to list movements")
	})
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []models.CashMovement{}
	}
	return movements, nil
}

func (s *cashboxService) loadSession(ctx context.Context, sessionID int64, action string) (*models.CashboxSession, error) {
	session, err := withRetry(ctx, s.deps, "get_session", func() (*models.CashboxSession, error) {
		sess, err := s.sessions.GetByID(ctx, s.deps.DB, sessionID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return sess, storeError(err, "failed to load cash drawer")
	})
	if err != nil {
		return nil, err
	}
	if err := s.deps.authorizeSession(ctx, action, session); err != nil {
		return nil, err
	}
	return session, nil
}
