package services

import (
	"context"
	"errors"
	"time"

	"cashbox_backend/internal/authz"
	"cashbox_backend/internal/events"
	"cashbox_backend/internal/models"
	"cashbox_backend/internal/repositories"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ShiftEndPolicy decides what EndShift does when the shift still has an open cash drawer.
type ShiftEndPolicy string

const (
	// ShiftEndReject refuses to end the shift until the drawer is closed.
	ShiftEndReject ShiftEndPolicy = "reject"
	// ShiftEndCascade force-closes the drawer without a count and ends the shift.
	ShiftEndCascade ShiftEndPolicy = "cascade"
)

// --- DTOs ---

// StartShiftRequest DTO. EmployeeID defaults to the caller.
type StartShiftRequest struct {
	EmployeeID int64 `json:"employee_id"`
}

// EndShiftResult is the closed shift plus the Z-report of a drawer the close cascaded to.
type EndShiftResult struct {
	Shift              *models.Shift   `json:"shift"`
	ForceClosedSession *models.ZReport `json:"force_closed_session,omitempty"`
}

// ShiftListResponse is one page of shifts.
type ShiftListResponse struct {
	Shifts   []models.Shift `json:"shifts"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// --- ShiftService Interface ---
type ShiftService interface {
	StartShift(ctx context.Context, employeeID int64) (*models.Shift, error)
	EndShift(ctx context.Context, shiftID int64) (*EndShiftResult, error)
	GetShift(ctx context.Context, shiftID int64) (*models.Shift, error)
	ListShifts(ctx context.Context, filter models.ShiftFilter) (*ShiftListResponse, error)
}

// --- shiftService Implementation ---
type shiftService struct {
	employees   repositories.EmployeeRepository
	shifts      repositories.ShiftRepository
	sessions    repositories.CashboxRepository
	movements   repositories.MovementRepository
	deps        Dependencies
	endPolicy   ShiftEndPolicy
	defaultRate decimal.Decimal
}

// NewShiftService creates a new instance of ShiftService.
func NewShiftService(
	employees repositories.EmployeeRepository,
	shifts repositories.ShiftRepository,
	sessions repositories.CashboxRepository,
	movements repositories.MovementRepository,
	deps Dependencies,
	endPolicy ShiftEndPolicy,
	defaultRate decimal.Decimal,
) ShiftService {
	if endPolicy != ShiftEndCascade {
		endPolicy = ShiftEndReject
	}
	return &shiftService{
		employees:   employees,
		shifts:      shifts,
		sessions:    sessions,
		movements:   movements,
		deps:        deps,
		endPolicy:   endPolicy,
		defaultRate: defaultRate,
	}
}

func (s *shiftService) StartShift(ctx context.Context, employeeID int64) (*models.Shift, error) {
	if employeeID <= 0 {
		return nil, validationError("employee_id is required")
	}

	employee, err := withRetry(ctx, s.deps, "start_shift_lookup", func() (*models.Employee, error) {
		e, err := s.employees.FindByID(ctx, s.deps.DB, employeeID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return e, storeError(err, "failed to load employee")
	})
	if err != nil {
		return nil, err
	}
	if !employee.IsActive {
		return nil, ErrEmployeeNotFound
	}
	if err := s.deps.authorize(ctx, authz.ActionShiftStart, employee.OrganizationID, employee.ID); err != nil {
		return nil, err
	}

	shift := &models.Shift{
		EmployeeID:     employee.ID,
		OrganizationID: employee.OrganizationID,
		StartedAt:      s.deps.now(),
		Status:         models.ShiftOpen,
	}
	err = s.deps.inTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.shifts.Create(ctx, exec, shift); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return ErrShiftAlreadyOpen
			}
			return storeError(err, "failed to start shift")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("shift_id", shift.ID).Int64("employee_id", shift.EmployeeID).Msg("Shift started")
	return shift, nil
}

func (s *shiftService) EndShift(ctx context.Context, shiftID int64) (*EndShiftResult, error) {
	result := &EndShiftResult{}
	err := s.deps.inTx(ctx, func(exec repositories.SQLExecutor) error {
		shift, err := s.shifts.GetForUpdate(ctx, exec, shiftID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrOpenShiftNotFound
			}
			return storeError(err, "failed to lock shift")
		}
		if err := s.deps.authorize(ctx, authz.ActionShiftEnd, shift.OrganizationID, shift.EmployeeID); err != nil {
			return err
		}
		if shift.Status != models.ShiftOpen {
			return ErrOpenShiftNotFound
		}

		endedAt := s.deps.now()
		report, err := s.settleOpenSession(ctx, exec, shift.ID, endedAt)
		if err != nil {
			return err
		}
		result.ForceClosedSession = report

		rate, err := s.hourlyRate(ctx, exec, shift.EmployeeID)
		if err != nil {
			return err
		}
		closed, err := s.shifts.Close(ctx, exec, shift.ID, endedAt, models.ComputeShiftPay(shift.StartedAt, endedAt, rate))
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrOpenShiftNotFound
			}
			return storeError(err, "failed to close shift")
		}
		result.Shift = closed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report := result.ForceClosedSession; report != nil {
		s.deps.Metrics.SessionClosed("forced")
		log.Warn().Int64("session_id", report.SessionID).Int64("shift_id", report.ShiftID).
			Msg("Cash drawer force-closed by shift end")
		s.deps.publish(ctx, events.New(events.TypeSessionForceClose, report.OrganizationID, report.ClosedAt, sessionEventPayload(*report)))
	}
	log.Info().Int64("shift_id", result.Shift.ID).
		Str("hours", result.Shift.TotalHours.String()).
		Str("payment", result.Shift.TotalPayment.String()).
		Msg("Shift ended")
	return result, nil
}

// settleOpenSession applies the end policy to the shift's open drawer, if any.
func (s *shiftService) settleOpenSession(ctx context.Context, exec repositories.SQLExecutor, shiftID int64, closedAt time.Time) (*models.ZReport, error) {
	session, err := s.sessions.GetOpenByShiftForUpdate(ctx, exec, shiftID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err, "failed to check open cash drawer")
	}
	if s.endPolicy == ShiftEndReject {
		return nil, ErrShiftHasOpenSession
	}

	balance, err := s.movements.Totals(ctx, exec, session.ID)
	if err != nil {
		return nil, storeError(err, "failed to compute balance")
	}
	closed, err := s.sessions.Close(ctx, exec, session.ID, models.SessionClosing{
		ClosedAt: closedAt,
		System:   balance.Total,
		Forced:   true,
	})
	if err != nil {
		return nil, storeError(err, "failed to force-close cash drawer")
	}
	report := models.BuildZReport(*closed, balance)
	return &report, nil
}

func (s *shiftService) hourlyRate(ctx context.Context, exec repositories.SQLExecutor, employeeID int64) (decimal.Decimal, error) {
	employee, err := s.employees.FindByID(ctx, exec, employeeID)
	if errors.Is(err, repositories.ErrNotFound) {
		return s.defaultRate, nil
	}
	if err != nil {
		return decimal.Zero, storeError(err, "failed to load hourly rate")
	}
	if employee.HourlyRate != nil {
		return *employee.HourlyRate, nil
	}
	return s.defaultRate, nil
}

func (s *shiftService) GetShift(ctx context.Context, shiftID int64) (*models.Shift, error) {
	shift, err := withRetry(ctx, s.deps, "get_shift", func() (*models.Shift, error) {
		sh, err := s.shifts.GetByID(ctx, s.deps.DB, shiftID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrShiftNotFound
		}
		return sh, storeError(err, "failed to load shift")
	})
	if err != nil {
		return nil, err
	}
	if err := s.deps.authorize(ctx, authz.ActionShiftView, shift.OrganizationID, shift.EmployeeID); err != nil {
		return nil, err
	}
	return shift, nil
}

func (s *shiftService) ListShifts(ctx context.Context, filter models.ShiftFilter) (*ShiftListResponse, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, validationError("unknown shift status %q", *filter.Status)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	var owner int64
	if filter.EmployeeID != nil {
		owner = *filter.EmployeeID
	}
	if err := s.deps.authorize(ctx, authz.ActionShiftView, filter.OrganizationID, owner); err != nil {
		return nil, err
	}

	type page struct {
		shifts []models.Shift
		total  int
	}
	p, err := withRetry(ctx, s.deps, "list_shifts", func() (page, error) {
		shifts, total, err := s.shifts.List(ctx, s.deps.DB, filter)
		return page{shifts, total}, storeError(err, "failed to list shifts")
	})
	if err != nil {
		return nil, err
	}
	if p.shifts == nil {
		p.shifts = []models.Shift{}
	}
	return &ShiftListResponse{Shifts: p.shifts, Total: p.total, Page: filter.Page, PageSize: filter.PageSize}, nil
}
