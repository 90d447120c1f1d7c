package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cashbox_backend/internal/authz"
	"cashbox_backend/internal/events"
	"cashbox_backend/internal/models"
	"cashbox_backend/internal/repositories"

	"github.com/rs/zerolog/log"
)

// --- LiquidationService Interface ---
type LiquidationService interface {
	RunLiquidation(ctx context.Context, organizationID int64) (*models.LiquidationRun, error)
	ListLiquidations(ctx context.Context, organizationID int64, status *models.LiquidationStatus) ([]models.Liquidation, error)
	GetLiquidation(ctx context.Context, id int64) (*models.Liquidation, error)
	MarkLiquidationPaid(ctx context.Context, id int64) (*models.Liquidation, error)
	// OrganizationsPending lists organizations holding CLOSED shifts. Used by the scheduled batch.
	OrganizationsPending(ctx context.Context) ([]int64, error)
}

// --- liquidationService Implementation ---
type liquidationService struct {
	shifts       repositories.ShiftRepository
	liquidations repositories.LiquidationRepository
	deps         Dependencies
}

// NewLiquidationService creates a new instance of LiquidationService.
func NewLiquidationService(
	shifts repositories.ShiftRepository,
	liquidations repositories.LiquidationRepository,
	deps Dependencies,
) LiquidationService {
	return &liquidationService{shifts: shifts, liquidations: liquidations, deps: deps}
}

// RunLiquidation turns every CLOSED shift of the organization into pending liquidations,
// one per employee. Each employee group commits on its own; a failing group is
// reported and the others continue.
func (s *liquidationService) RunLiquidation(ctx context.Context, organizationID int64) (*models.LiquidationRun, error) {
	if organizationID <= 0 {
		return nil, validationError("organization_id is required")
	}
	if err := s.deps.authorize(ctx, authz.ActionLiquidationRun, organizationID, 0); err != nil {
		return nil, err
	}

	closed, err := withRetry(ctx, s.deps, "closed_shifts", func() ([]models.Shift, error) {
		shifts, err := s.shifts.ListClosedByOrganization(ctx, s.deps.DB, organizationID)
		return shifts, storeError(err, "failed to load closed shifts")
	})
	if err != nil {
		return nil, err
	}

	groups := make(map[int64][]int64)
	for _, sh := range closed {
		groups[sh.EmployeeID] = append(groups[sh.EmployeeID], sh.ID)
	}
	employees := make([]int64, 0, len(groups))
	for id := range groups {
		employees = append(employees, id)
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i] < employees[j] })

	run := &models.LiquidationRun{
		OrganizationID: organizationID,
		Created:        []models.Liquidation{},
		Failed:         []models.LiquidationFailure{},
	}
	for _, employeeID := range employees {
		if err := ctx.Err(); err != nil {
			return run, storeError(err, "liquidation run interrupted")
		}

		liquidation, err := s.liquidateGroup(ctx, organizationID, employeeID, groups[employeeID])
		switch {
		case err != nil:
			s.deps.Metrics.LiquidationGroup("failed")
			log.Error().Err(err).Int64("organization_id", organizationID).Int64("employee_id", employeeID).
				Msg("Liquidation group failed")
			run.Failed = append(run.Failed, models.LiquidationFailure{EmployeeID: employeeID, Error: err.Error()})
		case liquidation == nil:
			s.deps.Metrics.LiquidationGroup("skipped")
			run.Skipped++
		default:
			s.deps.Metrics.LiquidationGroup("created")
			run.Created = append(run.Created, *liquidation)
			s.deps.publish(ctx, events.New(events.TypeLiquidation, organizationID, liquidation.CreatedAt, liquidation))
		}
	}

	log.Info().Int64("organization_id", organizationID).
		Int("created", len(run.Created)).Int("failed", len(run.Failed)).Int("skipped", run.Skipped).
		Msg("Liquidation run finished")
	return run, nil
}

// liquidateGroup claims the employee's shifts and writes their liquidation. It returns
// nil without error when a concurrent run already claimed every shift.
func (s *liquidationService) liquidateGroup(ctx context.Context, organizationID, employeeID int64, shiftIDs []int64) (*models.Liquidation, error) {
	var created *models.Liquidation
	err := s.deps.inTx(ctx, func(exec repositories.SQLExecutor) error {
		claimed, err := s.shifts.ClaimForPayment(ctx, exec, shiftIDs)
		if err != nil {
			return storeError(err, "failed to claim shifts")
		}
		if len(claimed) == 0 {
			return nil
		}
		liquidation := models.NewLiquidation(employeeID, organizationID, claimed)
		if err := s.liquidations.Create(ctx, exec, &liquidation); err != nil {
			return storeError(err, fmt.Sprintf("failed to create liquidation for employee %d", employeeID))
		}
		created = &liquidation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *liquidationService) ListLiquidations(ctx context.Context, organizationID int64, status *models.LiquidationStatus) ([]models.Liquidation, error) {
	if status != nil && *status != models.LiquidationPending && *status != models.LiquidationPaid {
		return nil, validationError("unknown liquidation status %q", *status)
	}
	if err := s.deps.authorize(ctx, authz.ActionLiquidationView, organizationID, 0); err != nil {
		return nil, err
	}
	liquidations, err := withRetry(ctx, s.deps, "list_liquidations", func() ([]models.Liquidation, error) {
		l, err := s.liquidations.List(ctx, s.deps.DB, organizationID, status)
		return l, storeError(err, "failed to list liquidations")
	})
	if err != nil {
		return nil, err
	}
	if liquidations == nil {
		liquidations = []models.Liquidation{}
	}
	return liquidations, nil
}

func (s *liquidationService) GetLiquidation(ctx context.Context, id int64) (*models.Liquidation, error) {
	liquidation, err := withRetry(ctx, s.deps, "get_liquidation", func() (*models.Liquidation, error) {
		l, err := s.liquidations.GetByID(ctx, s.deps.DB, id)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrLiquidationNotFound
		}
		return l, storeError(err, "failed to load liquidation")
	})
	if err != nil {
		return nil, err
	}
	if err := s.deps.authorize(ctx, authz.ActionLiquidationView, liquidation.OrganizationID, liquidation.EmployeeID); err != nil {
		return nil, err
	}
	return liquidation, nil
}

func (s *liquidationService) MarkLiquidationPaid(ctx context.Context, id int64) (*models.Liquidation, error) {
	current, err := s.GetLiquidation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.deps.authorize(ctx, authz.ActionLiquidationPay, current.OrganizationID, current.EmployeeID); err != nil {
		return nil, err
	}
	if current.Status == models.LiquidationPaid {
		return nil, ErrLiquidationAlreadyPaid
	}

	var paid *models.Liquidation
	err = s.deps.inTx(ctx, func(exec repositories.SQLExecutor) error {
		l, err := s.liquidations.MarkPaid(ctx, exec, id, s.deps.now())
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				// Paid by a concurrent confirmation between the read and the update.
				return ErrLiquidationAlreadyPaid
			}
			return storeError(err, "failed to mark liquidation paid")
		}
		paid = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("liquidation_id", paid.ID).Int64("employee_id", paid.EmployeeID).
		Str("total_amount", paid.TotalAmount.String()).Msg("Liquidation marked paid")
	return paid, nil
}

func (s *liquidationService) OrganizationsPending(ctx context.Context) ([]int64, error) {
	return withRetry(ctx, s.deps, "pending_organizations", func() ([]int64, error) {
		ids, err := s.shifts.OrganizationsWithClosedShifts(ctx, s.deps.DB)
		return ids, storeError(err, "failed to list organizations with closed shifts")
	})
}
