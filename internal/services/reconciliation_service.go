package services

import (
	"context"
	"errors"
	"strings"

	"cashbox_backend/internal/authz"
	"cashbox_backend/internal/events"
	"cashbox_backend/internal/models"
	"cashbox_backend/internal/repositories"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CountRequest DTO. CountedAmount is the physical count taken by the denomination counter.
type CountRequest struct {
	CountedAmount *decimal.Decimal `json:"counted_amount" binding:"required"`
	Note          string           `json:"note" binding:"max=1000"`
}

// --- ReconciliationService Interface ---
type ReconciliationService interface {
	PartialAudit(ctx context.Context, sessionID int64, req CountRequest) (*models.AuditResult, error)
	CloseSession(ctx context.Context, sessionID int64, req CountRequest) (*models.ZReport, error)
	GetZReport(ctx context.Context, sessionID int64) (*models.ZReport, error)
	ListCheckpoints(ctx context.Context, sessionID int64) ([]models.AuditCheckpoint, error)
}

// --- reconciliationService Implementation ---
type reconciliationService struct {
	sessions  repositories.CashboxRepository
	movements repositories.MovementRepository
	audits    repositories.AuditRepository
	deps      Dependencies
}

// NewReconciliationService creates a new instance of ReconciliationService.
func NewReconciliationService(
	sessions repositories.CashboxRepository,
	movements repositories.MovementRepository,
	audits repositories.AuditRepository,
	deps Dependencies,
) ReconciliationService {
	return &reconciliationService{sessions: sessions, movements: movements, audits: audits, deps: deps}
}

func validateCount(req CountRequest) (decimal.Decimal, string, error) {
	counted, err := validateAmount("counted_amount", req.CountedAmount, true)
	if err != nil {
		return decimal.Zero, "", err
	}
	note := strings.TrimSpace(req.Note)
	if len(note) > 1000 {
		return decimal.Zero, "", validationError("note must be at most 1000 characters")
	}
	return counted, note, nil
}

func (s *reconciliationService) PartialAudit(ctx context.Context, sessionID int64, req CountRequest) (*models.AuditResult, error) {
	counted, note, err := validateCount(req)
	if err != nil {
		return nil, err
	}

	var result *models.AuditResult
	err = s.deps.inTx(ctx, func(exec repositories.SQLExecutor) error {
		session, err := s.sessions.GetForShare(ctx, exec, sessionID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrSessionNotFound
			}
			return storeError(err, "failed to load cash drawer")
		}
		if err := s.deps.authorize(ctx, authz.ActionAuditPartial, session.OrganizationID, session.EmployeeID); err != nil {
			return err
		}
		if session.Status != models.SessionOpen {
			return ErrSessionNotOpen
		}

		balance, err := s.movements.Totals(ctx, exec, session.ID)
		if err != nil {
			return storeError(err, "failed to compute balance")
		}
		difference := reconcile(balance.Total, counted)
		checkpoint := &models.AuditCheckpoint{
			SessionID:      session.ID,
			OrganizationID: session.OrganizationID,
			EmployeeID:     actingEmployee(ctx, session.EmployeeID),
			CountedAmount:  counted,
			SystemAmount:   balance.Total,
			Difference:     difference,
			Note:           note,
			CreatedAt:      s.deps.now(),
		}
		if err := s.audits.Create(ctx, exec, checkpoint); err != nil {
			return storeError(err, "failed to record audit checkpoint")
		}
		result = &models.AuditResult{
			Checkpoint:    *checkpoint,
			SystemAmount:  balance.Total,
			CountedAmount: counted,
			Difference:    difference,
			Status:        models.ReconciliationStatus(difference),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Difference.IsZero() {
		s.deps.Metrics.Discrepancy("audit")
		log.Warn().Int64("session_id", sessionID).
			Str("system_amount", result.SystemAmount.String()).
			Str("counted_amount", result.CountedAmount.String()).
			Str("difference", result.Difference.String()).
			Msg("Partial audit found a cash discrepancy")
		s.deps.publish(ctx, events.New(events.TypeDiscrepancy, result.Checkpoint.OrganizationID, result.Checkpoint.CreatedAt,
			map[string]interface{}{
				"stage":          "audit",
				"session_id":     sessionID,
				"checkpoint_id":  result.Checkpoint.ID,
				"auditor_id":     result.Checkpoint.EmployeeID,
				"system_amount":  result.SystemAmount,
				"counted_amount": result.CountedAmount,
				"difference":     result.Difference,
			}))
	}
	return result, nil
}

func (s *reconciliationService) CloseSession(ctx context.Context, sessionID int64, req CountRequest) (*models.ZReport, error) {
	counted, note, err := validateCount(req)
	if err != nil {
		return nil, err
	}

	var report models.ZReport
	err = s.deps.inTx(ctx, func(exec repositories.SQLExecutor) error {
		session, err := s.sessions.GetForUpdate(ctx, exec, sessionID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrSessionNotFound
			}
			return storeError(err, "failed to lock cash drawer")
		}
		if err := s.deps.authorize(ctx, authz.ActionSessionClose, session.OrganizationID, session.EmployeeID); err != nil {
			return err
		}
		if session.Status != models.SessionOpen {
			return ErrSessionNotOpen
		}

		// Totals read after the lock: every committed movement is in, none can follow.
		balance, err := s.movements.Totals(ctx, exec, session.ID)
		if err != nil {
			return storeError(err, "failed to compute balance")
		}
		difference := reconcile(balance.Total, counted)
		closing := models.SessionClosing{
			ClosedAt:   s.deps.now(),
			Counted:    &counted,
			System:     balance.Total,
			Difference: &difference,
		}
		if note != "" {
			closing.Note = &note
		}
		closed, err := s.sessions.Close(ctx, exec, session.ID, closing)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrSessionNotOpen
			}
			return storeError(err, "failed to close cash drawer")
		}
		report = models.BuildZReport(*closed, balance)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.SessionClosed(report.Status)
	event := log.Info()
	if report.Status == models.ReconciliationDiscrepancy {
		event = log.Warn()
	}
	event.Int64("session_id", report.SessionID).
		Str("system_amount", report.SystemAmount.String()).
		Str("counted_amount", report.CountedAmount.String()).
		Str("difference", report.Difference.String()).
		Str("status", report.Status).
		Msg("Cash drawer closed")

	payload := sessionEventPayload(report)
	s.deps.publish(ctx, events.New(events.TypeZReport, report.OrganizationID, report.ClosedAt, report))
	if report.Status == models.ReconciliationDiscrepancy {
		s.deps.Metrics.Discrepancy("close")
		payload["stage"] = "close"
		s.deps.publish(ctx, events.New(events.TypeDiscrepancy, report.OrganizationID, report.ClosedAt, payload))
	}
	return &report, nil
}

func (s *reconciliationService) GetZReport(ctx context.Context, sessionID int64) (*models.ZReport, error) {
	session, err := s.loadSession(ctx, sessionID, authz.ActionZReportView)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionClosed {
		return nil, ErrSessionStillOpen
	}
	balance, err := withRetry(ctx, s.deps, "zreport", func() (models.Balance, error) {
		b, err := s.movements.Totals(ctx, s.deps.DB, session.ID)
		return b, storeError(err, "failed to compute balance")
	})
	if err != nil {
		return nil, err
	}
	report := models.BuildZReport(*session, balance)
	return &report, nil
}

func (s *reconciliationService) ListCheckpoints(ctx context.Context, sessionID int64) ([]models.AuditCheckpoint, error) {
	if _, err := s.loadSession(ctx, sessionID, authz.ActionAuditList); err != nil {
		return nil, err
	}
	checkpoints, err := withRetry(ctx, s.deps, "list_checkpoints", func() ([]models.AuditCheckpoint, error) {
		c, err := s.audits.ListBySession(ctx, s.deps.DB, sessionID)
		return c, storeError(err, "failed to list audit checkpoints")
	})
	if err != nil {
		return nil, err
	}
	if checkpoints == nil {
		checkpoints = []models.AuditCheckpoint{}
	}
	return checkpoints, nil
}

func (s *reconciliationService) loadSession(ctx context.Context, sessionID int64, action string) (*models.CashboxSession, error) {
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
	if err := s.deps.authorize(ctx, action, session.OrganizationID, session.EmployeeID); err != nil {
		return nil, err
	}
	return session, nil
}
