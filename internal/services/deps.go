package services

import (
	"context"
	"errors"
	"time"

	"cashbox_backend/internal/authz"
	"cashbox_backend/internal/events"
	"cashbox_backend/internal/metrics"
	"cashbox_backend/internal/models"
	"cashbox_backend/internal/repositories"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RetryPolicy bounds automatic retries of idempotent operations on ErrTransient.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
}

// Dependencies are shared by every cash-custody service.
type Dependencies struct {
	DB      repositories.SQLExecutor
	Tx      repositories.Transactor
	Authz   authz.Authorizer
	Events  events.Publisher
	Metrics *metrics.Metrics
	Retry   RetryPolicy
	Now     func() time.Time
}

func (d Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Dependencies) authorize(ctx context.Context, action string, organizationID, ownerID int64) error {
	return d.check(ctx, authz.Request{Action: action, OrganizationID: organizationID, OwnerID: ownerID})
}

// authorizeSession also hands the drawer status to the policy, which keeps some
// reads closed until the drawer is counted.
func (d Dependencies) authorizeSession(ctx context.Context, action string, session *models.CashboxSession) error {
	return d.check(ctx, authz.Request{
		Action:         action,
		OrganizationID: session.OrganizationID,
		OwnerID:        session.EmployeeID,
		Status:         string(session.Status),
	})
}

func (d Dependencies) check(ctx context.Context, req authz.Request) error {
	err := d.Authz.Authorize(ctx, req)
	if err == nil || errors.Is(err, authz.ErrForbidden) || errors.Is(err, authz.ErrUnauthenticated) {
		return err
	}
	return errors.Join(errors.New("authorization check failed"), err)
}

// inTx runs fn in one transaction. Begin and commit failures are lifted into the
// service error taxonomy like any other store error.
func (d Dependencies) inTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return storeError(d.Tx.WithinTx(ctx, fn), "transaction failed")
}

// publish hands an event downstream once the write it describes is committed.
// Failures are logged and counted; they never turn a committed write into an error.
func (d Dependencies) publish(ctx context.Context, event events.Event) {
	if d.Events == nil {
		return
	}
	if err := d.Events.Publish(context.WithoutCancel(ctx), event); err != nil {
		d.Metrics.EventPublishFailed()
		log.Error().Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID.String()).
			Int64("organization_id", event.OrganizationID).
			Msg("Failed to publish cashbox event")
	}
}

// actingEmployee is the employee recorded as the author of a write: the caller,
// or the resource owner when a system job acts.
func actingEmployee(ctx context.Context, owner int64) int64 {
	if actor, ok := authz.ActorFrom(ctx); ok && actor.EmployeeID != 0 {
		return actor.EmployeeID
	}
	return owner
}

// withRetry re-runs fn while it fails with ErrTransient. Only idempotent work goes through here.
func withRetry[T any](ctx context.Context, d Dependencies, operation string, fn func() (T, error)) (T, error) {
	tries := d.Retry.MaxTries
	if tries == 0 {
		tries = 1
	}
	b := backoff.NewExponentialBackOff()
	if d.Retry.InitialInterval > 0 {
		b.InitialInterval = d.Retry.InitialInterval
	}

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		if attempt > 1 {
			d.Metrics.Retried(operation)
		}
		v, err := fn()
		if err != nil && !errors.Is(err, ErrTransient) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
}

const maxAmount = 1_000_000_000_000 // NUMERIC(14,2) upper bound

// validateAmount checks a money input: non-negative (positive unless allowZero),
// at most 2 decimal places, and within storage range.
func validateAmount(field string, amount *decimal.Decimal, allowZero bool) (decimal.Decimal, error) {
	if amount == nil {
		return decimal.Zero, validationError("%s is required", field)
	}
	v := *amount
	switch {
	case v.IsNegative():
		return decimal.Zero, validationError("%s must not be negative", field)
	case v.IsZero() && !allowZero:
		return decimal.Zero, validationError("%s must be greater than zero", field)
	case !v.Equal(v.Truncate(2)):
		return decimal.Zero, validationError("%s must have at most 2 decimal places", field)
	case v.GreaterThanOrEqual(decimal.NewFromInt(maxAmount)):
		return decimal.Zero, validationError("%s is too large", field)
	}
	return v, nil
}

// reconcile is the comparison shared by partial audits and closing.
func reconcile(systemAmount, countedAmount decimal.Decimal) decimal.Decimal {
	return countedAmount.Sub(systemAmount)
}

func sessionEventPayload(report models.ZReport) map[string]interface{} {
	return map[string]interface{}{
		"session_id":     report.SessionID,
		"shift_id":       report.ShiftID,
		"employee_id":    report.EmployeeID,
		"system_amount":  report.SystemAmount,
		"counted_amount": report.CountedAmount,
		"difference":     report.Difference,
		"status":         report.Status,
		"force_closed":   report.ForceClosed,
	}
}
