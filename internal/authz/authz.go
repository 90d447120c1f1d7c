// Package authz carries the calling employee through request contexts and decides
// whether that employee may perform a cash-custody action on a resource.
package authz

import (
	"context"
	"errors"
)

var (
	// ErrUnauthenticated is returned when no actor is attached to the context.
	ErrUnauthenticated = errors.New("no authenticated employee in context")
	// ErrForbidden is returned when the policy denies the action.
	ErrForbidden = errors.New("action not permitted")
)

// Actions checked by the services.
const (
	ActionShiftStart      = "shift:start"
	ActionShiftEnd        = "shift:end"
	ActionShiftView       = "shift:view"
	ActionSessionOpen     = "session:open"
	ActionSessionStatus   = "session:status"
	ActionSessionView     = "session:view"
	ActionSessionClose    = "session:close"
	ActionMovementRecord  = "movement:record"
	ActionMovementList    = "movement:list"
	ActionBalanceView     = "balance:view"
	ActionAuditPartial    = "audit:partial"
	ActionAuditList       = "audit:list"
	ActionZReportView     = "zreport:view"
	ActionLiquidationRun  = "liquidation:run"
	ActionLiquidationView = "liquidation:view"
	ActionLiquidationPay  = "liquidation:pay"
)

// RoleSystem identifies background jobs acting on behalf of an organization.
const RoleSystem = "system"

// Actor is the authenticated caller.
type Actor struct {
	EmployeeID     int64  `json:"employee_id"`
	OrganizationID int64  `json:"organization_id"`
	Role           string `json:"role"`
}

// SystemActor returns the actor used by scheduled jobs.
func SystemActor(organizationID int64) Actor {
	return Actor{OrganizationID: organizationID, Role: RoleSystem}
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying the actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor carried by ctx.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// Request describes one capability check. OwnerID is the employee owning the
// resource, or 0 when the resource is organization-wide. Status is the
// resource's lifecycle state when it matters to the policy.
type Request struct {
	Action         string
	OrganizationID int64
	OwnerID        int64
	Status         string
}

// Authorizer is the single capability check each operation makes before touching state.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) error
}
