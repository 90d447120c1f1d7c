package authz

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.cashbox.authz.allow"

//go:embed policy.rego
var defaultPolicy string

// PolicyAuthorizer evaluates the cash-custody Rego policy in-process.
type PolicyAuthorizer struct {
	query rego.PreparedEvalQuery
}

// NewPolicyAuthorizer compiles the policy once. An empty policyFile selects the embedded policy.
func NewPolicyAuthorizer(ctx context.Context, policyFile string) (*PolicyAuthorizer, error) {
	source := defaultPolicy
	if policyFile != "" {
		raw, err := os.ReadFile(policyFile)
		if err != nil {
			return nil, fmt.Errorf("read policy %s: %w", policyFile, err)
		}
		source = string(raw)
	}

	query, err := rego.New(
		rego.Query(policyQuery),
		rego.Module("cashbox_authz.rego", source),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	return &PolicyAuthorizer{query: query}, nil
}

// Authorize checks the actor in ctx against req.
func (a *PolicyAuthorizer) Authorize(ctx context.Context, req Request) error {
	actor, ok := ActorFrom(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	input := map[string]interface{}{
		"action": req.Action,
		"actor": map[string]interface{}{
			"employee_id":     actor.EmployeeID,
			"organization_id": actor.OrganizationID,
			"role":            actor.Role,
		},
		"resource": map[string]interface{}{
			"organization_id": req.OrganizationID,
			"owner_id":        req.OwnerID,
			"status":          req.Status,
		},
	}

	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return fmt.Errorf("evaluate policy: %w", err)
	}
	if !rs.Allowed() {
		return fmt.Errorf("%w: %s by %s %d", ErrForbidden, req.Action, actor.Role, actor.EmployeeID)
	}
	return nil
}
