package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/observability"
)

// Evaluator answers the two access-control questions every operation asks:
// which role does this user hold here, and does that role allow the action.
type Evaluator struct {
	db      *sql.DB
	table   Table
	metrics *observability.Metrics
}

// NewEvaluator creates an evaluator. metrics may be nil.
func NewEvaluator(db *sql.DB, table Table, metrics *observability.Metrics) *Evaluator {
	return &Evaluator{db: db, table: table, metrics: metrics}
}

// Table returns the role table used for permission lookups
func (e *Evaluator) Table() Table {
	return e.table
}

// ResolveRole returns the caller's effective role in a workspace.
//
// A user whose global role is SUPER_ADMIN resolves to SUPER_ADMIN in every
// workspace, including ones they are not a member of. A missing user is not
// an error here; the membership lookup decides.
func (e *Evaluator) ResolveRole(ctx context.Context, userID, workspaceID string) (RoleName, error) {
	var globalRole string
	err := e.db.QueryRowContext(ctx, "SELECT global_role FROM users WHERE id = $1", userID).Scan(&globalRole)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if IsSuperAdmin(globalRole) {
		e.metrics.RecordAccessDecision("super_admin")
		return RoleSuperAdmin, nil
	}

	var exists int
	err = e.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workspaces WHERE id = $1", workspaceID).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("failed to check workspace: %w", err)
	}
	if exists == 0 {
		return "", apperrors.NotFound("Workspace not found")
	}

	var roleName string
	err = e.db.QueryRowContext(ctx, `
		SELECT r.name
		FROM members m
		JOIN roles r ON r.id = m.role_id
		WHERE m.user_id = $1 AND m.workspace_id = $2
	`, userID, workspaceID).Scan(&roleName)
	if err == sql.ErrNoRows {
		e.metrics.RecordAccessDecision("not_member")
		return "", apperrors.Unauthorized("You are not a member of this workspace")
	}
	if err != nil {
		return "", fmt.Errorf("failed to get membership: %w", err)
	}

	return RoleName(roleName), nil
}

// RequirePermission succeeds when role grants at least one of required.
// An empty required list always fails. A role missing from the table fails
// with NotFound.
func (e *Evaluator) RequirePermission(ctx context.Context, role RoleName, required ...Permission) error {
	if role == RoleSuperAdmin {
		e.metrics.RecordAccessDecision("allowed")
		return nil
	}

	perms, err := e.table.PermissionsOf(ctx, role)
	if err != nil {
		if apperrors.IsNotFound(err) {
			e.metrics.RecordAccessDecision("denied")
		}
		return err
	}

	if !perms.HasAny(required...) {
		e.metrics.RecordAccessDecision("denied")
		observability.FromContext(ctx).
			WithField("role", string(role)).
			WithField("required", formatPermissions(required)).
			Debug("permission denied")
		return apperrors.Unauthorized("You do not have the necessary permissions to perform this action")
	}

	e.metrics.RecordAccessDecision("allowed")
	return nil
}

// Authorize resolves the caller's role and checks it in one step
func (e *Evaluator) Authorize(ctx context.Context, userID, workspaceID string, required ...Permission) (RoleName, error) {
	role, err := e.ResolveRole(ctx, userID, workspaceID)
	if err != nil {
		return "", err
	}
	if err := e.RequirePermission(ctx, role, required...); err != nil {
		return "", err
	}
	return role, nil
}
