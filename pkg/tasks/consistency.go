package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/store"
)

// openSprintEnd stands in for a sprint without an end date
var openSprintEnd = time.Date(2100, time.December, 31, 0, 0, 0, 0, time.UTC)

// Placement is where a task is being written: its workspace and project and
// the effective assignee, sprint and due date after the write
type Placement struct {
	WorkspaceID string
	ProjectID   string
	AssigneeID  *string
	SprintID    *string
	DueDate     *time.Time
}

// RequireProjectInWorkspace fails with NotFound unless the project exists and
// belongs to the workspace
func RequireProjectInWorkspace(ctx context.Context, q store.Querier, workspaceID, projectID string) error {
	var owner string
	err := q.QueryRowContext(ctx, "SELECT workspace_id FROM projects WHERE id = $1", projectID).Scan(&owner)
	if err == sql.ErrNoRows || (err == nil && owner != workspaceID) {
		return apperrors.NotFound("Project not found or does not belong to this workspace")
	}
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	return nil
}

// CheckPlacement applies the write-time rules for a task, in order:
//
//  1. the project belongs to the workspace
//  2. the assignee, if any, is a member of the workspace
//  3. the sprint, if set, belongs to the project
//  4. the due date, if both it and a sprint are set, lies inside the sprint
//
// A sprint that cannot be found skips rules 3 and 4. A missing start date counts as
// now and a missing end date as 2100-12-31.
func CheckPlacement(ctx context.Context, q store.Querier, p Placement) error {
	if err := RequireProjectInWorkspace(ctx, q, p.WorkspaceID, p.ProjectID); err != nil {
		return err
	}

	if p.AssigneeID != nil && *p.AssigneeID != "" {
		var n int
		err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM members WHERE user_id = $1 AND workspace_id = $2",
			*p.AssigneeID, p.WorkspaceID).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to check assignee membership: %w", err)
		}
		if n == 0 {
			return apperrors.BadRequest("Assigned user is not a member of this workspace")
		}
	}

	if p.SprintID == nil || *p.SprintID == "" {
		return nil
	}

	var sprintProject string
	var start, end sql.NullTime
	err := q.QueryRowContext(ctx, "SELECT project_id, start_date, end_date FROM sprints WHERE id = $1",
		*p.SprintID).Scan(&sprintProject, &start, &end)
	if err == sql.ErrNoRows {
		observability.FromContext(ctx).
			WithField("sprint_id", *p.SprintID).
			Debug("sprint not found, skipping sprint period check")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get sprint: %w", err)
	}
	if sprintProject != p.ProjectID {
		return apperrors.NotFound("Sprint not found or does not belong to this project")
	}
	if p.DueDate == nil {
		return nil
	}

	sprintStart := store.Now()
	if start.Valid {
		sprintStart = start.Time.UTC()
	}
	sprintEnd := openSprintEnd
	if end.Valid {
		sprintEnd = end.Time.UTC()
	}

	due := p.DueDate.UTC()
	if due.Before(sprintStart) || due.After(sprintEnd) {
		return apperrors.BadRequest(fmt.Sprintf("Task due date must be within the sprint period (%s - %s)",
			sprintStart.Format(time.DateOnly), sprintEnd.Format(time.DateOnly)))
	}
	return nil
}
