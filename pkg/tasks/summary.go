package tasks

import (
	"context"
	"fmt"

	"github.com/platinummonkey/taskhub/pkg/store"
)

// Summary holds the aggregate task counts shown on analytics pages
type Summary struct {
	TotalTasks     int `json:"totalTasks"`
	OverdueTasks   int `json:"overdueTasks"`
	CompletedTasks int `json:"completedTasks"`
}

// Scope selects the tasks a Summary covers
type Scope struct {
	column string
	id     string
}

// InWorkspace scopes a summary to every task of a workspace
func InWorkspace(workspaceID string) Scope { return Scope{column: "workspace_id", id: workspaceID} }

// InProject scopes a summary to the tasks of one project
func InProject(projectID string) Scope { return Scope{column: "project_id", id: projectID} }

// Summarize counts total, overdue and completed tasks in scope. A task is
// overdue when its due date has passed and it is not DONE.
func Summarize(ctx context.Context, q store.Querier, scope Scope) (*Summary, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN due_date < $1 AND status <> $2 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = $2 THEN 1 ELSE 0 END), 0)
		FROM tasks
		WHERE %s = $3
	`, scope.column)

	s := &Summary{}
	err := q.QueryRowContext(ctx, query, store.Now(), string(StatusDone), scope.id).
		Scan(&s.TotalTasks, &s.OverdueTasks, &s.CompletedTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize tasks: %w", err)
	}
	return s, nil
}
