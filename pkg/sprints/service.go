// Package sprints manages the sprints of a project: numbering, validation
// and the deletion policy for the tasks a sprint still holds.
package sprints

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/taskhub/pkg/activity"
	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/store"
	"github.com/platinummonkey/taskhub/pkg/tasks"
)

// Service manages sprints
type Service struct {
	db      *sql.DB
	events  activity.Emitter
	metrics *observability.Metrics
}

// NewService creates a sprint service. events and metrics may be nil.
func NewService(db *sql.DB, events activity.Emitter, metrics *observability.Metrics) *Service {
	return &Service{
		db:      db,
		events:  activity.OrDiscard(events),
		metrics: metrics,
	}
}

const sprintColumns = `id, project_id, workspace_id, name, sprint_number, description, start_date, end_date,
	capacity, status, created_by, created_at, updated_at`

// GetNextSprintNumber suggests the number for the next sprint of a project:
// one past the highest existing number, or 1. The suggestion reserves
// nothing; the (project, number) unique constraint decides concurrent
// creates.
func (s *Service) GetNextSprintNumber(ctx context.Context, workspaceID, projectID string) (int, error) {
	if err := tasks.RequireProjectInWorkspace(ctx, s.db, workspaceID, projectID); err != nil {
		return 0, err
	}
	return nextSprintNumber(ctx, s.db, projectID)
}

func nextSprintNumber(ctx context.Context, q store.Querier, projectID string) (int, error) {
	var highest sql.NullInt64
	err := q.QueryRowContext(ctx, "SELECT MAX(sprint_number) FROM sprints WHERE project_id = $1", projectID).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("failed to get highest sprint number: %w", err)
	}
	if !highest.Valid {
		return 1, nil
	}
	return int(highest.Int64) + 1, nil
}

// Create adds a sprint to a project
func (s *Service) Create(ctx context.Context, actorID, workspaceID, projectID string, in CreateInput) (*Sprint, error) {
	if in.Capacity == 0 {
		in.Capacity = DefaultCapacity
	}
	if in.Status == "" {
		in.Status = StatusPlanned
	}

	now := store.Now()
	sp := &Sprint{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		WorkspaceID:  workspaceID,
		Name:         strings.TrimSpace(in.Name),
		SprintNumber: in.SprintNumber,
		Description:  strings.TrimSpace(in.Description),
		StartDate:    utcPtr(in.StartDate),
		EndDate:      utcPtr(in.EndDate),
		Capacity:     in.Capacity,
		Status:       in.Status,
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tasks.RequireProjectInWorkspace(ctx, tx, workspaceID, projectID); err != nil {
			return err
		}
		if sp.SprintNumber == 0 {
			n, err := nextSprintNumber(ctx, tx, projectID)
			if err != nil {
				return err
			}
			sp.SprintNumber = n
		}
		if err := validate(sp); err != nil {
			return err
		}
		if err := requireFreeNumber(ctx, tx, projectID, sp.SprintNumber, ""); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO sprints (id, project_id, workspace_id, name, sprint_number, description,
				start_date, end_date, capacity, status, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, sp.ID, sp.ProjectID, sp.WorkspaceID, sp.Name, sp.SprintNumber, sp.Description,
			store.NullTime(sp.StartDate), store.NullTime(sp.EndDate), sp.Capacity, string(sp.Status),
			sp.CreatedBy, sp.CreatedAt, sp.UpdatedAt)
		return insertError(err, sp.SprintNumber)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOperation("sprint", "create")
	s.events.Publish(ctx, activity.Event{
		ActorID:     actorID,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		Type:        activity.TypeSprintCreate,
		Message:     fmt.Sprintf("created sprint %d %q", sp.SprintNumber, sp.Name),
		Meta:        map[string]any{"sprintId": sp.ID},
		Notify:      activity.NotifySprint,
	})
	return sp, nil
}

// Get returns a sprint of the project
func (s *Service) Get(ctx context.Context, workspaceID, projectID, sprintID string) (*Sprint, error) {
	if err := tasks.RequireProjectInWorkspace(ctx, s.db, workspaceID, projectID); err != nil {
		return nil, err
	}
	return getSprint(ctx, s.db, projectID, sprintID)
}

// List returns the sprints of a project matching f, in number order
func (s *Service) List(ctx context.Context, workspaceID, projectID string, f Filter, page store.Page) (*Page, error) {
	if err := tasks.RequireProjectInWorkspace(ctx, s.db, workspaceID, projectID); err != nil {
		return nil, err
	}

	var w store.Where
	w.Add("project_id = ?", projectID)
	statuses := make([]string, len(f.Statuses))
	for i, st := range f.Statuses {
		statuses[i] = string(st)
	}
	w.In("status", statuses)
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		pattern := store.ContainsPattern(kw)
		w.Add(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sprints "+w.String(), w.Args()...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count sprints: %w", err)
	}

	limit, args := w.Paged(page)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sprintColumns+" FROM sprints "+w.String()+" ORDER BY sprint_number ASC "+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sprints: %w", err)
	}
	defer rows.Close()

	sprints := []Sprint{}
	for rows.Next() {
		sp, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sprint: %w", err)
		}
		sprints = append(sprints, *sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Page{Sprints: sprints, Pagination: page.Paginate(total)}, nil
}

// Update changes a sprint. Validation runs on the values after the update.
func (s *Service) Update(ctx context.Context, actorID, workspaceID, projectID, sprintID string, in UpdateInput) (*Sprint, error) {
	var sp *Sprint
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tasks.RequireProjectInWorkspace(ctx, tx, workspaceID, projectID); err != nil {
			return err
		}
		var err error
		sp, err = getSprint(ctx, tx, projectID, sprintID)
		if err != nil {
			return err
		}

		renumbered := in.SprintNumber != nil && *in.SprintNumber != sp.SprintNumber
		applyUpdate(sp, in)
		if err := validate(sp); err != nil {
			return err
		}
		if renumbered {
			if err := requireFreeNumber(ctx, tx, projectID, sp.SprintNumber, sp.ID); err != nil {
				return err
			}
		}

		sp.UpdatedAt = store.Now()
		_, err = tx.ExecContext(ctx, `
			UPDATE sprints
			SET name = $1, sprint_number = $2, description = $3, start_date = $4, end_date = $5,
				capacity = $6, status = $7, updated_at = $8
			WHERE id = $9
		`, sp.Name, sp.SprintNumber, sp.Description, store.NullTime(sp.StartDate), store.NullTime(sp.EndDate),
			sp.Capacity, string(sp.Status), sp.UpdatedAt, sp.ID)
		return insertError(err, sp.SprintNumber)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOperation("sprint", "update")
	s.events.Publish(ctx, activity.Event{
		ActorID:     actorID,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		Type:        activity.TypeSprintUpdate,
		Message:     fmt.Sprintf("updated sprint %d %q", sp.SprintNumber, sp.Name),
		Meta:        map[string]any{"sprintId": sp.ID, "status": string(sp.Status)},
		Notify:      activity.NotifySprint,
	})
	return sp, nil
}

func applyUpdate(sp *Sprint, in UpdateInput) {
	if in.Name != nil {
		sp.Name = strings.TrimSpace(*in.Name)
	}
	if in.SprintNumber != nil {
		sp.SprintNumber = *in.SprintNumber
	}
	if in.Description != nil {
		sp.Description = strings.TrimSpace(*in.Description)
	}
	if in.StartDate != nil {
		sp.StartDate = utcPtr(in.StartDate)
	}
	if in.EndDate != nil {
		sp.EndDate = utcPtr(in.EndDate)
	}
	if in.Capacity != nil {
		sp.Capacity = *in.Capacity
	}
	if in.Status != nil {
		sp.Status = *in.Status
	}
}

// Delete removes a sprint. A sprint that still holds tasks needs a decision
// about them: deleteTasks true deletes them, false moves them out of the
// sprint, and nil is rejected with the number of tasks affected.
func (s *Service) Delete(ctx context.Context, actorID, workspaceID, projectID, sprintID string, deleteTasks *bool) (*DeleteResult, error) {
	var sp *Sprint
	result := &DeleteResult{}
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tasks.RequireProjectInWorkspace(ctx, tx, workspaceID, projectID); err != nil {
			return err
		}
		var err error
		sp, err = getSprint(ctx, tx, projectID, sprintID)
		if err != nil {
			return err
		}

		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE sprint_id = $1 AND project_id = $2",
			sprintID, projectID).Scan(&result.TaskCount); err != nil {
			return fmt.Errorf("failed to count sprint tasks: %w", err)
		}

		switch {
		case result.TaskCount == 0:
		case deleteTasks == nil:
			return apperrors.BadRequest(fmt.Sprintf(
				"This sprint has %d associated task(s). Please specify whether to delete them or unassign them from the sprint.",
				result.TaskCount))
		case *deleteTasks:
			result.TasksDeleted = true
			_, err := tx.ExecContext(ctx,
				"DELETE FROM comments WHERE task_id IN (SELECT id FROM tasks WHERE sprint_id = $1 AND project_id = $2)",
				sprintID, projectID)
			if err != nil {
				return fmt.Errorf("failed to delete comments: %w", err)
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE sprint_id = $1 AND project_id = $2", sprintID, projectID); err != nil {
				return fmt.Errorf("failed to delete sprint tasks: %w", err)
			}
		default:
			_, err := tx.ExecContext(ctx, "UPDATE tasks SET sprint_id = NULL, updated_at = $1 WHERE sprint_id = $2 AND project_id = $3",
				store.Now(), sprintID, projectID)
			if err != nil {
				return fmt.Errorf("failed to unassign sprint tasks: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM sprints WHERE id = $1 AND project_id = $2", sprintID, projectID); err != nil {
			return fmt.Errorf("failed to delete sprint: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Message = "Sprint deleted successfully."
	if result.TaskCount > 0 {
		verb := "unassigned"
		if result.TasksDeleted {
			verb = "deleted"
		}
		result.Message = fmt.Sprintf("Sprint deleted successfully. %d task(s) %s.", result.TaskCount, verb)
	}

	s.metrics.RecordOperation("sprint", "delete")
	s.events.Publish(ctx, activity.Event{
		ActorID:     actorID,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		Type:        activity.TypeSprintDelete,
		Message:     fmt.Sprintf("deleted sprint %d %q", sp.SprintNumber, sp.Name),
		Meta:        map[string]any{"sprintId": sp.ID, "taskCount": result.TaskCount, "tasksDeleted": result.TasksDeleted},
		Notify:      activity.NotifySprint,
	})
	return result, nil
}

func getSprint(ctx context.Context, q store.Querier, projectID, sprintID string) (*Sprint, error) {
	sp, err := scanSprint(q.QueryRowContext(ctx,
		"SELECT "+sprintColumns+" FROM sprints WHERE id = $1 AND project_id = $2", sprintID, projectID))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("Sprint not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sprint: %w", err)
	}
	return sp, nil
}

func requireFreeNumber(ctx context.Context, q store.Querier, projectID string, number int, exceptID string) error {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM sprints WHERE project_id = $1 AND sprint_number = $2 AND id <> $3",
		projectID, number, exceptID).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to check sprint number: %w", err)
	}
	if n > 0 {
		return apperrors.BadRequest(fmt.Sprintf("Sprint number %d already exists in this project", number))
	}
	return nil
}

// insertError maps a lost race on the sprint number to Conflict
func insertError(err error, number int) error {
	if err == nil {
		return nil
	}
	if store.IsUniqueViolation(err) {
		return apperrors.Conflict(fmt.Sprintf("Sprint number %d was taken concurrently, please retry", number), err)
	}
	return fmt.Errorf("failed to write sprint: %w", err)
}

func validate(sp *Sprint) error {
	switch {
	case sp.Name == "":
		return apperrors.BadRequest("Sprint name is required")
	case len(sp.Name) > 255:
		return apperrors.BadRequest("Sprint name must be at most 255 characters")
	case sp.SprintNumber < 1:
		return apperrors.BadRequest("Sprint number must be at least 1")
	case sp.Capacity < 1 || sp.Capacity > MaxCapacity:
		return apperrors.BadRequest(fmt.Sprintf("Sprint capacity must be between 1 and %d", MaxCapacity))
	case !sp.Status.Valid():
		return apperrors.BadRequest(fmt.Sprintf("invalid sprint status: %s", sp.Status))
	case sp.StartDate != nil && sp.EndDate != nil && sp.EndDate.Before(*sp.StartDate):
		return apperrors.BadRequest("Sprint end date must be on or after the start date")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSprint(row rowScanner) (*Sprint, error) {
	sp := &Sprint{}
	var start, end sql.NullTime
	var status string
	err := row.Scan(&sp.ID, &sp.ProjectID, &sp.WorkspaceID, &sp.Name, &sp.SprintNumber, &sp.Description,
		&start, &end, &sp.Capacity, &status, &sp.CreatedBy, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sp.StartDate = store.TimePtr(start)
	sp.EndDate = store.TimePtr(end)
	sp.Status = Status(status)
	return sp, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
