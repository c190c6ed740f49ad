// Package tasks owns tasks, their comments and prediction scores, and the
// write-time consistency rules that tie a task to its project, its assignee
// and its sprint.
package tasks

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/taskhub/pkg/activity"
	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/prediction"
	"github.com/platinummonkey/taskhub/pkg/store"
)

// Predictor scores a task from its text
type Predictor interface {
	PredictTask(ctx context.Context, taskText string) (*prediction.TaskPrediction, error)
}

// Service manages tasks
type Service struct {
	db        *sql.DB
	predictor Predictor
	events    activity.Emitter
	metrics   *observability.Metrics
}

// NewService creates a task service. predictor, events and metrics may be nil.
func NewService(db *sql.DB, predictor Predictor, events activity.Emitter, metrics *observability.Metrics) *Service {
	return &Service{
		db:        db,
		predictor: predictor,
		events:    activity.OrDiscard(events),
		metrics:   metrics,
	}
}

const taskColumns = `id, task_code, project_id, workspace_id, sprint_id, title, description, status, priority,
	assigned_to, created_by, due_date, ai_complexity, ai_risk, ai_priority, ai_prediction_date, created_at, updated_at`

// Create adds a task to a project after checking its placement
func (s *Service) Create(ctx context.Context, actorID, workspaceID, projectID string, in CreateInput) (*Task, error) {
	title := strings.TrimSpace(in.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = StatusTodo
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Status.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid status: %s", in.Status))
	}
	if !in.Priority.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid priority: %s", in.Priority))
	}

	code, err := generateTaskCode()
	if err != nil {
		return nil, err
	}

	now := store.Now()
	task := &Task{
		ID:          uuid.NewString(),
		TaskCode:    code,
		ProjectID:   projectID,
		WorkspaceID: workspaceID,
		SprintID:    emptyToNil(in.SprintID),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		Priority:    in.Priority,
		AssignedTo:  emptyToNil(in.AssignedTo),
		CreatedBy:   actorID,
		DueDate:     utcPtr(in.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := CheckPlacement(ctx, tx, Placement{
			WorkspaceID: workspaceID,
			ProjectID:   projectID,
			AssigneeID:  task.AssignedTo,
			SprintID:    task.SprintID,
			DueDate:     task.DueDate,
		})
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO tasks (id, task_code, project_id, workspace_id, sprint_id, title, description, status,
				priority, assigned_to, created_by, due_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, task.ID, task.TaskCode, task.ProjectID, task.WorkspaceID, store.NullString(task.SprintID),
			task.Title, task.Description, string(task.Status), string(task.Priority),
			store.NullString(task.AssignedTo), task.CreatedBy, store.NullTime(task.DueDate),
			task.CreatedAt, task.UpdatedAt)
		if store.IsUniqueViolation(err) {
			return apperrors.Conflict("task code collision, please retry", err)
		}
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOperation("task", "create")
	s.events.Publish(ctx, activity.Event{
		ActorID:     actorID,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		Type:        activity.TypeTaskCreate,
		Message:     fmt.Sprintf("created task %s %q", task.TaskCode, task.Title),
		Meta:        map[string]any{"taskId": task.ID},
		Notify:      activity.NotifyTask,
	})
	return task, nil
}

// Get returns a task of the project
func (s *Service) Get(ctx context.Context, workspaceID, projectID, taskID string) (*Task, error) {
	if err := RequireProjectInWorkspace(ctx, s.db, workspaceID, projectID); err != nil {
		return nil, err
	}
	return getTask(ctx, s.db, projectID, taskID)
}

// Update changes a task. The placement rules are checked against the values
// the task will have after the update.
func (s *Service) Update(ctx context.Context, actorID, workspaceID, projectID, taskID string, in UpdateInput) (*Task, error) {
	var task *Task
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := RequireProjectInWorkspace(ctx, tx, workspaceID, projectID); err != nil {
			return err
		}
		var err error
		task, err = getTask(ctx, tx, projectID, taskID)
		if err != nil {
			return err
		}

		if err := applyUpdate(task, in); err != nil {
			return err
		}

		err = CheckPlacement(ctx, tx, Placement{
			WorkspaceID: workspaceID,
			ProjectID:   projectID,
			AssigneeID:  task.AssignedTo,
			SprintID:    task.SprintID,
			DueDate:     task.DueDate,
		})
		if err != nil {
			return err
		}

		task.UpdatedAt = store.Now()
		_, err = tx.ExecContext(ctx, `
			UPDATE tasks
			SET title = $1, description = $2, status = $3, priority = $4, assigned_to = $5,
				due_date = $6, sprint_id = $7, updated_at = $8
			WHERE id = $9
		`, task.Title, task.Description, string(task.Status), string(task.Priority),
			store.NullString(task.AssignedTo), store.NullTime(task.DueDate), store.NullString(task.SprintID),
			task.UpdatedAt, task.ID)
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOperation("task", "update")
	s.events.Publish(ctx, activity.Event{
		ActorID:     actorID,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		Type:        activity.TypeTaskUpdate,
		Message:     fmt.Sprintf("updated task %s %q", task.TaskCode, task.Title),
		Meta:        map[string]any{"taskId": task.ID, "status": string(task.Status)},
		Notify:      activity.NotifyTask,
	})
	return task, nil
}

func applyUpdate(task *Task, in UpdateInput) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validateTitle(title); err != nil {
			return err
		}
		task.Title = title
	}
	if in.Description != nil {
		task.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return apperrors.BadRequest(fmt.Sprintf("invalid status: %s", *in.Status))
		}
		task.Status = *in.Status
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return apperrors.BadRequest(fmt.Sprintf("invalid priority: %s", *in.Priority))
		}
		task.Priority = *in.Priority
	}
	if in.AssignedTo != nil {
		task.AssignedTo = emptyToNil(in.AssignedTo)
	}
	if in.SprintID != nil {
		task.SprintID = emptyToNil(in.SprintID)
	}
	if in.ClearDueDate {
		task.DueDate = nil
	} else if in.DueDate != nil {
		task.DueDate = utcPtr(in.DueDate)
	}
	return nil
}

// Delete removes a task and its comments
func (s *Service) Delete(ctx context.Context, actorID, workspaceID, projectID, taskID string) error {
	var task *Task
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := RequireProjectInWorkspace(ctx, tx, workspaceID, projectID); err != nil {
			return err
		}
		var err error
		task, err = getTask(ctx, tx, projectID, taskID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM comments WHERE task_id = $1", taskID); err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", taskID); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.RecordOperation("task", "delete")
	s.events.Publish(ctx, activity.Event{
		ActorID:     actorID,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		Type:        activity.TypeTaskDelete,
		Message:     fmt.Sprintf("deleted task %s %q", task.TaskCode, task.Title),
		Notify:      activity.NotifyTask,
	})
	return nil
}

// List returns the tasks matching f, newest first
func (s *Service) List(ctx context.Context, f Filter, page store.Page) (*Page, error) {
	if f.ProjectID != "" {
		if err := RequireProjectInWorkspace(ctx, s.db, f.WorkspaceID, f.ProjectID); err != nil {
			return nil, err
		}
	}

	var w store.Where
	w.Add("workspace_id = ?", f.WorkspaceID)
	if f.ProjectID != "" {
		w.Add("project_id = ?", f.ProjectID)
	}
	w.In("status", stringsOf(f.Statuses))
	w.In("priority", stringsOf(f.Priorities))
	w.In("assigned_to", f.AssignedTo)
	if f.SprintID != "" {
		w.Add("sprint_id = ?", f.SprintID)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		pattern := store.ContainsPattern(kw)
		w.Add(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if f.DueDate != nil {
		day := f.DueDate.UTC().Truncate(24 * time.Hour)
		w.Add("due_date >= ? AND due_date < ?", day, day.Add(24*time.Hour))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks "+w.String(), w.Args()...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	limit, args := w.Paged(page)
	tasks, err := queryTasks(ctx, s.db,
		"SELECT "+taskColumns+" FROM tasks "+w.String()+" ORDER BY created_at DESC "+limit, args...)
	if err != nil {
		return nil, err
	}
	return &Page{Tasks: tasks, Pagination: page.Paginate(total)}, nil
}

// BySprint returns every task planned into a sprint of the project
func (s *Service) BySprint(ctx context.Context, workspaceID, projectID, sprintID string) ([]Task, error) {
	if err := RequireProjectInWorkspace(ctx, s.db, workspaceID, projectID); err != nil {
		return nil, err
	}
	return queryTasks(ctx, s.db,
		"SELECT "+taskColumns+" FROM tasks WHERE project_id = $1 AND sprint_id = $2 ORDER BY created_at ASC",
		projectID, sprintID)
}

func getTask(ctx context.Context, q store.Querier, projectID, taskID string) (*Task, error) {
	task, err := scanTask(q.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1 AND project_id = $2", taskID, projectID))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("Task not found or does not belong to the specified project")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func queryTasks(ctx context.Context, q store.Querier, query string, args ...any) ([]Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	t := &Task{}
	var sprintID, assignedTo sql.NullString
	var status, priority string
	var dueDate, predictedAt sql.NullTime
	var complexity, risk, aiPriority sql.NullFloat64
	err := row.Scan(&t.ID, &t.TaskCode, &t.ProjectID, &t.WorkspaceID, &sprintID, &t.Title, &t.Description,
		&status, &priority, &assignedTo, &t.CreatedBy, &dueDate, &complexity, &risk, &aiPriority,
		&predictedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.SprintID = store.StringPtr(sprintID)
	t.AssignedTo = store.StringPtr(assignedTo)
	t.Status = Status(status)
	t.Priority = Priority(priority)
	t.DueDate = store.TimePtr(dueDate)
	t.AIComplexity = floatPtr(complexity)
	t.AIRisk = floatPtr(risk)
	t.AIPriority = floatPtr(aiPriority)
	t.AIPredictionDate = store.TimePtr(predictedAt)
	return t, nil
}

func validateTitle(title string) error {
	if title == "" {
		return apperrors.BadRequest("Task title is required")
	}
	if len(title) > 255 {
		return apperrors.BadRequest("Task title must be at most 255 characters")
	}
	return nil
}

// generateTaskCode returns a code of the form task-xxxxxx
func generateTaskCode() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate task code: %w", err)
	}
	return "task-" + hex.EncodeToString(b), nil
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
