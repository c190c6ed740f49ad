// Package projects manages projects and their analytics.
package projects

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/taskhub/pkg/activity"
	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/prediction"
	"github.com/platinummonkey/taskhub/pkg/store"
	"github.com/platinummonkey/taskhub/pkg/tasks"
)

// maxWorkersPerTask is sent with every project prediction request
const maxWorkersPerTask = 3

// Predictor proposes staffing for a project
type Predictor interface {
	PredictProject(ctx context.Context, req prediction.ProjectRequest) (json.RawMessage, error)
}

// Service manages projects
type Service struct {
	db        *sql.DB
	predictor Predictor
	events    activity.Emitter
	metrics   *observability.Metrics
}

// NewService creates a project service. predictor, events and metrics may be nil.
func NewService(db *sql.DB, predictor Predictor, events activity.Emitter, metrics *observability.Metrics) *Service {
	return &Service{
		db:        db,
		predictor: predictor,
		events:    activity.OrDiscard(events),
		metrics:   metrics,
	}
}

const projectColumns = "id, workspace_id, name, emoji, description, created_by, created_at, updated_at"

// Create adds a project to a workspace
func (s *Service) Create(ctx context.Context, actorID, workspaceID string, in CreateInput) (*Project, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workspaces WHERE id = $1", workspaceID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	if exists == 0 {
		return nil, apperrors.NotFound("Workspace not found")
	}

	now := store.Now()
	p := &Project{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        name,
		Emoji:       strings.TrimSpace(in.Emoji),
		Description: strings.TrimSpace(in.Description),
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, workspace_id, name, emoji, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.WorkspaceID, p.Name, p.Emoji, p.Description, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.metrics.RecordOperation("project", "create")
	s.events.Publish(ctx, activity.Event{
		ActorID:     actorID,
		WorkspaceID: workspaceID,
		ProjectID:   p.ID,
		Type:        activity.TypeProjectCreate,
		Message:     fmt.Sprintf("created project %q", p.Name),
		Notify:      activity.NotifyProject,
	})
	return p, nil
}

// Get returns a project of the workspace
func (s *Service) Get(ctx context.Context, workspaceID, projectID string) (*Project, error) {
	return getProject(ctx, s.db, workspaceID, projectID)
}

// List returns the projects of a workspace, newest first
func (s *Service) List(ctx context.Context, workspaceID string, page store.Page) (*Page, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE workspace_id = $1", workspaceID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE workspace_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		workspaceID, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Page{Projects: projects, Pagination: page.Paginate(total)}, nil
}

// Update changes the non-empty fields of a project
func (s *Service) Update(ctx context.Context, actorID, workspaceID, projectID string, in UpdateInput) (*Project, error) {
	p, err := getProject(ctx, s.db, workspaceID, projectID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		if err := validateName(name); err != nil {
			return nil, err
		}
		p.Name = name
	}
	if emoji := strings.TrimSpace(in.Emoji); emoji != "" {
		p.Emoji = emoji
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		p.Description = desc
	}
	p.UpdatedAt = store.Now()

	_, err = s.db.ExecContext(ctx,
		"UPDATE projects SET name = $1, emoji = $2, description = $3, updated_at = $4 WHERE id = $5",
		p.Name, p.Emoji, p.Description, p.UpdatedAt, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.metrics.RecordOperation("project", "update")
	s.events.Publish(ctx, activity.Event{
		ActorID:     actorID,
		WorkspaceID: workspaceID,
		ProjectID:   p.ID,
		Type:        activity.TypeProjectUpdate,
		Message:     fmt.Sprintf("updated project %q", p.Name),
		Notify:      activity.NotifyProject,
	})
	return p, nil
}

// Delete removes a project together with its tasks, their comments and its
// sprints, in one transaction
func (s *Service) Delete(ctx context.Context, actorID, workspaceID, projectID string) error {
	var p *Project
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		p, err = getProject(ctx, tx, workspaceID, projectID)
		if err != nil {
			return err
		}

		steps := []struct {
			what  string
			query string
		}{
			{"comments", "DELETE FROM comments WHERE task_id IN (SELECT id FROM tasks WHERE project_id = $1)"},
			{"tasks", "DELETE FROM tasks WHERE project_id = $1"},
			{"sprints", "DELETE FROM sprints WHERE project_id = $1"},
			{"project", "DELETE FROM projects WHERE id = $1"},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, projectID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", step.what, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.RecordOperation("project", "delete")
	s.events.Publish(ctx, activity.Event{
		ActorID:     actorID,
		WorkspaceID: workspaceID,
		Type:        activity.TypeProjectDelete,
		Message:     fmt.Sprintf("deleted project %q", p.Name),
		Meta:        map[string]any{"projectId": p.ID},
		Notify:      activity.NotifyProject,
	})
	return nil
}

// Analytics summarizes a project's tasks and asks the prediction service
// for a staffing proposal at the same time. The proposal is best effort: when
// the service fails the summary is returned without it.
func (s *Service) Analytics(ctx context.Context, workspaceID, projectID string) (*Analytics, error) {
	p, err := getProject(ctx, s.db, workspaceID, projectID)
	if err != nil {
		return nil, err
	}

	out := &Analytics{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := tasks.Summarize(gctx, s.db, tasks.InProject(projectID))
		if err != nil {
			return err
		}
		out.Summary = *summary
		return nil
	})
	if s.predictor != nil {
		g.Go(func() error {
			out.AIAnalytics = s.predict(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) predict(ctx context.Context, p *Project) json.RawMessage {
	raw, err := s.predictor.PredictProject(ctx, prediction.ProjectRequest{
		ProjectTitle:       p.Name,
		ProjectDescription: p.Description,
		MaxWorkersPerTask:  maxWorkersPerTask,
		WorkspaceID:        p.WorkspaceID,
	})
	if errors.Is(err, prediction.ErrDisabled) {
		return nil
	}
	if err != nil {
		observability.FromContext(ctx).
			WithField("project_id", p.ID).
			WithError(err).
			Warn("project prediction failed, returning analytics without it")
		return nil
	}
	return raw
}

func getProject(ctx context.Context, q store.Querier, workspaceID, projectID string) (*Project, error) {
	p, err := scanProject(q.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = $1", projectID))
	if err == sql.ErrNoRows || (err == nil && p.WorkspaceID != workspaceID) {
		return nil, apperrors.NotFound("Project not found or does not belong to this workspace")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	p := &Project{}
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Emoji, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func validateName(name string) error {
	if name == "" {
		return apperrors.BadRequest("Project name is required")
	}
	if len(name) > 255 {
		return apperrors.BadRequest("Project name must be at most 255 characters")
	}
	return nil
}
