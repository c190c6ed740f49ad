package workspaces

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/taskhub/pkg/activity"
	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/store"
	"github.com/platinummonkey/taskhub/pkg/tasks"
)

// Service implements the workspace lifecycle and the membership ledger
type Service struct {
	db      *sql.DB
	roles   RoleLister
	events  activity.Emitter
	metrics *observability.Metrics
}

// NewService creates a workspace service. events and metrics may be nil.
func NewService(db *sql.DB, roles RoleLister, events activity.Emitter, metrics *observability.Metrics) *Service {
	return &Service{
		db:      db,
		roles:   roles,
		events:  activity.OrDiscard(events),
		metrics: metrics,
	}
}

const workspaceColumns = "id, name, description, owner_id, invite_code, created_at, updated_at"

// Create creates a workspace owned by ownerID, gives the owner the OWNER
// membership and makes it their current workspace
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*Workspace, error) {
	if err := validateName(in.Name); err != nil {
		return nil, err
	}

	var ws *Workspace
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		ws, err = createInTx(ctx, tx, ownerID, in, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOperation("workspace", "create")
	s.events.Publish(ctx, activity.Event{
		ActorID:     ownerID,
		WorkspaceID: ws.ID,
		Type:        activity.TypeWorkspaceCreate,
		Message:     fmt.Sprintf("created workspace %q", ws.Name),
	})
	return ws, nil
}

// ProvisionDefault creates the first workspace of a user who logged in
// without one. It runs inside the caller's transaction and only sets the
// current-workspace pointer if it is still unset.
func (s *Service) ProvisionDefault(ctx context.Context, tx *sql.Tx, ownerID, name string) (string, error) {
	ws, err := createInTx(ctx, tx, ownerID, CreateInput{Name: name}, true)
	if err != nil {
		return "", err
	}
	s.metrics.RecordOperation("workspace", "provision")
	return ws.ID, nil
}

func createInTx(ctx context.Context, tx *sql.Tx, ownerID string, in CreateInput, onlyIfUnset bool) (*Workspace, error) {
	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE id = $1", ownerID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if exists == 0 {
		return nil, apperrors.NotFound("User not found")
	}

	ownerRoleID, err := roleID(ctx, tx, rbac.RoleOwner)
	if err != nil {
		return nil, err
	}

	code, err := generateInviteCode()
	if err != nil {
		return nil, err
	}

	now := store.Now()
	ws := &Workspace{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		OwnerID:     ownerID,
		InviteCode:  code,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workspaces (`+workspaceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ws.ID, ws.Name, ws.Description, ws.OwnerID, ws.InviteCode, ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("invite code collision, please retry", err)
		}
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	if err := insertMember(ctx, tx, ownerID, ws.ID, ownerRoleID, now); err != nil {
		return nil, err
	}

	query := "UPDATE users SET current_workspace_id = $1, updated_at = $2 WHERE id = $3"
	if onlyIfUnset {
		query += " AND current_workspace_id IS NULL"
	}
	if _, err := tx.ExecContext(ctx, query, ws.ID, now, ownerID); err != nil {
		return nil, fmt.Errorf("failed to set current workspace: %w", err)
	}

	return ws, nil
}

// Get returns a workspace with its members
func (s *Service) Get(ctx context.Context, workspaceID string) (*Detail, error) {
	ws, err := getWorkspace(ctx, s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	members, err := s.listMembers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return &Detail{Workspace: ws, Members: members}, nil
}

// ListForUser returns the workspaces a user can see. Super administrators
// see every workspace.
func (s *Service) ListForUser(ctx context.Context, userID, globalRole string) ([]Workspace, error) {
	var rows *sql.Rows
	var err error
	if rbac.IsSuperAdmin(globalRole) {
		rows, err = s.db.QueryContext(ctx, "SELECT "+workspaceColumns+" FROM workspaces ORDER BY created_at ASC")
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT w.id, w.name, w.description, w.owner_id, w.invite_code, w.created_at, w.updated_at
			FROM workspaces w
			JOIN members m ON m.workspace_id = w.id
			WHERE m.user_id = $1
			ORDER BY m.joined_at ASC
		`, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	workspaces := []Workspace{}
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		workspaces = append(workspaces, *ws)
	}
	return workspaces, rows.Err()
}

// Update changes the non-empty fields of a workspace
func (s *Service) Update(ctx context.Context, actorID, workspaceID string, in UpdateInput) (*Workspace, error) {
	ws, err := getWorkspace(ctx, s.db, workspaceID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		if err := validateName(name); err != nil {
			return nil, err
		}
		ws.Name = name
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		ws.Description = desc
	}
	ws.UpdatedAt = store.Now()

	_, err = s.db.ExecContext(ctx,
		"UPDATE workspaces SET name = $1, description = $2, updated_at = $3 WHERE id = $4",
		ws.Name, ws.Description, ws.UpdatedAt, ws.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update workspace: %w", err)
	}

	s.metrics.RecordOperation("workspace", "update")
	s.events.Publish(ctx, activity.Event{
		ActorID:     actorID,
		WorkspaceID: ws.ID,
		Type:        activity.TypeWorkspaceUpdate,
		Message:     fmt.Sprintf("updated workspace %q", ws.Name),
		Notify:      activity.NotifyWorkspace,
	})
	return ws, nil
}

// ResetInviteCode replaces the workspace's invite code
func (s *Service) ResetInviteCode(ctx context.Context, workspaceID string) (*Workspace, error) {
	ws, err := getWorkspace(ctx, s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	code, err := generateInviteCode()
	if err != nil {
		return nil, err
	}
	ws.InviteCode = code
	ws.UpdatedAt = store.Now()

	_, err = s.db.ExecContext(ctx, "UPDATE workspaces SET invite_code = $1, updated_at = $2 WHERE id = $3",
		ws.InviteCode, ws.UpdatedAt, ws.ID)
	if store.IsUniqueViolation(err) {
		return nil, apperrors.Conflict("invite code collision, please retry", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reset invite code: %w", err)
	}
	return ws, nil
}

// Delete removes a workspace and everything scoped to it. Only the owner may
// delete. Users whose current workspace was this one are repointed.
func (s *Service) Delete(ctx context.Context, workspaceID, requesterID string) error {
	var name string
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		ws, err := getWorkspace(ctx, tx, workspaceID)
		if err != nil {
			return err
		}
		if ws.OwnerID != requesterID {
			return apperrors.Unauthorized("You are not authorized to delete this workspace")
		}
		name = ws.Name

		cascade := []struct {
			what  string
			query string
		}{
			{"comments", "DELETE FROM comments WHERE task_id IN (SELECT id FROM tasks WHERE workspace_id = $1)"},
			{"tasks", "DELETE FROM tasks WHERE workspace_id = $1"},
			{"sprints", "DELETE FROM sprints WHERE workspace_id = $1"},
			{"projects", "DELETE FROM projects WHERE workspace_id = $1"},
			{"workers", "DELETE FROM workers WHERE workspace_id = $1"},
			{"notifications", "DELETE FROM notifications WHERE workspace_id = $1"},
			{"activities", "DELETE FROM activities WHERE workspace_id = $1"},
			{"members", "DELETE FROM members WHERE workspace_id = $1"},
			{"workspace", "DELETE FROM workspaces WHERE id = $1"},
		}
		for _, step := range cascade {
			if _, err := tx.ExecContext(ctx, step.query, workspaceID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", step.what, err)
			}
		}

		return repointUsers(ctx, tx, workspaceID, "")
	})
	if err != nil {
		return err
	}

	s.metrics.RecordOperation("workspace", "delete")
	s.events.Publish(ctx, activity.Event{
		ActorID: requesterID,
		Type:    activity.TypeWorkspaceDelete,
		Message: fmt.Sprintf("deleted workspace %q", name),
		Meta:    map[string]any{"workspaceId": workspaceID},
	})
	return nil
}

// repointUsers moves every user whose current workspace is workspaceID to the
// workspace of their earliest remaining membership, or clears the pointer.
// A non-empty userID limits the repoint to that user. Memberships in
// workspaceID must already be gone.
func repointUsers(ctx context.Context, tx *sql.Tx, workspaceID, userID string) error {
	query := "SELECT id FROM users WHERE current_workspace_id = $1"
	args := []any{workspaceID}
	if userID != "" {
		query += " AND id = $2"
		args = append(args, userID)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to find affected users: %w", err)
	}
	var affected []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan user: %w", err)
		}
		affected = append(affected, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to find affected users: %w", err)
	}

	now := store.Now()
	for _, id := range affected {
		var next sql.NullString
		err := tx.QueryRowContext(ctx, `
			SELECT workspace_id FROM members
			WHERE user_id = $1 AND workspace_id <> $2
			ORDER BY joined_at ASC
			LIMIT 1
		`, id, workspaceID).Scan(&next)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to find next workspace: %w", err)
		}

		_, err = tx.ExecContext(ctx, "UPDATE users SET current_workspace_id = $1, updated_at = $2 WHERE id = $3",
			next, now, id)
		if err != nil {
			return fmt.Errorf("failed to repoint current workspace: %w", err)
		}
	}
	return nil
}

// Analytics returns the task counts of the whole workspace
func (s *Service) Analytics(ctx context.Context, workspaceID string) (*tasks.Summary, error) {
	if _, err := getWorkspace(ctx, s.db, workspaceID); err != nil {
		return nil, err
	}
	return tasks.Summarize(ctx, s.db, tasks.InWorkspace(workspaceID))
}

func getWorkspace(ctx context.Context, q store.Querier, id string) (*Workspace, error) {
	ws, err := scanWorkspace(q.QueryRowContext(ctx, "SELECT "+workspaceColumns+" FROM workspaces WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("Workspace not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row rowScanner) (*Workspace, error) {
	ws := &Workspace{}
	err := row.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &ws.InviteCode, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.BadRequest("Workspace name is required")
	}
	if len(name) > 255 {
		return apperrors.BadRequest("Workspace name must be at most 255 characters")
	}
	return nil
}

// generateInviteCode returns a random 10 character hex code
func generateInviteCode() (string, error) {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	return hex.EncodeToString(b), nil
}
