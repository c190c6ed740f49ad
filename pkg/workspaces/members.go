package workspaces

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/taskhub/pkg/activity"
	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/store"
)

// ListMembers returns the members of a workspace and the role catalogue
func (s *Service) ListMembers(ctx context.Context, workspaceID string) (*MembersView, error) {
	if _, err := getWorkspace(ctx, s.db, workspaceID); err != nil {
		return nil, err
	}
	members, err := s.listMembers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	view := &MembersView{Members: members, Roles: []rbac.Role{}}
	if s.roles != nil {
		roles, err := s.roles.ListRoles(ctx)
		if err != nil {
			return nil, err
		}
		for _, role := range roles {
			if role.Name != rbac.RoleSuperAdmin {
				view.Roles = append(view.Roles, role)
			}
		}
	}
	return view, nil
}

func (s *Service) listMembers(ctx context.Context, workspaceID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.user_id, m.workspace_id, r.name, m.joined_at, u.name, u.email, u.profile_picture
		FROM members m
		JOIN roles r ON r.id = m.role_id
		JOIN users u ON u.id = m.user_id
		WHERE m.workspace_id = $1
		ORDER BY m.joined_at ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		var role string
		var picture sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.WorkspaceID, &role, &m.JoinedAt,
			&m.User.Name, &m.User.Email, &picture); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Role = rbac.RoleName(role)
		m.User.ProfilePicture = store.StringPtr(picture)
		members = append(members, m)
	}
	return members, rows.Err()
}

// JoinByInvite adds userID to the workspace holding inviteCode with the
// MEMBER role
func (s *Service) JoinByInvite(ctx context.Context, userID, inviteCode string) (*JoinResult, error) {
	var ws *Workspace
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		ws, err = scanWorkspace(tx.QueryRowContext(ctx,
			"SELECT "+workspaceColumns+" FROM workspaces WHERE invite_code = $1", inviteCode))
		if err == sql.ErrNoRows {
			return apperrors.NotFound("Invalid invite code or workspace not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get workspace: %w", err)
		}

		var existing int
		err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM members WHERE user_id = $1 AND workspace_id = $2",
			userID, ws.ID).Scan(&existing)
		if err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if existing > 0 {
			return apperrors.BadRequest("You are already a member of this workspace")
		}

		memberRoleID, err := roleID(ctx, tx, rbac.RoleMember)
		if err != nil {
			return err
		}
		return insertMember(ctx, tx, userID, ws.ID, memberRoleID, store.Now())
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOperation("member", "join")
	s.events.Publish(ctx, activity.Event{
		ActorID:     userID,
		WorkspaceID: ws.ID,
		Type:        activity.TypeMemberJoin,
		Message:     fmt.Sprintf("joined workspace %q", ws.Name),
		Notify:      activity.NotifyWorkspace,
	})
	return &JoinResult{WorkspaceID: ws.ID, Role: rbac.RoleMember}, nil
}

// ChangeMemberRole gives a member a different role. The OWNER role is tied to
// workspace ownership and cannot be granted or taken away here.
func (s *Service) ChangeMemberRole(ctx context.Context, actorID, workspaceID, memberUserID string, roleName rbac.RoleName) (*Member, error) {
	ws, err := getWorkspace(ctx, s.db, workspaceID)
	if err != nil {
		return nil, err
	}

	newRoleID, err := roleID(ctx, s.db, roleName)
	if err != nil {
		return nil, err
	}
	if roleName == rbac.RoleOwner || roleName == rbac.RoleSuperAdmin {
		return nil, apperrors.BadRequest(fmt.Sprintf("The %s role cannot be assigned to a member", roleName))
	}
	if memberUserID == ws.OwnerID {
		return nil, apperrors.BadRequest("The workspace owner's role cannot be changed")
	}

	result, err := s.db.ExecContext(ctx, "UPDATE members SET role_id = $1 WHERE user_id = $2 AND workspace_id = $3",
		newRoleID, memberUserID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to update member role: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, apperrors.NotFound("Member not found in the workspace")
	}

	member, err := s.getMember(ctx, workspaceID, memberUserID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOperation("member", "change_role")
	s.events.Publish(ctx, activity.Event{
		ActorID:     actorID,
		WorkspaceID: workspaceID,
		Type:        activity.TypeMemberRoleChange,
		Message:     fmt.Sprintf("changed the role of %s to %s", member.User.Name, roleName),
		Meta:        map[string]any{"userId": memberUserID, "role": string(roleName)},
		Notify:      activity.NotifyWorkspace,
	})
	return member, nil
}

// RemoveMember deletes a membership. The owner cannot be removed. Tasks
// assigned to the removed user in this workspace are unassigned and their
// current-workspace pointer is repointed if needed.
func (s *Service) RemoveMember(ctx context.Context, actorID, workspaceID, memberUserID string) error {
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		ws, err := getWorkspace(ctx, tx, workspaceID)
		if err != nil {
			return err
		}
		if memberUserID == ws.OwnerID {
			return apperrors.BadRequest("The workspace owner cannot be removed")
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM members WHERE user_id = $1 AND workspace_id = $2",
			memberUserID, workspaceID)
		if err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return apperrors.NotFound("Member not found in the workspace")
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE tasks SET assigned_to = NULL, updated_at = $1 WHERE workspace_id = $2 AND assigned_to = $3",
			store.Now(), workspaceID, memberUserID)
		if err != nil {
			return fmt.Errorf("failed to unassign tasks: %w", err)
		}

		return repointUsers(ctx, tx, workspaceID, memberUserID)
	})
	if err != nil {
		return err
	}

	s.metrics.RecordOperation("member", "remove")
	s.events.Publish(ctx, activity.Event{
		ActorID:     actorID,
		WorkspaceID: workspaceID,
		Type:        activity.TypeMemberRemove,
		Message:     "removed a member from the workspace",
		Meta:        map[string]any{"userId": memberUserID},
		Notify:      activity.NotifyWorkspace,
	})
	return nil
}

func (s *Service) getMember(ctx context.Context, workspaceID, userID string) (*Member, error) {
	m := &Member{}
	var role string
	var picture sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT m.id, m.user_id, m.workspace_id, r.name, m.joined_at, u.name, u.email, u.profile_picture
		FROM members m
		JOIN roles r ON r.id = m.role_id
		JOIN users u ON u.id = m.user_id
		WHERE m.workspace_id = $1 AND m.user_id = $2
	`, workspaceID, userID).Scan(&m.ID, &m.UserID, &m.WorkspaceID, &role, &m.JoinedAt,
		&m.User.Name, &m.User.Email, &picture)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("Member not found in the workspace")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	m.Role = rbac.RoleName(role)
	m.User.ProfilePicture = store.StringPtr(picture)
	return m, nil
}

func insertMember(ctx context.Context, tx *sql.Tx, userID, workspaceID, roleID string, joinedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO members (id, user_id, workspace_id, role_id, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), userID, workspaceID, roleID, joinedAt)
	if store.IsUniqueViolation(err) {
		return apperrors.Conflict("You are already a member of this workspace", err)
	}
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func roleID(ctx context.Context, q store.Querier, name rbac.RoleName) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, "SELECT id FROM roles WHERE name = $1", string(name)).Scan(&id)
	if err == sql.ErrNoRows {
		return "", apperrors.NotFound(fmt.Sprintf("%s role not found", name))
	}
	if err != nil {
		return "", fmt.Errorf("failed to get role: %w", err)
	}
	return id, nil
}
