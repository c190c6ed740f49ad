package workspaces

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/store/storetest"
)

func TestChangeMemberRole(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)
	owner := storetest.User(t, db, "owner@example.com", "MEMBER")
	member := storetest.User(t, db, "member@example.com", "MEMBER")
	ws, err := svc.Create(ctx, owner, CreateInput{Name: "Acme"})
	require.NoError(t, err)
	_, err = svc.JoinByInvite(ctx, member, ws.InviteCode)
	require.NoError(t, err)

	updated, err := svc.ChangeMemberRole(ctx, owner, ws.ID, member, rbac.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, updated.Role)
	assert.Equal(t, "member@example.com", updated.User.Email)

	tests := []struct {
		name      string
		workspace string
		user      string
		role      rbac.RoleName
		check     func(error) bool
	}{
		{"missing workspace", "missing", member, rbac.RoleAdmin, apperrors.IsNotFound},
		{"unknown role", ws.ID, member, "GHOST", apperrors.IsNotFound},
		{"not a member", ws.ID, "stranger", rbac.RoleAdmin, apperrors.IsNotFound},
		{"grant owner", ws.ID, member, rbac.RoleOwner, apperrors.IsBadRequest},
		{"demote owner", ws.ID, owner, rbac.RoleMember, apperrors.IsBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ChangeMemberRole(ctx, owner, tt.workspace, tt.user, tt.role)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)
	owner := storetest.User(t, db, "owner@example.com", "MEMBER")
	member := storetest.User(t, db, "member@example.com", "MEMBER")

	home, err := svc.Create(ctx, member, CreateInput{Name: "Home"})
	require.NoError(t, err)
	ws, err := svc.Create(ctx, owner, CreateInput{Name: "Acme"})
	require.NoError(t, err)
	_, err = svc.JoinByInvite(ctx, member, ws.InviteCode)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE users SET current_workspace_id = $1 WHERE id = $2", ws.ID, member)
	require.NoError(t, err)

	p := storetest.Project(t, db, ws.ID, owner, "P")
	task := storetest.Task(t, db, p, ws.ID, owner, nil, nil)
	_, err = db.Exec("UPDATE tasks SET assigned_to = $1 WHERE id = $2", member, task)
	require.NoError(t, err)

	assert.True(t, apperrors.IsBadRequest(svc.RemoveMember(ctx, owner, ws.ID, owner)))

	require.NoError(t, svc.RemoveMember(ctx, owner, ws.ID, member))
	assert.Zero(t, storetest.Count(t, db, "SELECT COUNT(*) FROM members WHERE workspace_id = $1 AND user_id = $2", ws.ID, member))
	assert.Zero(t, storetest.Count(t, db, "SELECT COUNT(*) FROM tasks WHERE assigned_to = $1", member))
	assert.Equal(t, home.ID, *currentWorkspace(t, db, member))

	assert.True(t, apperrors.IsNotFound(svc.RemoveMember(ctx, owner, ws.ID, member)))
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)
	owner := storetest.User(t, db, "owner@example.com", "MEMBER")
	ws, err := svc.Create(ctx, owner, CreateInput{Name: "Acme"})
	require.NoError(t, err)

	detail, err := svc.Get(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", detail.Name)
	assert.Len(t, detail.Members, 1)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}
