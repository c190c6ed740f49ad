package workspaces

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/activity"
	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/store"
	"github.com/platinummonkey/taskhub/pkg/store/storetest"
)

type capturedEvents struct {
	events []activity.Event
}

func (c *capturedEvents) Publish(_ context.Context, ev activity.Event) {
	c.events = append(c.events, ev)
}

func newTestService(t *testing.T) (*Service, *sql.DB, *capturedEvents) {
	t.Helper()
	db := storetest.NewSQLite(t)
	require.NoError(t, rbac.SeedRoles(context.Background(), db))
	roles, err := rbac.NewStore(db, 0)
	require.NoError(t, err)
	events := &capturedEvents{}
	return NewService(db, roles, events, nil), db, events
}

func currentWorkspace(t *testing.T, db *sql.DB, userID string) *string {
	t.Helper()
	var current sql.NullString
	require.NoError(t, db.QueryRow("SELECT current_workspace_id FROM users WHERE id = $1", userID).Scan(&current))
	return store.StringPtr(current)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, db, events := newTestService(t)
	owner := storetest.User(t, db, "owner@example.com", "MEMBER")

	ws, err := svc.Create(ctx, owner, CreateInput{Name: "  Acme  ", Description: "rockets"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", ws.Name)
	assert.Len(t, ws.InviteCode, 10)

	assert.Equal(t, 1, storetest.Count(t, db, "SELECT COUNT(*) FROM members WHERE workspace_id = $1", ws.ID))
	view, err := svc.ListMembers(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, view.Members, 1)
	assert.Equal(t, owner, view.Members[0].UserID)
	assert.Equal(t, rbac.RoleOwner, view.Members[0].Role)
	assert.Len(t, view.Roles, 4, "super admin is not listed")

	require.NotNil(t, currentWorkspace(t, db, owner))
	assert.Equal(t, ws.ID, *currentWorkspace(t, db, owner))

	second, err := svc.Create(ctx, owner, CreateInput{Name: "Second"})
	require.NoError(t, err)
	assert.Equal(t, second.ID, *currentWorkspace(t, db, owner), "explicit creation always repoints")

	require.Len(t, events.events, 2)
	assert.Equal(t, activity.TypeWorkspaceCreate, events.events[0].Type)

	t.Run("validation", func(t *testing.T) {
		_, err := svc.Create(ctx, owner, CreateInput{Name: "   "})
		assert.True(t, apperrors.IsBadRequest(err))
	})

	t.Run("unknown owner", func(t *testing.T) {
		_, err := svc.Create(ctx, "ghost", CreateInput{Name: "X"})
		assert.True(t, apperrors.IsNotFound(err))
		assert.Equal(t, 2, storetest.Count(t, db, "SELECT COUNT(*) FROM workspaces"))
	})
}

func TestProvisionDefault_OnlyIfUnset(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)
	owner := storetest.User(t, db, "owner@example.com", "MEMBER")

	existing, err := svc.Create(ctx, owner, CreateInput{Name: "Existing"})
	require.NoError(t, err)

	var provisioned string
	err = store.WithTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		provisioned, err = svc.ProvisionDefault(ctx, tx, owner, "Default")
		return err
	})
	require.NoError(t, err)
	assert.NotEqual(t, existing.ID, provisioned)
	assert.Equal(t, existing.ID, *currentWorkspace(t, db, owner))

	fresh := storetest.User(t, db, "fresh@example.com", "MEMBER")
	err = store.WithTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		provisioned, err = svc.ProvisionDefault(ctx, tx, fresh, "Fresh")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, provisioned, *currentWorkspace(t, db, fresh))
}

func TestJoinByInvite(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)
	owner := storetest.User(t, db, "owner@example.com", "MEMBER")
	joiner := storetest.User(t, db, "joiner@example.com", "MEMBER")

	ws, err := svc.Create(ctx, owner, CreateInput{Name: "Acme"})
	require.NoError(t, err)

	result, err := svc.JoinByInvite(ctx, joiner, ws.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, result.WorkspaceID)
	assert.Equal(t, rbac.RoleMember, result.Role)

	_, err = svc.JoinByInvite(ctx, joiner, ws.InviteCode)
	assert.True(t, apperrors.IsBadRequest(err), "got %v", err)
	assert.Equal(t, 2, storetest.Count(t, db, "SELECT COUNT(*) FROM members WHERE workspace_id = $1", ws.ID))

	_, err = svc.JoinByInvite(ctx, joiner, "nope")
	assert.True(t, apperrors.IsNotFound(err))

	t.Run("reset invite code invalidates the old one", func(t *testing.T) {
		other := storetest.User(t, db, "other@example.com", "MEMBER")
		updated, err := svc.ResetInviteCode(ctx, ws.ID)
		require.NoError(t, err)
		assert.NotEqual(t, ws.InviteCode, updated.InviteCode)

		_, err = svc.JoinByInvite(ctx, other, ws.InviteCode)
		assert.True(t, apperrors.IsNotFound(err))
		_, err = svc.JoinByInvite(ctx, other, updated.InviteCode)
		assert.NoError(t, err)
	})
}

func seedWorkspaceContent(t *testing.T, db *sql.DB, wsID, ownerID string, projects, tasksPerProject []int) {
	t.Helper()
	for i := range projects {
		p := storetest.Project(t, db, wsID, ownerID, "project")
		s := storetest.Sprint(t, db, p, wsID, ownerID, 1, nil, nil)
		for j := 0; j < tasksPerProject[i]; j++ {
			task := storetest.Task(t, db, p, wsID, ownerID, &s, nil)
			_, err := db.Exec("INSERT INTO comments (id, task_id, user_id, message, created_at) VALUES ($1, $2, $3, $4, $5)",
				uuid.NewString(), task, ownerID, "hi", store.Now())
			require.NoError(t, err)
		}
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	countScoped := func(t *testing.T, db *sql.DB, wsID string) map[string]int {
		return map[string]int{
			"workspaces": storetest.Count(t, db, "SELECT COUNT(*) FROM workspaces WHERE id = $1", wsID),
			"projects":   storetest.Count(t, db, "SELECT COUNT(*) FROM projects WHERE workspace_id = $1", wsID),
			"tasks":      storetest.Count(t, db, "SELECT COUNT(*) FROM tasks WHERE workspace_id = $1", wsID),
			"members":    storetest.Count(t, db, "SELECT COUNT(*) FROM members WHERE workspace_id = $1", wsID),
			"sprints":    storetest.Count(t, db, "SELECT COUNT(*) FROM sprints WHERE workspace_id = $1", wsID),
		}
	}

	setup := func(t *testing.T) (*Service, *sql.DB, string, string, string, string) {
		svc, db, _ := newTestService(t)
		owner := storetest.User(t, db, "owner@example.com", "MEMBER")
		a := storetest.User(t, db, "a@example.com", "MEMBER")
		b := storetest.User(t, db, "b@example.com", "MEMBER")

		ws, err := svc.Create(ctx, owner, CreateInput{Name: "Doomed"})
		require.NoError(t, err)
		_, err = svc.JoinByInvite(ctx, a, ws.InviteCode)
		require.NoError(t, err)
		_, err = svc.JoinByInvite(ctx, b, ws.InviteCode)
		require.NoError(t, err)

		seedWorkspaceContent(t, db, ws.ID, owner, []int{0, 1}, []int{2, 3})
		return svc, db, ws.ID, owner, a, b
	}

	t.Run("non owner is rejected without side effects", func(t *testing.T) {
		svc, db, wsID, _, a, _ := setup(t)
		before := countScoped(t, db, wsID)
		assert.Equal(t, map[string]int{"workspaces": 1, "projects": 2, "tasks": 5, "members": 3, "sprints": 2}, before)

		err := svc.Delete(ctx, wsID, a)
		assert.True(t, apperrors.IsUnauthorized(err), "got %v", err)
		assert.Equal(t, before, countScoped(t, db, wsID))
	})

	t.Run("owner cascades everything", func(t *testing.T) {
		svc, db, wsID, owner, a, b := setup(t)
		_, err := db.Exec("UPDATE users SET current_workspace_id = $1 WHERE id = $2", wsID, a)
		require.NoError(t, err)

		keep, err := svc.Create(ctx, b, CreateInput{Name: "B's own"})
		require.NoError(t, err)
		_, err = db.Exec("UPDATE users SET current_workspace_id = $1 WHERE id = $2", wsID, b)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO activities (id, workspace_id, user_id, type, message, pinned, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`, uuid.NewString(), wsID, owner, "project_create", "created project", true, store.Now())
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, wsID, owner))

		for what, n := range countScoped(t, db, wsID) {
			assert.Zero(t, n, what)
		}
		assert.Zero(t, storetest.Count(t, db, "SELECT COUNT(*) FROM comments"))
		assert.Zero(t, storetest.Count(t, db, "SELECT COUNT(*) FROM activities WHERE workspace_id = $1", wsID))

		assert.Nil(t, currentWorkspace(t, db, owner))
		assert.Nil(t, currentWorkspace(t, db, a))
		require.NotNil(t, currentWorkspace(t, db, b))
		assert.Equal(t, keep.ID, *currentWorkspace(t, db, b))
	})

	t.Run("missing workspace", func(t *testing.T) {
		svc, _, _, owner, _, _ := setup(t)
		assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, "missing", owner)))
	})
}

func TestDelete_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM workspaces WHERE id").
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "owner_id", "invite_code", "created_at", "updated_at"}).
			AddRow("w1", "Acme", "", "owner", "abc", now, now))
	mock.ExpectExec("DELETE FROM comments").WithArgs("w1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM tasks").WithArgs("w1").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("DELETE FROM sprints").WithArgs("w1").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	svc := NewService(db, nil, nil, nil)
	err = svc.Delete(context.Background(), "w1", "owner")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete sprints")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)
	alice := storetest.User(t, db, "alice@example.com", "MEMBER")
	bob := storetest.User(t, db, "bob@example.com", "MEMBER")

	_, err := svc.Create(ctx, alice, CreateInput{Name: "A"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, CreateInput{Name: "B"})
	require.NoError(t, err)

	mine, err := svc.ListForUser(ctx, alice, "MEMBER")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "A", mine[0].Name)

	all, err := svc.ListForUser(ctx, "root", "SUPER_ADMIN")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateAndAnalytics(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)
	owner := storetest.User(t, db, "owner@example.com", "MEMBER")
	ws, err := svc.Create(ctx, owner, CreateInput{Name: "Acme", Description: "old"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, owner, ws.ID, UpdateInput{Description: "new"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", updated.Name)
	assert.Equal(t, "new", updated.Description)

	p := storetest.Project(t, db, ws.ID, owner, "P")
	past := store.Now().Add(-48 * time.Hour)
	storetest.Task(t, db, p, ws.ID, owner, nil, &past)
	done := storetest.Task(t, db, p, ws.ID, owner, nil, &past)
	storetest.Task(t, db, p, ws.ID, owner, nil, nil)
	_, err = db.Exec("UPDATE tasks SET status = $1 WHERE id = $2", "DONE", done)
	require.NoError(t, err)

	summary, err := svc.Analytics(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalTasks)
	assert.Equal(t, 1, summary.OverdueTasks)
	assert.Equal(t, 1, summary.CompletedTasks)

	_, err = svc.Analytics(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}
