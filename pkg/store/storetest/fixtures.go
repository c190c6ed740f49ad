package storetest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/store"
)

// The fixtures below insert rows directly so each package can arrange state
// without going through the services under test. Member requires the roles
// table to be seeded first.

// User inserts a user and returns its id
func User(t *testing.T, db *sql.DB, email, globalRole string) string {
	t.Helper()
	id := uuid.NewString()
	now := store.Now()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO users (id, email, name, global_role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, email, email, globalRole, true, now, now)
	require.NoError(t, err)
	return id
}

// Workspace inserts a workspace without any membership and returns its id
func Workspace(t *testing.T, db *sql.DB, ownerID, name string) string {
	t.Helper()
	id := uuid.NewString()
	now := store.Now()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO workspaces (id, name, description, owner_id, invite_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, name, "", ownerID, uuid.NewString()[:8], now, now)
	require.NoError(t, err)
	return id
}

// Member gives userID the named role in workspaceID
func Member(t *testing.T, db *sql.DB, userID, workspaceID, roleName string) {
	t.Helper()
	var roleID string
	err := db.QueryRowContext(context.Background(), "SELECT id FROM roles WHERE name = $1", roleName).Scan(&roleID)
	require.NoError(t, err, "roles must be seeded before adding members")

	_, err = db.ExecContext(context.Background(), `
		INSERT INTO members (id, user_id, workspace_id, role_id, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), userID, workspaceID, roleID, store.Now())
	require.NoError(t, err)
}

// Project inserts a project and returns its id
func Project(t *testing.T, db *sql.DB, workspaceID, createdBy, name string) string {
	t.Helper()
	id := uuid.NewString()
	now := store.Now()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO projects (id, workspace_id, name, emoji, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, workspaceID, name, "", "", createdBy, now, now)
	require.NoError(t, err)
	return id
}

// Sprint inserts a PLANNED sprint and returns its id
func Sprint(t *testing.T, db *sql.DB, projectID, workspaceID, createdBy string, number int, start, end *time.Time) string {
	t.Helper()
	id := uuid.NewString()
	now := store.Now()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO sprints (id, project_id, workspace_id, name, sprint_number, description,
			start_date, end_date, capacity, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, id, projectID, workspaceID, fmt.Sprintf("Sprint %d", number), number, "",
		store.NullTime(start), store.NullTime(end), 40, "PLANNED", createdBy, now, now)
	require.NoError(t, err)
	return id
}

// Task inserts a TODO task and returns its id
func Task(t *testing.T, db *sql.DB, projectID, workspaceID, createdBy string, sprintID *string, dueDate *time.Time) string {
	t.Helper()
	id := uuid.NewString()
	now := store.Now()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO tasks (id, task_code, project_id, workspace_id, sprint_id, title, description,
			status, priority, created_by, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, id, "task-"+id[:8], projectID, workspaceID, store.NullString(sprintID), "task "+id[:4], "",
		"TODO", "MEDIUM", createdBy, store.NullTime(dueDate), now, now)
	require.NoError(t, err)
	return id
}

// Count runs a SELECT COUNT(*) query and returns the result
func Count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}
