package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a versioned schema change
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

// GetMigrations returns all schema migrations in version order.
//
// Referential cascades are intentionally absent: services delete dependent
// rows explicitly inside their own transactions.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create identity tables",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS users (
					id VARCHAR(36) PRIMARY KEY,
					email VARCHAR(320) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL DEFAULT '',
					password_hash TEXT,
					profile_picture TEXT,
					global_role VARCHAR(32) NOT NULL DEFAULT 'MEMBER',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					current_workspace_id VARCHAR(36),
					last_login TIMESTAMP,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS accounts (
					id VARCHAR(36) PRIMARY KEY,
					user_id VARCHAR(36) NOT NULL,
					provider VARCHAR(32) NOT NULL,
					provider_id VARCHAR(320) NOT NULL UNIQUE,
					refresh_token TEXT,
					access_token TEXT,
					token_expiry TIMESTAMP,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id)`,
			},
		},
		{
			Version:     2,
			Description: "Create roles, workspaces and members tables",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS roles (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(32) NOT NULL UNIQUE,
					permissions TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS workspaces (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					owner_id VARCHAR(36) NOT NULL,
					invite_code VARCHAR(64) NOT NULL UNIQUE,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS members (
					id VARCHAR(36) PRIMARY KEY,
					user_id VARCHAR(36) NOT NULL,
					workspace_id VARCHAR(36) NOT NULL,
					role_id VARCHAR(36) NOT NULL,
					joined_at TIMESTAMP NOT NULL,
					UNIQUE (user_id, workspace_id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_members_workspace_id ON members(workspace_id)`,
			},
		},
		{
			Version:     3,
			Description: "Create projects, sprints and tasks tables",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS projects (
					id VARCHAR(36) PRIMARY KEY,
					workspace_id VARCHAR(36) NOT NULL,
					name VARCHAR(255) NOT NULL,
					emoji VARCHAR(16) NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					created_by VARCHAR(36) NOT NULL,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_projects_workspace_id ON projects(workspace_id)`,
				`CREATE TABLE IF NOT EXISTS sprints (
					id VARCHAR(36) PRIMARY KEY,
					project_id VARCHAR(36) NOT NULL,
					workspace_id VARCHAR(36) NOT NULL,
					name VARCHAR(255) NOT NULL,
					sprint_number INTEGER NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					start_date TIMESTAMP,
					end_date TIMESTAMP,
					capacity INTEGER NOT NULL,
					status VARCHAR(16) NOT NULL,
					created_by VARCHAR(36) NOT NULL,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL,
					UNIQUE (project_id, sprint_number)
				)`,
				`CREATE TABLE IF NOT EXISTS tasks (
					id VARCHAR(36) PRIMARY KEY,
					task_code VARCHAR(32) NOT NULL UNIQUE,
					project_id VARCHAR(36) NOT NULL,
					workspace_id VARCHAR(36) NOT NULL,
					sprint_id VARCHAR(36),
					title VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					status VARCHAR(16) NOT NULL,
					priority VARCHAR(16) NOT NULL,
					assigned_to VARCHAR(36),
					created_by VARCHAR(36) NOT NULL,
					due_date TIMESTAMP,
					ai_complexity REAL,
					ai_risk REAL,
					ai_priority REAL,
					ai_prediction_date TIMESTAMP,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id)`,
				`CREATE INDEX IF NOT EXISTS idx_tasks_workspace_id ON tasks(workspace_id)`,
				`CREATE INDEX IF NOT EXISTS idx_tasks_sprint_id ON tasks(sprint_id)`,
				`CREATE TABLE IF NOT EXISTS comments (
					id VARCHAR(36) PRIMARY KEY,
					task_id VARCHAR(36) NOT NULL,
					user_id VARCHAR(36) NOT NULL,
					message TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_comments_task_id ON comments(task_id)`,
			},
		},
		{
			Version:     4,
			Description: "Create activity, notification and worker tables",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS activities (
					id VARCHAR(36) PRIMARY KEY,
					workspace_id VARCHAR(36),
					project_id VARCHAR(36),
					user_id VARCHAR(36) NOT NULL,
					type VARCHAR(64) NOT NULL,
					message TEXT NOT NULL,
					meta TEXT,
					pinned BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_activities_project_id ON activities(project_id)`,
				`CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at)`,
				`CREATE TABLE IF NOT EXISTS notifications (
					id VARCHAR(36) PRIMARY KEY,
					user_id VARCHAR(36) NOT NULL,
					workspace_id VARCHAR(36) NOT NULL,
					type VARCHAR(16) NOT NULL,
					message TEXT NOT NULL,
					is_read BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id)`,
				`CREATE TABLE IF NOT EXISTS workers (
					id VARCHAR(36) PRIMARY KEY,
					workspace_id VARCHAR(36) NOT NULL,
					name VARCHAR(255) NOT NULL,
					role VARCHAR(255) NOT NULL,
					technologies TEXT NOT NULL,
					experience TEXT NOT NULL,
					source VARCHAR(255) NOT NULL,
					imported_at TIMESTAMP NOT NULL,
					UNIQUE (name, workspace_id)
				)`,
			},
		},
	}
}

// RunMigrations applies every pending migration, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			for _, stmt := range migration.Statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
				}
			}

			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
				migration.Version, migration.Description, Now(),
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		versions[version] = true
	}
	return versions, rows.Err()
}
