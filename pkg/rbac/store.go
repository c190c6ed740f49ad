package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/store"
)

// Table resolves a role name to its permission set
type Table interface {
	PermissionsOf(ctx context.Context, role RoleName) (PermissionSet, error)
}

// StaticTable serves the built-in roles from memory
type StaticTable map[RoleName]PermissionSet

// NewStaticTable builds a table from the built-in roles
func NewStaticTable() StaticTable {
	table := make(StaticTable)
	for _, role := range BuiltInRoles() {
		table[role.Name] = NewPermissionSet(role.Permissions...)
	}
	return table
}

// PermissionsOf returns the permissions of role
func (t StaticTable) PermissionsOf(_ context.Context, role RoleName) (PermissionSet, error) {
	perms, ok := t[role]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("role %s not found", role))
	}
	return perms, nil
}

// Store reads roles from the roles table. The table is read-only after
// seeding, so resolved roles are cached without expiry.
type Store struct {
	db    *sql.DB
	cache *lru.Cache[RoleName, *Role]
}

// NewStore creates a role store with an LRU cache of the given size
func NewStore(db *sql.DB, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 32
	}
	cache, err := lru.New[RoleName, *Role](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create role cache: %w", err)
	}
	return &Store{db: db, cache: cache}, nil
}

// PermissionsOf returns the permissions of role
func (s *Store) PermissionsOf(ctx context.Context, role RoleName) (PermissionSet, error) {
	r, err := s.GetRoleByName(ctx, role)
	if err != nil {
		return nil, err
	}
	return NewPermissionSet(r.Permissions...), nil
}

// GetRoleByName retrieves a role by name
func (s *Store) GetRoleByName(ctx context.Context, name RoleName) (*Role, error) {
	if role, ok := s.cache.Get(name); ok {
		return role, nil
	}

	role, err := scanRole(s.db.QueryRowContext(ctx,
		"SELECT id, name, permissions FROM roles WHERE name = $1", string(name)))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound(fmt.Sprintf("role %s not found", name))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	s.cache.Add(name, role)
	return role, nil
}

// GetRoleByID retrieves a role by ID
func (s *Store) GetRoleByID(ctx context.Context, id string) (*Role, error) {
	role, err := scanRole(s.db.QueryRowContext(ctx,
		"SELECT id, name, permissions FROM roles WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("Role not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListRoles returns every role ordered by name
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, permissions FROM roles ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

// SeedRoles inserts any built-in role missing from the roles table.
// Existing rows are left untouched.
func SeedRoles(ctx context.Context, db *sql.DB) error {
	return store.WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, role := range BuiltInRoles() {
			var exists int
			err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles WHERE name = $1", string(role.Name)).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to check role %s: %w", role.Name, err)
			}
			if exists > 0 {
				continue
			}

			permissionsJSON, err := json.Marshal(role.Permissions)
			if err != nil {
				return fmt.Errorf("failed to marshal permissions: %w", err)
			}

			_, err = tx.ExecContext(ctx,
				"INSERT INTO roles (id, name, permissions, created_at) VALUES ($1, $2, $3, $4)",
				uuid.NewString(), string(role.Name), string(permissionsJSON), store.Now())
			if err != nil {
				return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (*Role, error) {
	role := &Role{}
	var name, permissionsJSON string
	if err := row.Scan(&role.ID, &name, &permissionsJSON); err != nil {
		return nil, err
	}
	role.Name = RoleName(name)
	if err := json.Unmarshal([]byte(permissionsJSON), &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}
	return role, nil
}
