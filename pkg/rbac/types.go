package rbac

import (
	"sort"
	"strings"
)

// Permission is an atomic capability tag
type Permission string

const (
	PermCreateWorkspace         Permission = "CREATE_WORKSPACE"
	PermDeleteWorkspace         Permission = "DELETE_WORKSPACE"
	PermEditWorkspace           Permission = "EDIT_WORKSPACE"
	PermManageWorkspaceSettings Permission = "MANAGE_WORKSPACE_SETTINGS"
	PermAddMember               Permission = "ADD_MEMBER"
	PermChangeMemberRole        Permission = "CHANGE_MEMBER_ROLE"
	PermRemoveMember            Permission = "REMOVE_MEMBER"
	PermCreateProject           Permission = "CREATE_PROJECT"
	PermEditProject             Permission = "EDIT_PROJECT"
	PermDeleteProject           Permission = "DELETE_PROJECT"
	PermViewProject             Permission = "VIEW_PROJECT"
	PermCreateTask              Permission = "CREATE_TASK"
	PermEditTask                Permission = "EDIT_TASK"
	PermDeleteTask              Permission = "DELETE_TASK"
	PermViewOnly                Permission = "VIEW_ONLY"
)

// AllPermissions returns every known permission
func AllPermissions() []Permission {
	return []Permission{
		PermCreateWorkspace, PermDeleteWorkspace, PermEditWorkspace, PermManageWorkspaceSettings,
		PermAddMember, PermChangeMemberRole, PermRemoveMember,
		PermCreateProject, PermEditProject, PermDeleteProject, PermViewProject,
		PermCreateTask, PermEditTask, PermDeleteTask,
		PermViewOnly,
	}
}

// RoleName identifies a role in the role table
type RoleName string

// Built-in role names
const (
	RoleSuperAdmin RoleName = "SUPER_ADMIN"
	RoleOwner      RoleName = "OWNER"
	RoleAdmin      RoleName = "ADMIN"
	RoleMember     RoleName = "MEMBER"
	RoleViewOnly   RoleName = "VIEW_ONLY"
)

// IsSuperAdmin reports whether a user's global role tag grants the bypass
func IsSuperAdmin(globalRole string) bool {
	return RoleName(globalRole) == RoleSuperAdmin
}

// PermissionSet is an unordered set of permissions
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from a list of permissions
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether p is in the set
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAny reports whether the set intersects required
func (s PermissionSet) HasAny(required ...Permission) bool {
	for _, p := range required {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// List returns the permissions in a stable order
func (s PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Role is a named, immutable bundle of permissions
type Role struct {
	ID          string       `json:"id"`
	Name        RoleName     `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// BuiltInRoles returns the seeded role table
func BuiltInRoles() []Role {
	return []Role{
		{
			Name:        RoleSuperAdmin,
			Permissions: AllPermissions(),
		},
		{
			Name:        RoleOwner,
			Permissions: AllPermissions(),
		},
		{
			Name: RoleAdmin,
			Permissions: []Permission{
				PermAddMember, PermManageWorkspaceSettings,
				PermCreateProject, PermEditProject, PermDeleteProject, PermViewProject,
				PermCreateTask, PermEditTask, PermDeleteTask,
				PermViewOnly,
			},
		},
		{
			Name: RoleMember,
			Permissions: []Permission{
				PermViewProject, PermCreateTask, PermEditTask, PermViewOnly,
			},
		},
		{
			Name: RoleViewOnly,
			Permissions: []Permission{
				PermViewProject, PermViewOnly,
			},
		},
	}
}

func formatPermissions(perms []Permission) string {
	parts := make([]string, len(perms))
	for i, p := range perms {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}
