package workspaces

import (
	"context"
	"time"

	"github.com/platinummonkey/taskhub/pkg/rbac"
)

// Workspace is a tenant boundary owned by exactly one user
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner"`
	InviteCode  string    `json:"inviteCode"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MemberUser is the public profile embedded in a membership
type MemberUser struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	ProfilePicture *string `json:"profilePicture"`
}

// Member is one row of the membership ledger
type Member struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	WorkspaceID string        `json:"workspaceId"`
	Role        rbac.RoleName `json:"role"`
	JoinedAt    time.Time     `json:"joinedAt"`
	User        MemberUser    `json:"user"`
}

// Detail is a workspace with its members
type Detail struct {
	*Workspace
	Members []Member `json:"members"`
}

// MembersView lists the members together with the assignable roles
type MembersView struct {
	Members []Member    `json:"members"`
	Roles   []rbac.Role `json:"roles"`
}

// CreateInput holds the fields of a new workspace
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateInput changes the non-empty fields of a workspace
type UpdateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// JoinResult reports the workspace joined by invite and the role granted
type JoinResult struct {
	WorkspaceID string        `json:"workspaceId"`
	Role        rbac.RoleName `json:"role"`
}

// RoleLister returns the role catalogue shown next to the member list
type RoleLister interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
}
