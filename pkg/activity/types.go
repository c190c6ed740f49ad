package activity

import (
	"encoding/json"
	"time"
)

// Type tags an activity entry
type Type string

// Activity types emitted by the domain services
const (
	TypeWorkspaceCreate  Type = "workspace_create"
	TypeWorkspaceUpdate  Type = "workspace_update"
	TypeWorkspaceDelete  Type = "workspace_delete"
	TypeMemberJoin       Type = "member_join"
	TypeMemberRoleChange Type = "member_role_change"
	TypeMemberRemove     Type = "member_remove"
	TypeProjectCreate    Type = "project_create"
	TypeProjectUpdate    Type = "project_update"
	TypeProjectDelete    Type = "project_delete"
	TypeSprintCreate     Type = "sprint_create"
	TypeSprintUpdate     Type = "sprint_update"
	TypeSprintDelete     Type = "sprint_delete"
	TypeTaskCreate       Type = "task_create"
	TypeTaskUpdate       Type = "task_update"
	TypeTaskDelete       Type = "task_delete"
	TypeComment          Type = "comment"
	TypeWorkersImport    Type = "workers_import"
)

// NotificationType is the entity a notification is about
type NotificationType string

const (
	NotifyWorkspace NotificationType = "workspace"
	NotifyProject   NotificationType = "project"
	NotifyTask      NotificationType = "task"
	NotifySprint    NotificationType = "sprint"
)

// Valid reports whether t is a known notification type
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyWorkspace, NotifyProject, NotifyTask, NotifySprint:
		return true
	}
	return false
}

// Event is a notable change, emitted after the change is committed.
// Notify selects the notification type; events without one only reach the
// activity log and webhooks.
type Event struct {
	ActorID     string           `json:"actorId"`
	WorkspaceID string           `json:"workspaceId,omitempty"`
	ProjectID   string           `json:"projectId,omitempty"`
	Type        Type             `json:"type"`
	Message     string           `json:"message"`
	Meta        map[string]any   `json:"meta,omitempty"`
	Notify      NotificationType `json:"notify,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// Activity is a stored feed entry
type Activity struct {
	ID          string          `json:"id"`
	WorkspaceID *string         `json:"workspaceId"`
	ProjectID   *string         `json:"projectId"`
	UserID      string          `json:"userId"`
	Type        Type            `json:"type"`
	Message     string          `json:"message"`
	Meta        json.RawMessage `json:"meta,omitempty"`
	Pinned      bool            `json:"pinned"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Notification is a message addressed to one user
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	WorkspaceID string           `json:"workspaceId"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"createdAt"`
}
