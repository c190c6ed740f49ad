package projects

import (
	"encoding/json"
	"time"

	"github.com/platinummonkey/taskhub/pkg/store"
	"github.com/platinummonkey/taskhub/pkg/tasks"
)

// Project groups tasks and sprints inside a workspace
type Project struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace"`
	Name        string    `json:"name"`
	Emoji       string    `json:"emoji"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateInput describes a new project
type CreateInput struct {
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
}

// UpdateInput holds the fields to change. Empty fields are left as they are.
type UpdateInput struct {
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
}

// Page is one page of projects
type Page struct {
	Projects   []Project        `json:"projects"`
	Pagination store.Pagination `json:"pagination"`
}

// Analytics is the task summary of a project, enriched with the prediction
// service's staffing proposal when it answered
type Analytics struct {
	tasks.Summary
	AIAnalytics json.RawMessage `json:"aiAnalytics,omitempty"`
}
