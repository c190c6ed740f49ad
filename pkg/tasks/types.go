package tasks

import (
	"time"

	"github.com/platinummonkey/taskhub/pkg/store"
)

// Status is a task's workflow state
type Status string

const (
	StatusBacklog    Status = "BACKLOG"
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusInReview   Status = "IN_REVIEW"
	StatusDone       Status = "DONE"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusBacklog, StatusTodo, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

// Priority is a task's priority
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a unit of work inside a project, optionally planned into a sprint
type Task struct {
	ID               string     `json:"id"`
	TaskCode         string     `json:"taskCode"`
	ProjectID        string     `json:"project"`
	WorkspaceID      string     `json:"workspace"`
	SprintID         *string    `json:"sprint"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           Status     `json:"status"`
	Priority         Priority   `json:"priority"`
	AssignedTo       *string    `json:"assignedTo"`
	CreatedBy        string     `json:"createdBy"`
	DueDate          *time.Time `json:"dueDate"`
	AIComplexity     *float64   `json:"aiComplexity"`
	AIRisk           *float64   `json:"aiRisk"`
	AIPriority       *float64   `json:"aiPriority"`
	AIPredictionDate *time.Time `json:"aiPredictionDate"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// CreateInput holds the fields of a new task
type CreateInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	AssignedTo  *string    `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate"`
	SprintID    *string    `json:"sprint"`
}

// UpdateInput changes a task. Nil fields are left alone. An empty
// AssignedTo or SprintID clears the reference; ClearDueDate removes the due
// date.
type UpdateInput struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Status       *Status    `json:"status"`
	Priority     *Priority  `json:"priority"`
	AssignedTo   *string    `json:"assignedTo"`
	DueDate      *time.Time `json:"dueDate"`
	ClearDueDate bool       `json:"clearDueDate"`
	SprintID     *string    `json:"sprint"`
}

// Filter narrows a task listing. Empty fields match everything.
type Filter struct {
	WorkspaceID string
	ProjectID   string
	Statuses    []Status
	Priorities  []Priority
	AssignedTo  []string
	SprintID    string
	Keyword     string
	DueDate     *time.Time
}

// Page is one page of tasks
type Page struct {
	Tasks      []Task           `json:"tasks"`
	Pagination store.Pagination `json:"pagination"`
}

// Scores are prediction scalars, each in [0, 10]
type Scores struct {
	Complexity float64 `json:"aiComplexity"`
	Risk       float64 `json:"aiRisk"`
	Priority   float64 `json:"aiPriority"`
}

// Comment is a message left on a task
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
