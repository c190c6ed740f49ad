package sprints

import (
	"time"

	"github.com/platinummonkey/taskhub/pkg/store"
)

// Status is the lifecycle state of a sprint
type Status string

const (
	StatusPlanned   Status = "PLANNED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a known sprint status
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

const (
	// DefaultCapacity is the capacity in hours of a sprint created without one
	DefaultCapacity = 40
	MaxCapacity     = 200
)

// Sprint is a numbered, time-boxed grouping of tasks within a project
type Sprint struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project"`
	WorkspaceID  string     `json:"workspace"`
	Name         string     `json:"name"`
	SprintNumber int        `json:"sprintNumber"`
	Description  string     `json:"description"`
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
	Capacity     int        `json:"capacity"`
	Status       Status     `json:"status"`
	CreatedBy    string     `json:"createdBy"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// CreateInput describes a new sprint. A zero SprintNumber takes the next
// free number of the project.
type CreateInput struct {
	Name         string     `json:"name"`
	SprintNumber int        `json:"sprintNumber"`
	Description  string     `json:"description"`
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
	Capacity     int        `json:"capacity"`
	Status       Status     `json:"status"`
}

// UpdateInput holds the fields to change. Nil fields are left as they are.
type UpdateInput struct {
	Name         *string    `json:"name"`
	SprintNumber *int       `json:"sprintNumber"`
	Description  *string    `json:"description"`
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
	Capacity     *int       `json:"capacity"`
	Status       *Status    `json:"status"`
}

// Filter narrows a sprint listing
type Filter struct {
	Statuses []Status
	Keyword  string
}

// Page is one page of sprints
type Page struct {
	Sprints    []Sprint         `json:"sprints"`
	Pagination store.Pagination `json:"pagination"`
}

// DeleteResult reports what happened to the tasks of a deleted sprint
type DeleteResult struct {
	Message      string `json:"message"`
	TaskCount    int    `json:"taskCount"`
	TasksDeleted bool   `json:"tasksDeleted"`
}
