package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/taskhub/pkg/activity"
	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/store"
)

// AddComment leaves a message on a task
func (s *Service) AddComment(ctx context.Context, userID, workspaceID, projectID, taskID, message string) (*Comment, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.BadRequest("Comment message is required")
	}

	task, err := s.Get(ctx, workspaceID, projectID, taskID)
	if err != nil {
		return nil, err
	}

	c := &Comment{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		UserID:    userID,
		Message:   message,
		CreatedAt: store.Now(),
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO comments (id, task_id, user_id, message, created_at) VALUES ($1, $2, $3, $4, $5)",
		c.ID, c.TaskID, c.UserID, c.Message, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT name FROM users WHERE id = $1", userID).Scan(&c.UserName); err != nil {
		c.UserName = ""
	}

	s.events.Publish(ctx, activity.Event{
		ActorID:     userID,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		Type:        activity.TypeComment,
		Message:     fmt.Sprintf("commented on task %s", task.TaskCode),
		Meta:        map[string]any{"taskId": task.ID, "commentId": c.ID},
		Notify:      activity.NotifyTask,
	})
	return c, nil
}

// ListComments returns a task's comments, oldest first
func (s *Service) ListComments(ctx context.Context, workspaceID, projectID, taskID string) ([]Comment, error) {
	if _, err := s.Get(ctx, workspaceID, projectID, taskID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.task_id, c.user_id, COALESCE(u.name, ''), c.message, c.created_at
		FROM comments c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.task_id = $1
		ORDER BY c.created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.UserName, &c.Message, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
