package activity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/store"
)

// Service reads the activity feed and user notifications
type Service struct {
	db *sql.DB
}

// NewService creates a feed service
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ActivityPage is one page of a project feed
type ActivityPage struct {
	Activities []Activity       `json:"activities"`
	Pagination store.Pagination `json:"pagination"`
}

// ListProjectActivities returns a project's feed, pinned entries first and
// then newest first
func (s *Service) ListProjectActivities(ctx context.Context, workspaceID, projectID string, page store.Page) (*ActivityPage, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM activities WHERE workspace_id = $1 AND project_id = $2",
		workspaceID, projectID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, project_id, user_id, type, message, meta, pinned, created_at
		FROM activities
		WHERE workspace_id = $1 AND project_id = $2
		ORDER BY pinned DESC, created_at DESC
		LIMIT $3 OFFSET $4
	`, workspaceID, projectID, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := []Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	return &ActivityPage{Activities: activities, Pagination: page.Paginate(total)}, nil
}

// SetPinned pins or unpins an activity of the workspace
func (s *Service) SetPinned(ctx context.Context, workspaceID, activityID string, pinned bool) (*Activity, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE activities SET pinned = $1 WHERE id = $2 AND workspace_id = $3",
		pinned, activityID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to update activity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, apperrors.NotFound("Activity not found")
	}

	a, err := scanActivity(s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, project_id, user_id, type, message, meta, pinned, created_at
		FROM activities WHERE id = $1
	`, activityID))
	if err != nil {
		return nil, err
	}
	return a, nil
}

// NotificationPage is one page of a user's notifications
type NotificationPage struct {
	Notifications []Notification   `json:"notifications"`
	UnreadCount   int              `json:"unreadCount"`
	Pagination    store.Pagination `json:"pagination"`
}

// ListNotifications returns a user's notifications, newest first
func (s *Service) ListNotifications(ctx context.Context, userID string, unreadOnly bool, page store.Page) (*NotificationPage, error) {
	where := "WHERE user_id = $1"
	args := []any{userID}
	if unreadOnly {
		where += " AND is_read = $2"
		args = append(args, false)
	}

	var total, unread int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = $2", userID, false).Scan(&unread)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, workspace_id, type, message, is_read, created_at
		FROM notifications %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []Notification{}
	for rows.Next() {
		var n Notification
		var notifyType string
		if err := rows.Scan(&n.ID, &n.UserID, &n.WorkspaceID, &notifyType, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = NotificationType(notifyType)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return &NotificationPage{
		Notifications: notifications,
		UnreadCount:   unread,
		Pagination:    page.Paginate(total),
	}, nil
}

// MarkRead marks one of the user's notifications as read
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = $1 WHERE id = $2 AND user_id = $3",
		true, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("Notification not found")
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read and
// returns how many changed
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = $1 WHERE user_id = $2 AND is_read = $3",
		true, userID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (*Activity, error) {
	a := &Activity{}
	var workspaceID, projectID, meta sql.NullString
	var activityType string
	err := row.Scan(&a.ID, &workspaceID, &projectID, &a.UserID, &activityType, &a.Message, &meta, &a.Pinned, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("Activity not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan activity: %w", err)
	}
	a.WorkspaceID = store.StringPtr(workspaceID)
	a.ProjectID = store.StringPtr(projectID)
	a.Type = Type(activityType)
	if meta.Valid {
		a.Meta = []byte(meta.String)
	}
	return a, nil
}
