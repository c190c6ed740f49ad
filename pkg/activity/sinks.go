package activity

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/platinummonkey/taskhub/pkg/store"
)

// LogSink appends events to the activities table
type LogSink struct {
	db *sql.DB
}

// NewLogSink creates a LogSink
func NewLogSink(db *sql.DB) *LogSink {
	return &LogSink{db: db}
}

func (s *LogSink) Name() string { return "log" }

// Deliver stores ev as an activity row
func (s *LogSink) Deliver(ctx context.Context, ev Event) error {
	var meta sql.NullString
	if len(ev.Meta) > 0 {
		b, err := json.Marshal(ev.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal activity meta: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, workspace_id, project_id, user_id, type, message, meta, pinned, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.NewString(), nullString(ev.WorkspaceID), nullString(ev.ProjectID), ev.ActorID,
		string(ev.Type), ev.Message, meta, false, ev.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// NotificationChannel is the Redis channel carrying a workspace's notifications
func NotificationChannel(workspaceID string) string {
	return "workspace:" + workspaceID + ":notifications"
}

// NotificationSink stores a notification for every workspace member except
// the actor, then publishes the event on the workspace channel
type NotificationSink struct {
	db    *sql.DB
	redis *redis.Client
}

// NewNotificationSink creates a NotificationSink. redis may be nil, in which
// case notifications are stored but not pushed.
func NewNotificationSink(db *sql.DB, rdb *redis.Client) *NotificationSink {
	return &NotificationSink{db: db, redis: rdb}
}

func (s *NotificationSink) Name() string { return "notification" }

// Deliver fans ev out to the workspace members
func (s *NotificationSink) Deliver(ctx context.Context, ev Event) error {
	if ev.WorkspaceID == "" || !ev.Notify.Valid() {
		return nil
	}

	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT user_id FROM members WHERE workspace_id = $1 AND user_id <> $2",
			ev.WorkspaceID, ev.ActorID)
		if err != nil {
			return fmt.Errorf("failed to list recipients: %w", err)
		}
		var recipients []string
		for rows.Next() {
			var userID string
			if err := rows.Scan(&userID); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan recipient: %w", err)
			}
			recipients = append(recipients, userID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to list recipients: %w", err)
		}

		for _, userID := range recipients {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO notifications (id, user_id, workspace_id, type, message, is_read, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, uuid.NewString(), userID, ev.WorkspaceID, string(ev.Notify), ev.Message, false, ev.CreatedAt.UTC())
			if err != nil {
				return fmt.Errorf("failed to insert notification: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.redis == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := s.redis.Publish(ctx, NotificationChannel(ev.WorkspaceID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body
const SignatureHeader = "X-Taskhub-Signature"

// WebhookSink POSTs events as signed JSON to a single endpoint
type WebhookSink struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookSink creates a WebhookSink. client may be nil.
func NewWebhookSink(url, secret string, client *http.Client) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSink{url: url, secret: secret, client: client}
}

func (s *WebhookSink) Name() string { return "webhook" }

// Deliver sends ev. Any non-2xx response is an error.
func (s *WebhookSink) Deliver(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "taskhub-webhook/1.0")
	req.Header.Set("X-Taskhub-Event", string(ev.Type))
	req.Header.Set(SignatureHeader, Sign(payload, s.secret))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the "sha256=<hex>" signature of payload
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by Sign
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
