package archive

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/taskhub/pkg/activity"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/store"
)

// DefaultBatchSize is used when the archiver is created with a
// non-positive batch size
const DefaultBatchSize = 500

// Archiver runs the retention jobs
type Archiver struct {
	db        *sql.DB
	objects   ObjectStore
	batchSize int
	metrics   *observability.Metrics
}

// NewArchiver creates an archiver uploading to objects. metrics may be nil.
func NewArchiver(db *sql.DB, objects ObjectStore, batchSize int, metrics *observability.Metrics) *Archiver {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Archiver{db: db, objects: objects, batchSize: batchSize, metrics: metrics}
}

// Result summarises an archive run
type Result struct {
	Batches  int      `json:"batches"`
	Archived int      `json:"archived"`
	Keys     []string `json:"keys"`
}

// ArchiveActivities moves every activity created before olderThan to object
// storage, oldest first. A failed upload stops the run and leaves that batch
// and everything after it in the database.
func (a *Archiver) ArchiveActivities(ctx context.Context, olderThan time.Time) (*Result, error) {
	logger := observability.FromContext(ctx).WithField("cutoff", olderThan.UTC().Format(time.RFC3339))
	result := &Result{Keys: []string{}}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := a.nextBatch(ctx, olderThan.UTC())
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}

		key, data, err := encodeBatch(batch)
		if err != nil {
			return result, err
		}
		if err := a.objects.PutObject(ctx, key, data, "application/x-ndjson"); err != nil {
			logger.WithField("key", key).WithError(err).Error("failed to upload activity batch")
			return result, fmt.Errorf("failed to upload batch %s: %w", key, err)
		}

		if err := a.deleteBatch(ctx, batch); err != nil {
			return result, err
		}
		result.Batches++
		result.Archived += len(batch)
		result.Keys = append(result.Keys, key)
		logger.WithField("key", key).WithField("count", len(batch)).Debug("archived activity batch")

		if len(batch) < a.batchSize {
			break
		}
	}

	a.metrics.RecordOperation("activity", "archive")
	logger.WithField("archived", result.Archived).WithField("batches", result.Batches).Info("activity archive finished")
	return result, nil
}

func (a *Archiver) nextBatch(ctx context.Context, cutoff time.Time) ([]activity.Activity, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, workspace_id, project_id, user_id, type, message, meta, pinned, created_at
		FROM activities
		WHERE created_at < $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, cutoff, a.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select activities: %w", err)
	}
	defer rows.Close()

	var batch []activity.Activity
	for rows.Next() {
		var act activity.Activity
		var workspaceID, projectID, meta sql.NullString
		var activityType string
		if err := rows.Scan(&act.ID, &workspaceID, &projectID, &act.UserID, &activityType,
			&act.Message, &meta, &act.Pinned, &act.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		act.WorkspaceID = store.StringPtr(workspaceID)
		act.ProjectID = store.StringPtr(projectID)
		act.Type = activity.Type(activityType)
		if meta.Valid && meta.String != "" {
			act.Meta = json.RawMessage(meta.String)
		}
		batch = append(batch, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to select activities: %w", err)
	}
	return batch, nil
}

// encodeBatch renders one JSON object per line. The key is dated by the
// oldest entry of the batch.
func encodeBatch(batch []activity.Activity) (string, []byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range batch {
		if err := enc.Encode(&batch[i]); err != nil {
			return "", nil, fmt.Errorf("failed to encode activity %s: %w", batch[i].ID, err)
		}
	}
	key := fmt.Sprintf("activities/%s/%s.jsonl", batch[0].CreatedAt.UTC().Format("2006/01/02"), uuid.NewString())
	return key, buf.Bytes(), nil
}

func (a *Archiver) deleteBatch(ctx context.Context, batch []activity.Activity) error {
	ids := make([]string, len(batch))
	for i, act := range batch {
		ids[i] = act.ID
	}
	var where store.Where
	where.In("id", ids)
	if _, err := a.db.ExecContext(ctx, "DELETE FROM activities "+where.String(), where.Args()...); err != nil {
		return fmt.Errorf("failed to delete archived activities: %w", err)
	}
	return nil
}

// PurgeNotifications deletes read notifications created before olderThan
// and returns how many were removed
func (a *Archiver) PurgeNotifications(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := a.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE is_read = $1 AND created_at < $2",
		true, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	a.metrics.RecordOperation("notification", "purge")
	observability.FromContext(ctx).WithField("purged", n).Info("notification purge finished")
	return n, nil
}
