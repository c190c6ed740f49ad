package activity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/store"
	"github.com/platinummonkey/taskhub/pkg/store/storetest"
)

func TestLogSink(t *testing.T) {
	ctx := context.Background()
	db := storetest.NewSQLite(t)
	sink := NewLogSink(db)

	err := sink.Deliver(ctx, Event{
		ActorID:     "u1",
		WorkspaceID: "w1",
		ProjectID:   "p1",
		Type:        TypeTaskCreate,
		Message:     "created task",
		Meta:        map[string]any{"taskId": "t1"},
		CreatedAt:   store.Now(),
	})
	require.NoError(t, err)

	err = sink.Deliver(ctx, Event{ActorID: "u1", Type: TypeWorkspaceDelete, Message: "gone", CreatedAt: store.Now()})
	require.NoError(t, err)

	assert.Equal(t, 2, storetest.Count(t, db, "SELECT COUNT(*) FROM activities"))
	assert.Equal(t, 1, storetest.Count(t, db, "SELECT COUNT(*) FROM activities WHERE workspace_id IS NULL"))
}

func TestNotificationSink(t *testing.T) {
	ctx := context.Background()
	db := storetest.NewSQLite(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	actor := storetest.User(t, db, "actor@example.com", "MEMBER")
	other := storetest.User(t, db, "other@example.com", "MEMBER")
	third := storetest.User(t, db, "third@example.com", "MEMBER")
	ws := storetest.Workspace(t, db, actor, "Acme")
	for _, id := range []string{actor, other, third} {
		_, err := db.Exec(`INSERT INTO members (id, user_id, workspace_id, role_id, joined_at)
			VALUES ($1, $2, $3, $4, $5)`, id+"-m", id, ws, "role", store.Now())
		require.NoError(t, err)
	}

	sub := rdb.Subscribe(ctx, NotificationChannel(ws))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	sink := NewNotificationSink(db, rdb)
	ev := Event{
		ActorID:     actor,
		WorkspaceID: ws,
		Type:        TypeTaskCreate,
		Message:     "new task",
		Notify:      NotifyTask,
		CreatedAt:   store.Now(),
	}
	require.NoError(t, sink.Deliver(ctx, ev))

	assert.Equal(t, 2, storetest.Count(t, db, "SELECT COUNT(*) FROM notifications WHERE workspace_id = $1", ws))
	assert.Equal(t, 0, storetest.Count(t, db, "SELECT COUNT(*) FROM notifications WHERE user_id = $1", actor))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "new task", got.Message)
		assert.Equal(t, NotifyTask, got.Notify)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification published")
	}

	t.Run("events without a notification type are skipped", func(t *testing.T) {
		require.NoError(t, sink.Deliver(ctx, Event{ActorID: actor, WorkspaceID: ws, Type: TypeComment}))
		assert.Equal(t, 2, storetest.Count(t, db, "SELECT COUNT(*) FROM notifications"))
	})
}

func TestWebhookSink(t *testing.T) {
	const secret = "s3cret"

	t.Run("signed delivery", func(t *testing.T) {
		var body []byte
		var signature, eventType string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ = io.ReadAll(r.Body)
			signature = r.Header.Get(SignatureHeader)
			eventType = r.Header.Get("X-Taskhub-Event")
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		sink := NewWebhookSink(server.URL, secret, server.Client())
		require.NoError(t, sink.Deliver(context.Background(), Event{ActorID: "u1", Type: TypeProjectCreate, Message: "hi"}))

		assert.True(t, VerifySignature(body, signature, secret))
		assert.False(t, VerifySignature(body, signature, "other"))
		assert.Equal(t, string(TypeProjectCreate), eventType)
	})

	t.Run("non 2xx is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		sink := NewWebhookSink(server.URL, secret, nil)
		err := sink.Deliver(context.Background(), Event{Type: TypeProjectCreate})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})
}
