//go:build integration

package sprints

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/store"
	"github.com/platinummonkey/taskhub/pkg/store/storetest"
)

func TestCreate_ConcurrentNumbering(t *testing.T) {
	ctx := context.Background()
	db := storetest.NewPostgres(t)
	require.NoError(t, rbac.SeedRoles(ctx, db))

	owner := storetest.User(t, db, "owner@example.com", "MEMBER")
	ws := storetest.Workspace(t, db, owner, "Acme")
	project := storetest.Project(t, db, ws, owner, "Apollo")
	svc := NewService(db, nil, nil)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[int]bool{}
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sp, err := svc.Create(ctx, owner, ws, project, CreateInput{Name: "Sprint"})
			if err != nil {
				assert.True(t, apperrors.IsConflict(err) || apperrors.IsBadRequest(err), "unexpected error: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, numbers[sp.SprintNumber], "sprint number %d handed out twice", sp.SprintNumber)
			numbers[sp.SprintNumber] = true
			created++
		}()
	}
	wg.Wait()

	require.Positive(t, created)
	assert.Equal(t, created, storetest.Count(t, db, "SELECT COUNT(*) FROM sprints WHERE project_id = $1", project))

	next, err := svc.GetNextSprintNumber(ctx, ws, project)
	require.NoError(t, err)
	assert.Equal(t, created+1, next)
}

func TestList_KeywordOnPostgres(t *testing.T) {
	ctx := context.Background()
	db := storetest.NewPostgres(t)

	owner := storetest.User(t, db, "owner@example.com", "MEMBER")
	ws := storetest.Workspace(t, db, owner, "Acme")
	project := storetest.Project(t, db, ws, owner, "Apollo")
	svc := NewService(db, nil, nil)

	for _, name := range []string{"Launch prep", "100% coverage", "Bugfix_week"} {
		_, err := svc.Create(ctx, owner, ws, project, CreateInput{Name: name})
		require.NoError(t, err)
	}

	tests := []struct {
		keyword string
		want    int
	}{
		{"LAUNCH", 1},
		{"%", 1},
		{"_", 1},
		{"", 3},
	}
	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			page, err := svc.List(ctx, ws, project, Filter{Keyword: tt.keyword}, store.Page{Number: 1, Size: 10})
			require.NoError(t, err)
			assert.Len(t, page.Sprints, tt.want)
		})
	}
}
