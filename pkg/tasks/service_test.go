package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/prediction"
	"github.com/platinummonkey/taskhub/pkg/store"
	"github.com/platinummonkey/taskhub/pkg/store/storetest"
)

type stubPredictor struct {
	result *prediction.TaskPrediction
	err    error
	text   string
}

func (p *stubPredictor) PredictTask(_ context.Context, text string) (*prediction.TaskPrediction, error) {
	p.text = text
	return p.result, p.err
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(f.db, nil, nil, nil)

	task, err := svc.Create(ctx, f.owner, f.workspace, f.project, CreateInput{
		Title:    "Write docs",
		SprintID: &f.sprint,
		DueDate:  day(15),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusTodo, task.Status)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Regexp(t, `^task-[0-9a-f]{6}$`, task.TaskCode)

	got, err := svc.Get(ctx, f.workspace, f.project, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)
	require.NotNil(t, got.DueDate)
	assert.True(t, day(15).Equal(*got.DueDate))

	t.Run("rejected writes leave nothing behind", func(t *testing.T) {
		before := storetest.Count(t, f.db, "SELECT COUNT(*) FROM tasks")
		_, err := svc.Create(ctx, f.owner, f.workspace, f.project, CreateInput{
			Title: "Late", SprintID: &f.sprint, DueDate: day(25),
		})
		assert.True(t, apperrors.IsBadRequest(err))

		_, err = svc.Create(ctx, f.owner, f.workspace, f.project, CreateInput{Title: "x", Status: "WHENEVER"})
		assert.True(t, apperrors.IsBadRequest(err))

		_, err = svc.Create(ctx, f.owner, f.workspace, f.project, CreateInput{Title: " "})
		assert.True(t, apperrors.IsBadRequest(err))

		_, err = svc.Create(ctx, f.outsider, f.other, f.project, CreateInput{Title: "sneaky"})
		assert.True(t, apperrors.IsNotFound(err))

		assert.Equal(t, before, storetest.Count(t, f.db, "SELECT COUNT(*) FROM tasks"))
	})

	t.Run("get from another project", func(t *testing.T) {
		other := storetest.Project(t, f.db, f.workspace, f.owner, "Gemini")
		_, err := svc.Get(ctx, f.workspace, other, task.ID)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestUpdate_UsesEffectiveValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(f.db, nil, nil, nil)

	task, err := svc.Create(ctx, f.owner, f.workspace, f.project, CreateInput{Title: "Ship", DueDate: day(25)})
	require.NoError(t, err)

	_, err = svc.Update(ctx, f.owner, f.workspace, f.project, task.ID, UpdateInput{SprintID: &f.sprint})
	assert.True(t, apperrors.IsBadRequest(err), "existing due date falls outside the new sprint")

	updated, err := svc.Update(ctx, f.owner, f.workspace, f.project, task.ID, UpdateInput{
		SprintID: &f.sprint,
		DueDate:  day(18),
		Status:   ptr(StatusInProgress),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, updated.Status)
	require.NotNil(t, updated.SprintID)

	cleared, err := svc.Update(ctx, f.owner, f.workspace, f.project, task.ID, UpdateInput{
		SprintID:     ptr(""),
		ClearDueDate: true,
		AssignedTo:   &f.owner,
	})
	require.NoError(t, err)
	assert.Nil(t, cleared.SprintID)
	assert.Nil(t, cleared.DueDate)
	assert.Equal(t, f.owner, *cleared.AssignedTo)

	_, err = svc.Update(ctx, f.owner, f.workspace, f.project, task.ID, UpdateInput{AssignedTo: &f.outsider})
	assert.True(t, apperrors.IsBadRequest(err))

	_, err = svc.Update(ctx, f.owner, f.workspace, f.project, "missing", UpdateInput{})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(f.db, nil, nil, nil)

	mk := func(in CreateInput) *Task {
		task, err := svc.Create(ctx, f.owner, f.workspace, f.project, in)
		require.NoError(t, err)
		return task
	}
	mk(CreateInput{Title: "Login page", Priority: PriorityHigh, DueDate: day(12), SprintID: &f.sprint})
	mk(CreateInput{Title: "Signup flow", Description: "after LOGIN", Status: StatusDone})
	mk(CreateInput{Title: "Billing", AssignedTo: &f.owner, DueDate: day(12)})

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"status", Filter{Statuses: []Status{StatusDone}}, 1},
		{"statuses", Filter{Statuses: []Status{StatusDone, StatusTodo}}, 3},
		{"priority", Filter{Priorities: []Priority{PriorityHigh}}, 1},
		{"assignee", Filter{AssignedTo: []string{f.owner}}, 1},
		{"sprint", Filter{SprintID: f.sprint}, 1},
		{"keyword title or description", Filter{Keyword: "login"}, 2},
		{"keyword wildcard is literal", Filter{Keyword: "%"}, 0},
		{"due date same day", Filter{DueDate: ptr(time.Date(2030, time.March, 12, 23, 0, 0, 0, time.UTC))}, 2},
		{"project", Filter{ProjectID: f.project}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.WorkspaceID = f.workspace
			page, err := svc.List(ctx, tt.filter, store.DefaultPage)
			require.NoError(t, err)
			assert.Len(t, page.Tasks, tt.want)
			assert.Equal(t, tt.want, page.Pagination.TotalCount)
		})
	}

	t.Run("paging newest first", func(t *testing.T) {
		page, err := svc.List(ctx, Filter{WorkspaceID: f.workspace}, store.Page{Number: 2, Size: 2})
		require.NoError(t, err)
		require.Len(t, page.Tasks, 1)
		assert.Equal(t, "Login page", page.Tasks[0].Title)
		assert.Equal(t, 2, page.Pagination.TotalPages)
	})

	t.Run("by sprint", func(t *testing.T) {
		tasks, err := svc.BySprint(ctx, f.workspace, f.project, f.sprint)
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(f.db, nil, nil, nil)

	task, err := svc.Create(ctx, f.owner, f.workspace, f.project, CreateInput{Title: "Temp"})
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, f.owner, f.workspace, f.project, task.ID, "first!")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, f.owner, f.workspace, f.project, task.ID))
	assert.Zero(t, storetest.Count(t, f.db, "SELECT COUNT(*) FROM tasks"))
	assert.Zero(t, storetest.Count(t, f.db, "SELECT COUNT(*) FROM comments"))

	assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, f.owner, f.workspace, f.project, task.ID)))
}

func TestPredictions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	predictor := &stubPredictor{result: &prediction.TaskPrediction{Complexity: 4, Risk: 12, Priority: 8}}
	svc := NewService(f.db, predictor, nil, nil)

	task, err := svc.Create(ctx, f.owner, f.workspace, f.project, CreateInput{Title: "Rewrite parser", Description: "carefully"})
	require.NoError(t, err)

	t.Run("manual scores are range checked", func(t *testing.T) {
		_, err := svc.UpdatePredictions(ctx, f.workspace, f.project, task.ID, Scores{Complexity: 11})
		assert.True(t, apperrors.IsBadRequest(err))

		updated, err := svc.UpdatePredictions(ctx, f.workspace, f.project, task.ID, Scores{Complexity: 1, Risk: 2, Priority: 3})
		require.NoError(t, err)
		assert.Equal(t, 2.0, *updated.AIRisk)
		assert.NotNil(t, updated.AIPredictionDate)
	})

	t.Run("refresh stores clamped service scores", func(t *testing.T) {
		updated, err := svc.RefreshPredictions(ctx, f.workspace, f.project, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Rewrite parser\ncarefully", predictor.text)
		assert.Equal(t, 10.0, *updated.AIRisk)

		stored, err := svc.Get(ctx, f.workspace, f.project, task.ID)
		require.NoError(t, err)
		assert.Equal(t, 4.0, *stored.AIComplexity)
	})

	t.Run("refresh surfaces service failure", func(t *testing.T) {
		predictor.err = errors.New("model offline")
		_, err := svc.RefreshPredictions(ctx, f.workspace, f.project, task.ID)
		assert.Error(t, err)
	})
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(f.db, nil, nil, nil)

	task, err := svc.Create(ctx, f.owner, f.workspace, f.project, CreateInput{Title: "Discuss"})
	require.NoError(t, err)

	_, err = svc.AddComment(ctx, f.owner, f.workspace, f.project, task.ID, "  ")
	assert.True(t, apperrors.IsBadRequest(err))

	c, err := svc.AddComment(ctx, f.owner, f.workspace, f.project, task.ID, "looks good")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", c.UserName)

	comments, err := svc.ListComments(ctx, f.workspace, f.project, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "looks good", comments[0].Message)
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	past := store.Now().Add(-24 * time.Hour)
	storetest.Task(t, f.db, f.project, f.workspace, f.owner, nil, &past)
	storetest.Task(t, f.db, f.project, f.workspace, f.owner, nil, nil)

	s, err := Summarize(ctx, f.db, InProject(f.project))
	require.NoError(t, err)
	assert.Equal(t, &Summary{TotalTasks: 2, OverdueTasks: 1}, s)

	empty, err := Summarize(ctx, f.db, InWorkspace(f.other))
	require.NoError(t, err)
	assert.Equal(t, &Summary{}, empty)
}
