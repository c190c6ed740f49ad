package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/store"
)

// UpdatePredictions stores prediction scores on a task and stamps the time
func (s *Service) UpdatePredictions(ctx context.Context, workspaceID, projectID, taskID string, scores Scores) (*Task, error) {
	for name, v := range map[string]float64{
		"complexity": scores.Complexity,
		"risk":       scores.Risk,
		"priority":   scores.Priority,
	} {
		if v < 0 || v > 10 {
			return nil, apperrors.BadRequest(fmt.Sprintf("AI %s must be between 0 and 10", name))
		}
	}

	task, err := s.Get(ctx, workspaceID, projectID, taskID)
	if err != nil {
		return nil, err
	}

	now := store.Now()
	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET ai_complexity = $1, ai_risk = $2, ai_priority = $3, ai_prediction_date = $4, updated_at = $4
		WHERE id = $5
	`, scores.Complexity, scores.Risk, scores.Priority, now, task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update task predictions: %w", err)
	}

	task.AIComplexity = &scores.Complexity
	task.AIRisk = &scores.Risk
	task.AIPriority = &scores.Priority
	task.AIPredictionDate = &now
	task.UpdatedAt = now
	s.metrics.RecordOperation("task", "predict")
	return task, nil
}

// RefreshPredictions asks the prediction service to score a task and stores
// the result. Unlike analytics enrichment, a service failure is returned.
func (s *Service) RefreshPredictions(ctx context.Context, workspaceID, projectID, taskID string) (*Task, error) {
	if s.predictor == nil {
		return nil, apperrors.BadRequest("prediction service is not configured")
	}
	task, err := s.Get(ctx, workspaceID, projectID, taskID)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(task.Title + "\n" + task.Description)
	p, err := s.predictor.PredictTask(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to predict task: %w", err)
	}

	return s.UpdatePredictions(ctx, workspaceID, projectID, taskID, Scores{
		Complexity: clamp(p.Complexity),
		Risk:       clamp(p.Risk),
		Priority:   clamp(p.Priority),
	})
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	}
	return v
}
