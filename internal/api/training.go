package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ProgressReport records a completed (or scored) training attempt.
type ProgressReport struct {
	UserID   string  `json:"userId"`
	ModuleID string  `json:"moduleId"`
	ChatID   string  `json:"chatId"`
	Score    float64 `json:"score"`
}

// ModuleProgress summarizes one module's attempts for a user.
type ModuleProgress struct {
	ModuleID  string  `json:"module_id"`
	Title     string  `json:"title"`
	Completed bool    `json:"completed"`
	BestScore float64 `json:"best_score"`
	Attempts  int     `json:"attempts"`
}

// ProgressSummary is a user's progress across all training modules.
type ProgressSummary struct {
	TotalModules     int              `json:"total_modules"`
	CompletedModules int              `json:"completed_modules"`
	AverageScore     float64          `json:"average_score"`
	Modules          []ModuleProgress `json:"modules"`
}

// TrackProgress reports a training score. Callers treat this as
// best-effort; see training.Engine.Complete.
func (c *Client) TrackProgress(ctx context.Context, report ProgressReport) error {
	if err := c.rest.Do(ctx, http.MethodPost, "/training/progress", nil, report, nil); err != nil {
		return fmt.Errorf("tracking progress: %w", err)
	}
	return nil
}

// UserProgress fetches a user's progress summary across all modules.
func (c *Client) UserProgress(ctx context.Context, userID string) (*ProgressSummary, error) {
	var resp ProgressSummary
	err := c.rest.Do(ctx, http.MethodGet, "/training/progress/"+url.PathEscape(userID), nil, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetching user progress: %w", err)
	}
	return &resp, nil
}
