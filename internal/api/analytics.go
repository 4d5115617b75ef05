package api

import (
	"context"
	"fmt"
	"net/http"
)

// ModuleStat is one module's aggregate usage in the organization analytics.
type ModuleStat struct {
	ModuleID    string  `json:"module_id"`
	Title       string  `json:"title"`
	Sessions    int     `json:"sessions"`
	Completions int     `json:"completions"`
	AvgScore    float64 `json:"avg_score"`
}

// OrgAnalytics is the organization-wide analytics payload.
type OrgAnalytics struct {
	TotalUsers        int          `json:"total_users"`
	TotalModules      int          `json:"total_modules"`
	TotalSessions     int          `json:"total_sessions"`
	CompletedSessions int          `json:"completed_sessions"`
	AverageScore      float64      `json:"average_score"`
	PopularModules    []ModuleStat `json:"popular_modules"`
	TopCompleted      []ModuleStat `json:"top_completed"`
}

// Analytics fetches the organization analytics dashboard payload.
func (c *Client) Analytics(ctx context.Context) (*OrgAnalytics, error) {
	var resp OrgAnalytics
	if err := c.rest.Do(ctx, http.MethodGet, "/analytics/", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching analytics: %w", err)
	}
	return &resp, nil
}
