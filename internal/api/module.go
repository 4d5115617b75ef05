package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/simcoach/simcoach/internal/rest"
)

// Module is a training scenario template: the system prompt that drives the
// simulated counterpart plus optional evaluation criteria.
type Module struct {
	AgentID      string     `json:"agent_id"`
	Title        string     `json:"title"`
	SystemPrompt string     `json:"system_prompt"`
	Criteria     []string   `json:"criteria,omitempty"`
	IsDeleted    bool       `json:"is_deleted"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// ModulePage is one server page of modules.
type ModulePage struct {
	Modules    []Module `json:"modules"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalCount int      `json:"total_count"`
}

// ModuleDraft carries the writable module fields. Empty fields are omitted
// on edit so the backend keeps the current value.
type ModuleDraft struct {
	Title        string
	SystemPrompt string
	Criteria     []string
}

// ModuleResource is a reference document attached to a module.
type ModuleResource struct {
	ID        string    `json:"id"`
	ModuleID  string    `json:"module_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type moduleResourcesResponse struct {
	Resources []ModuleResource `json:"resources"`
	Total     int              `json:"total"`
}

type moduleResponse struct {
	Message string `json:"message"`
	Module  Module `json:"module"`
}

// ListModules fetches one page of modules. Deleted modules are excluded
// unless includeDeleted is set.
func (c *Client) ListModules(ctx context.Context, includeDeleted bool, page, limit int) (*ModulePage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	if includeDeleted {
		query.Set("include_deleted", "true")
	}

	var resp ModulePage
	if err := c.rest.Do(ctx, http.MethodGet, "/module/list", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing modules: %w", err)
	}
	return &resp, nil
}

// Module fetches a single module by agent id.
func (c *Client) Module(ctx context.Context, agentID string) (*Module, error) {
	var resp moduleResponse
	if err := c.rest.Do(ctx, http.MethodGet, "/module/"+url.PathEscape(agentID), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching module: %w", err)
	}
	return &resp.Module, nil
}

// CreateModule creates a module, optionally attaching a PDF reference
// document in the same multipart request.
func (c *Client) CreateModule(ctx context.Context, draft ModuleDraft, pdf *rest.FileField) (*Module, error) {
	if draft.Title == "" {
		return nil, fmt.Errorf("module title is required")
	}
	if draft.SystemPrompt == "" {
		return nil, fmt.Errorf("module system prompt is required")
	}

	var resp moduleResponse
	if err := c.rest.DoMultipart(ctx, http.MethodPost, "/module", draft.fields(), pdf, &resp); err != nil {
		return nil, fmt.Errorf("creating module: %w", err)
	}
	return &resp.Module, nil
}

// EditModule updates a module's writable fields; empty draft fields are
// left unchanged by the backend.
func (c *Client) EditModule(ctx context.Context, agentID string, draft ModuleDraft, pdf *rest.FileField) (*Module, error) {
	var resp moduleResponse
	err := c.rest.DoMultipart(ctx, http.MethodPut, "/module/"+url.PathEscape(agentID), draft.fields(), pdf, &resp)
	if err != nil {
		return nil, fmt.Errorf("editing module: %w", err)
	}
	return &resp.Module, nil
}

// DeleteModule soft-deletes a module. Existing chats keep referencing it.
func (c *Client) DeleteModule(ctx context.Context, agentID string) error {
	if err := c.rest.Do(ctx, http.MethodDelete, "/module/"+url.PathEscape(agentID), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting module: %w", err)
	}
	return nil
}

// ModuleTitle resolves a module's display title. Lookup failures fall back
// to the raw id: titles decorate lists and must never block them.
func (c *Client) ModuleTitle(ctx context.Context, agentID string) string {
	module, err := c.Module(ctx, agentID)
	if err != nil {
		c.logger.Debug("module title lookup failed, using id", "agent_id", agentID, "error", err)
		return agentID
	}
	if module.Title == "" {
		return agentID
	}
	return module.Title
}

// ModuleResources lists the reference documents attached to a module.
func (c *Client) ModuleResources(ctx context.Context, agentID string) ([]ModuleResource, error) {
	var resp moduleResourcesResponse
	err := c.rest.Do(ctx, http.MethodGet, "/module/"+url.PathEscape(agentID)+"/resources", nil, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("listing module resources: %w", err)
	}
	return resp.Resources, nil
}

// DeleteModuleResource detaches one reference document from a module.
func (c *Client) DeleteModuleResource(ctx context.Context, agentID, resourceID string) error {
	path := "/module/" + url.PathEscape(agentID) + "/resources/" + url.PathEscape(resourceID)
	if err := c.rest.Do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("deleting module resource: %w", err)
	}
	return nil
}

func (d ModuleDraft) fields() map[string]string {
	fields := make(map[string]string)
	if d.Title != "" {
		fields["title"] = d.Title
	}
	if d.SystemPrompt != "" {
		fields["system_prompt"] = d.SystemPrompt
	}
	for i, criterion := range d.Criteria {
		fields[fmt.Sprintf("criteria[%d]", i)] = criterion
	}
	return fields
}
