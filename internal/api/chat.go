package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Message roles as the backend uses them.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message in a chat transcript.
type ChatMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	On      time.Time `json:"on"`
}

// ChatHistory is the transcript the backend holds for an agent.
type ChatHistory struct {
	ChatID   string        `json:"chat_id"`
	Messages []ChatMessage `json:"messages"`
}

// ChatSummary is one row of the chat-history listing.
type ChatSummary struct {
	AgentID        string     `json:"agent_id"`
	UserID         string     `json:"user_id"`
	ChatID         string     `json:"chat_id"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"startedAt"`
	ClosedAt       *time.Time `json:"closedAt,omitempty"`
	CurrentVersion int        `json:"current_version"`
	IsCurrent      bool       `json:"is_current"`
}

// ChatPage is one server page of chat summaries.
type ChatPage struct {
	Chats      []ChatSummary `json:"chats"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalCount int           `json:"total_count"`
}

type createChatRequest struct {
	AgentID string `json:"agent_id"`
}

type createChatResponse struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id"`
}

type chatHistoryResponse struct {
	Message string      `json:"message"`
	Data    ChatHistory `json:"data"`
}

type sendMessageRequest struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

type sendMessageResponse struct {
	Message string      `json:"message"`
	Data    ChatMessage `json:"data"`
}

type updateChatStatusRequest struct {
	ChatID string `json:"chat_id"`
	Status string `json:"status"`
}

// CreateChat opens a new chat for the given agent and returns its id.
// This is the only call that allocates a chat id; training.Engine is
// responsible for never issuing it twice concurrently per agent/user pair.
func (c *Client) CreateChat(ctx context.Context, agentID string) (string, error) {
	var resp createChatResponse
	err := c.rest.Do(ctx, http.MethodPost, "/chat/create", nil, createChatRequest{AgentID: agentID}, &resp)
	if err != nil {
		return "", fmt.Errorf("creating chat: %w", err)
	}
	if resp.ChatID == "" {
		return "", fmt.Errorf("creating chat: backend returned empty chat_id")
	}
	return resp.ChatID, nil
}

// ChatHistory fetches the existing transcript for an agent. A chat that has
// never been started yields an empty ChatID.
func (c *Client) ChatHistory(ctx context.Context, agentID string) (*ChatHistory, error) {
	var resp chatHistoryResponse
	err := c.rest.Do(ctx, http.MethodGet, "/chat/message/"+url.PathEscape(agentID), nil, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetching chat history: %w", err)
	}
	return &resp.Data, nil
}

// SendChatMessage sends one trainee message and returns the simulated
// counterpart's reply, timestamped by the server.
func (c *Client) SendChatMessage(ctx context.Context, chatID, message string) (ChatMessage, error) {
	var resp sendMessageResponse
	err := c.rest.Do(ctx, http.MethodPost, "/chat/message", nil,
		sendMessageRequest{ChatID: chatID, Message: message}, &resp)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("sending message: %w", err)
	}
	return resp.Data, nil
}

// ListChats fetches one page of chat history. status may be empty for all.
func (c *Client) ListChats(ctx context.Context, status string, page, limit int) (*ChatPage, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var resp ChatPage
	if err := c.rest.Do(ctx, http.MethodGet, "/chat/list", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	return &resp, nil
}

// UpdateChatStatus pushes a status transition (open, in_progress, closed)
// to the backend. Completion is reported through TrackProgress instead.
func (c *Client) UpdateChatStatus(ctx context.Context, chatID, status string) error {
	err := c.rest.Do(ctx, http.MethodPut, "/chat/status/"+url.PathEscape(chatID), nil,
		updateChatStatusRequest{ChatID: chatID, Status: status}, nil)
	if err != nil {
		return fmt.Errorf("updating chat status: %w", err)
	}
	return nil
}
