package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// User is one account as the user listing returns it.
type User struct {
	UserID      string `json:"user_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	AccessLevel int    `json:"access_level"`
	IsDeleted   bool   `json:"is_deleted"`
}

// SignUpRequest carries the fields required to register an account.
type SignUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type addUsersRequest struct {
	Emails      string `json:"emails"`
	AccessLevel int    `json:"access_level"`
}

type setAccessLevelRequest struct {
	Email          string `json:"email"`
	NewAccessLevel int    `json:"new_access_level"`
}

// SignIn exchanges credentials for a bearer token.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	var resp authResponse
	err := c.rest.Do(ctx, http.MethodPost, "/user/signin", nil, signInRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return "", fmt.Errorf("signing in: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("signing in: backend returned empty token")
	}
	return resp.Token, nil
}

// SignUp registers an account and returns its bearer token.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (string, error) {
	var resp authResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/user/signup", nil, req, &resp); err != nil {
		return "", fmt.Errorf("signing up: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("signing up: backend returned empty token")
	}
	return resp.Token, nil
}

// ListUsers fetches one page of users. Unlike the chat and module listings,
// this endpoint filters by search text server-side.
func (c *Client) ListUsers(ctx context.Context, filterType, search string, page, pageSize int) ([]User, error) {
	query := url.Values{}
	if filterType == "" {
		filterType = "all"
	}
	query.Set("filter_type", filterType)
	query.Set("search", search)
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))

	var users []User
	if err := c.rest.Do(ctx, http.MethodGet, "/user/list", query, nil, &users); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// AddAllowedUsers whitelists comma-separated email addresses at the given
// access level so they can sign up.
func (c *Client) AddAllowedUsers(ctx context.Context, emails string, accessLevel int) error {
	err := c.rest.Do(ctx, http.MethodPost, "/user/allowed-users", nil,
		addUsersRequest{Emails: emails, AccessLevel: accessLevel}, nil)
	if err != nil {
		return fmt.Errorf("adding allowed users: %w", err)
	}
	return nil
}

// SetAccessLevel changes an account's access level.
func (c *Client) SetAccessLevel(ctx context.Context, email string, level int) error {
	err := c.rest.Do(ctx, http.MethodPost, "/user/set-access-level", nil,
		setAccessLevelRequest{Email: email, NewAccessLevel: level}, nil)
	if err != nil {
		return fmt.Errorf("setting access level: %w", err)
	}
	return nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	if err := c.rest.Do(ctx, http.MethodDelete, "/user/"+url.PathEscape(userID), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}
