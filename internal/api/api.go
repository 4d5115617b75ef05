// Package api is the typed client for the training backend: chats,
// modules, users, training progress and analytics. Transport concerns
// (bearer auth, timeouts, error mapping) live in internal/rest; this
// package only shapes requests and responses.
package api

import (
	"errors"

	"github.com/simcoach/simcoach/internal/log"
	"github.com/simcoach/simcoach/internal/rest"
)

// Client calls the training backend.
type Client struct {
	rest   *rest.Client
	logger log.Logger
}

// New creates a Client.
func New(transport *rest.Client, logger log.Logger) (*Client, error) {
	if transport == nil {
		return nil, errors.New("rest client is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Client{rest: transport, logger: logger}, nil
}
