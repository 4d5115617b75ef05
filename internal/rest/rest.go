// Package rest provides the HTTP client shared by every API client in
// simcoach.
//
// It attaches the bearer credential to each request, maps HTTP failures into
// typed errors (401 becomes ErrUnauthorized so callers can route the user to
// sign-in), and optionally records one trace span per request. It knows
// nothing about individual resources; see internal/api for those.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/simcoach/simcoach/internal/log"
)

// ErrUnauthorized indicates the backend rejected the credential (HTTP 401).
// The CLI reacts by asking the user to sign in again, the terminal analogue
// of the browser's hard redirect to the sign-in page.
var ErrUnauthorized = errors.New("authentication required")

// StatusError is returned for non-2xx responses other than 401.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// TokenSource supplies the current bearer token. An error means no token is
// available; the request is then sent unauthenticated and the backend decides.
type TokenSource interface {
	Load() (string, error)
}

// FileField describes one file part of a multipart request.
type FileField struct {
	Field    string
	Filename string
	Content  io.Reader
}

// Config contains the required parameters for Client.
type Config struct {
	// APIRoot is the fully qualified API root (base URL + environment
	// segment), e.g. "https://api.simcoach.dev/dev".
	APIRoot string

	Tokens  TokenSource
	Logger  log.Logger
	Timeout time.Duration

	// Tracer enables one span per request when set. Nil disables tracing.
	Tracer trace.Tracer
}

// Client is the bearer-authenticated HTTP client for the training backend.
type Client struct {
	root   string
	tokens TokenSource
	http   *http.Client
	logger log.Logger
	tracer trace.Tracer
}

// New creates a Client. APIRoot, Tokens and Logger are required.
func New(cfg Config) (*Client, error) {
	if cfg.APIRoot == "" {
		return nil, errors.New("API root is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token source is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		root:   strings.TrimRight(cfg.APIRoot, "/"),
		tokens: cfg.Tokens,
		http:   &http.Client{Timeout: timeout},
		logger: cfg.Logger,
		tracer: cfg.Tracer,
	}, nil
}

// Do performs a JSON request against path (which must start with "/") and
// decodes the response into result when result is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, query, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, result)
}

// DoMultipart performs a multipart/form-data request, used for module
// uploads that carry an optional PDF alongside regular fields.
func (c *Client) DoMultipart(ctx context.Context, method, path string, fields map[string]string, file *FileField, result any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("writing form field %q: %w", key, err)
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return fmt.Errorf("creating form file: %w", err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return fmt.Errorf("copying file content: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, method, path, nil, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.send(req, result)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.root + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	token, err := c.tokens.Load()
	if err != nil {
		// Unauthenticated endpoints (sign-in, sign-up) are legitimate;
		// everything else fails with 401 and surfaces through send.
		c.logger.Debug("no credential available, sending unauthenticated request",
			"method", method, "path", path)
	} else {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

func (c *Client) send(req *http.Request, result any) error {
	if c.tracer == nil {
		return c.roundTrip(req, result)
	}

	ctx, span := c.tracer.Start(req.Context(), "rest.request", trace.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("url.path", req.URL.Path),
	))
	defer span.End()

	err := c.roundTrip(req.WithContext(ctx), result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) roundTrip(req *http.Request, result any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug("request completed",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w (status 401)", ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
