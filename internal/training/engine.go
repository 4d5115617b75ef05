package training

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/simcoach/simcoach/internal/api"
	"github.com/simcoach/simcoach/internal/log"
)

// Scenario is the content used to seed a fresh attempt: the system prompt
// that frames the simulated customer and the scripted opening line. The
// fallback scenario comes from configuration, never from inside this
// package, so tests can substitute deterministic fixtures.
type Scenario struct {
	Title        string
	SystemPrompt string
	Greeting     string
}

// Config contains all required parameters for the lifecycle engine.
type Config struct {
	API    *api.Client
	Logger log.Logger

	// Fallback is used when the module lookup fails; its Greeting seeds the
	// scripted opening assistant message of every new attempt.
	Fallback Scenario

	// RateLimiter optionally throttles SendMessage calls. Nil disables.
	RateLimiter *rate.Limiter

	// Now is the time source for locally created messages. Nil means
	// time.Now; tests inject a fixed clock.
	Now func() time.Time
}

func (cfg Config) validate() error {
	if cfg.API == nil {
		return errors.New("api client is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Fallback.SystemPrompt == "" || cfg.Fallback.Greeting == "" {
		return errors.New("fallback scenario is required")
	}
	return nil
}

// Engine mediates every state transition of a training session against the
// remote chat API.
type Engine struct {
	api      *api.Client
	logger   log.Logger
	fallback Scenario
	limiter  *rate.Limiter
	now      func() time.Time

	// initGroup collapses concurrent Initialize calls per agent/user pair
	// so at most one remote create is issued.
	initGroup singleflight.Group

	mu      sync.Mutex
	sending map[string]bool // chat ids with a send in flight
}

// NewEngine creates a lifecycle engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		api:      cfg.API,
		logger:   cfg.Logger,
		fallback: cfg.Fallback,
		limiter:  cfg.RateLimiter,
		now:      now,
		sending:  make(map[string]bool),
	}, nil
}

// Initialize returns the trainee's session for a module, resuming the
// remote transcript when one exists and creating a fresh chat otherwise.
// Concurrent calls for the same (agentID, userID) pair share one flight;
// only that flight may create a remote chat id.
func (e *Engine) Initialize(ctx context.Context, agentID, userID string) (*Session, error) {
	key := agentID + "\x00" + userID
	result, err, _ := e.initGroup.Do(key, func() (any, error) {
		return e.initialize(ctx, agentID, userID)
	})
	if err != nil {
		return nil, err
	}
	// Each caller owns an independent copy of the shared flight's result.
	return result.(*Session).Clone(), nil
}

// Recover discards local state and rebuilds the session from the server.
// It shares Initialize's fallback-to-create path.
func (e *Engine) Recover(ctx context.Context, agentID, userID string) (*Session, error) {
	e.logger.Info("recovering training session", "agent_id", agentID, "user_id", userID)
	return e.Initialize(ctx, agentID, userID)
}

func (e *Engine) initialize(ctx context.Context, agentID, userID string) (*Session, error) {
	history, historyErr := e.api.ChatHistory(ctx, agentID)
	if historyErr == nil && history.ChatID != "" {
		e.logger.Debug("resuming existing chat",
			"agent_id", agentID, "chat_id", history.ChatID, "messages", len(history.Messages))
		return e.resumeSession(agentID, userID, history), nil
	}
	if historyErr != nil {
		e.logger.Debug("history fetch failed, creating new chat", "agent_id", agentID, "error", historyErr)
	}

	chatID, createErr := e.api.CreateChat(ctx, agentID)
	if createErr != nil {
		if historyErr != nil {
			return nil, fmt.Errorf("%w: history fetch: %v; create: %v", ErrInitFailed, historyErr, createErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrInitFailed, createErr)
	}

	return &Session{
		AgentID:        agentID,
		UserID:         userID,
		ChatID:         chatID,
		CurrentVersion: 1,
		Versions:       map[int]*Version{1: e.seedVersion(ctx, agentID)},
	}, nil
}

// resumeSession rebuilds version 1 from the server transcript. The backend
// does not return per-version status or score, so both are derived: a
// transcript with trainee turns is at least in progress.
func (e *Engine) resumeSession(agentID, userID string, history *api.ChatHistory) *Session {
	version := &Version{
		Status:    StatusOpen,
		StartedAt: e.now(),
	}
	for _, wire := range history.Messages {
		version.insertMessage(Message{
			ID:      uuid.New(),
			Role:    wire.Role,
			Content: wire.Content,
			On:      wire.On,
		})
	}
	if len(version.Messages) > 0 {
		version.StartedAt = version.Messages[0].On
	}
	if version.userMessageCount() > 0 {
		version.Status = StatusInProgress
	}
	version.refreshProgress()

	return &Session{
		AgentID:        agentID,
		UserID:         userID,
		ChatID:         history.ChatID,
		CurrentVersion: 1,
		Versions:       map[int]*Version{1: version},
	}
}

// seedVersion builds a fresh attempt: the module's system prompt plus the
// scripted opening line. When the module lookup fails the configured
// fallback scenario steps in, so the trainee never faces an empty chat.
func (e *Engine) seedVersion(ctx context.Context, agentID string) *Version {
	prompt := e.fallback.SystemPrompt
	if module, err := e.api.Module(ctx, agentID); err == nil && module.SystemPrompt != "" {
		prompt = module.SystemPrompt
	} else if err != nil {
		e.logger.Debug("module lookup failed, using fallback scenario", "agent_id", agentID, "error", err)
	}

	startedAt := e.now()
	version := &Version{
		Status:    StatusOpen,
		StartedAt: startedAt,
	}
	version.insertMessage(Message{
		ID:      uuid.New(),
		Role:    api.RoleSystem,
		Content: prompt,
		On:      startedAt,
	})
	version.insertMessage(Message{
		ID:      uuid.New(),
		Role:    api.RoleAssistant,
		Content: e.fallback.Greeting,
		On:      e.now(),
	})
	return version
}

// SendMessage appends the trainee's message, exchanges it with the backend
// and appends the reply. The returned session is always a fresh copy; on
// failure it still carries the trainee message flagged Pending so the
// caller can render it as unconfirmed. Overlapping sends for one chat are
// rejected with ErrSendInFlight.
func (e *Engine) SendMessage(ctx context.Context, session *Session, text string) (*Session, Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return session, Message{}, ErrEmptyMessage
	}
	if session == nil || session.ChatID == "" {
		return session, Message{}, ErrNotInitialized
	}
	current := session.Current()
	if current == nil {
		return session, Message{}, ErrNotInitialized
	}
	switch current.Status {
	case StatusClosed:
		return session, Message{}, ErrSessionClosed
	case StatusCompleted:
		return session, Message{}, ErrSessionCompleted
	}

	if err := e.acquireSend(session.ChatID); err != nil {
		return session, Message{}, err
	}
	defer e.releaseSend(session.ChatID)

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return session, Message{}, fmt.Errorf("waiting for send slot: %w", err)
		}
	}

	updated := session.Clone()
	version := updated.Current()

	userMsg := Message{
		ID:      uuid.New(),
		Role:    api.RoleUser,
		Content: text,
		On:      e.now(),
		Pending: true,
	}
	version.insertMessage(userMsg)

	reply, err := e.api.SendChatMessage(ctx, updated.ChatID, text)
	if err != nil {
		// The optimistic message stays, flagged Pending; no assistant
		// message is invented for a failed exchange.
		return updated, Message{}, fmt.Errorf("send failed for chat %s: %w", updated.ChatID, err)
	}

	version.confirm(userMsg.ID)

	assistantMsg := Message{
		ID:      uuid.New(),
		Role:    reply.Role,
		Content: reply.Content,
		On:      reply.On,
	}
	if assistantMsg.Role == "" {
		assistantMsg.Role = api.RoleAssistant
	}
	if assistantMsg.On.IsZero() {
		assistantMsg.On = e.now()
	}
	version.insertMessage(assistantMsg)

	version.refreshProgress()
	if version.Status == StatusOpen {
		version.Status = StatusInProgress
	}

	return updated, assistantMsg, nil
}

// Complete marks the current attempt completed with a score on the 0-10
// scale and reports it to the tracking endpoint. Tracking is best-effort:
// its failure is logged, never undoing the local transition. Completing an
// already-completed version is a no-op.
func (e *Engine) Complete(ctx context.Context, session *Session, score float64) (*Session, error) {
	if session == nil || session.Current() == nil {
		return session, ErrNotInitialized
	}
	if score < 0 || score > 10 {
		return session, fmt.Errorf("%w: got %.1f", ErrInvalidScore, score)
	}

	current := session.Current()
	switch current.Status {
	case StatusCompleted:
		return session, nil
	case StatusClosed:
		return session, fmt.Errorf("%w: cannot complete a closed session", ErrInvalidTransition)
	}

	updated := session.Clone()
	version := updated.Current()
	completedAt := e.now()
	version.Status = StatusCompleted
	version.CompletedAt = &completedAt
	version.Score = &score
	version.Progress = 100

	if err := e.api.TrackProgress(ctx, api.ProgressReport{
		UserID:   updated.UserID,
		ModuleID: updated.AgentID,
		ChatID:   updated.ChatID,
		Score:    score,
	}); err != nil {
		e.logger.Warn("progress tracking failed, completion kept locally",
			"chat_id", updated.ChatID, "error", err)
	}

	return updated, nil
}

// Close stops the current attempt. Closing an already-closed version is a
// no-op; a completed version cannot be closed. The status change is pushed
// to the backend first, so a remote failure leaves local state untouched.
func (e *Engine) Close(ctx context.Context, session *Session) (*Session, error) {
	if session == nil || session.Current() == nil {
		return session, ErrNotInitialized
	}

	switch session.Current().Status {
	case StatusClosed:
		return session, nil
	case StatusCompleted:
		return session, fmt.Errorf("%w: cannot close a completed session", ErrInvalidTransition)
	}

	if err := e.api.UpdateChatStatus(ctx, session.ChatID, string(StatusClosed)); err != nil {
		return session, fmt.Errorf("closing chat %s: %w", session.ChatID, err)
	}

	updated := session.Clone()
	updated.Current().Status = StatusClosed
	return updated, nil
}

// Reopen resumes a closed attempt. Only closed versions can be reopened.
func (e *Engine) Reopen(ctx context.Context, session *Session) (*Session, error) {
	if session == nil || session.Current() == nil {
		return session, ErrNotInitialized
	}
	if session.Current().Status != StatusClosed {
		return session, fmt.Errorf("%w: reopen requires a closed session, got %q",
			ErrInvalidTransition, session.Current().Status)
	}

	if err := e.api.UpdateChatStatus(ctx, session.ChatID, string(StatusInProgress)); err != nil {
		return session, fmt.Errorf("reopening chat %s: %w", session.ChatID, err)
	}

	updated := session.Clone()
	updated.Current().Status = StatusInProgress
	return updated, nil
}

// Restart begins a fresh attempt under the same chat id, preserving every
// prior version's history. The new version is seeded like a brand new
// session.
func (e *Engine) Restart(ctx context.Context, session *Session) (*Session, error) {
	if session == nil || session.ChatID == "" || session.Current() == nil {
		return session, ErrNotInitialized
	}

	updated := session.Clone()
	next := updated.CurrentVersion
	for number := range updated.Versions {
		if number > next {
			next = number
		}
	}
	next++

	updated.Versions[next] = e.seedVersion(ctx, updated.AgentID)
	updated.CurrentVersion = next

	e.logger.Info("restarted training session",
		"chat_id", updated.ChatID, "version", next)
	return updated, nil
}

func (e *Engine) acquireSend(chatID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sending[chatID] {
		return ErrSendInFlight
	}
	e.sending[chatID] = true
	return nil
}

func (e *Engine) releaseSend(chatID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sending, chatID)
}
