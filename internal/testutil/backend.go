package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// WireMessage mirrors the backend's chat message shape.
type WireMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	On      time.Time `json:"on"`
}

// Backend is an in-memory stand-in for the training platform API. It covers
// the endpoints the client exercises and lets tests inject failures and
// inspect call counts.
type Backend struct {
	Server *httptest.Server

	// Clock drives server-side timestamps. Sharing it with the client
	// under test keeps local and remote messages in one monotonic stream.
	Clock *Clock

	mu             sync.Mutex
	nextChatID     int
	historyByAgent map[string][]WireMessage
	chatIDByAgent  map[string]string
	statusByChat   map[string]string

	createCalls   int
	sendCalls     int
	progressCalls int

	// Failure injection. A zero value means the endpoint succeeds.
	FailCreate   bool
	FailHistory  bool
	FailSend     bool
	FailStatus   bool
	FailProgress bool

	// Reply produces the assistant response for a trainee message.
	// Defaults to a canned acknowledgement.
	Reply func(message string) string

	// CreateDelay widens the window for concurrent-initialize tests;
	// SendDelay does the same for overlapping-send tests.
	CreateDelay time.Duration
	SendDelay   time.Duration
}

// NewBackend starts a fake backend. The caller owns no cleanup; Close is
// registered through the returned struct's Server.
func NewBackend() *Backend {
	b := &Backend{
		Clock:          NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)),
		historyByAgent: make(map[string][]WireMessage),
		chatIDByAgent:  make(map[string]string),
		statusByChat:   make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/create", b.handleCreate)
	mux.HandleFunc("GET /chat/message/{agent}", b.handleHistory)
	mux.HandleFunc("POST /chat/message", b.handleSend)
	mux.HandleFunc("PUT /chat/status/{chat}", b.handleStatus)
	mux.HandleFunc("POST /training/progress", b.handleProgress)

	b.Server = httptest.NewServer(mux)
	return b
}

// Close shuts the fake backend down.
func (b *Backend) Close() { b.Server.Close() }

// URL returns the backend's base URL.
func (b *Backend) URL() string { return b.Server.URL }

// SeedHistory installs an existing transcript for an agent, so Initialize
// takes the resume path.
func (b *Backend) SeedHistory(agentID, chatID string, messages []WireMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chatIDByAgent[agentID] = chatID
	b.historyByAgent[agentID] = messages
	b.statusByChat[chatID] = "in_progress"
}

// CreateCalls reports how many chat-create requests arrived.
func (b *Backend) CreateCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createCalls
}

// ProgressCalls reports how many progress reports arrived.
func (b *Backend) ProgressCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progressCalls
}

// ChatStatus returns the last status pushed for a chat.
func (b *Backend) ChatStatus(chatID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusByChat[chatID]
}

func (b *Backend) tick() time.Time {
	return b.Clock.Now()
}

func (b *Backend) handleCreate(w http.ResponseWriter, r *http.Request) {
	if b.CreateDelay > 0 {
		time.Sleep(b.CreateDelay)
	}

	b.mu.Lock()
	b.createCalls++
	if b.FailCreate {
		b.mu.Unlock()
		http.Error(w, "create failed", http.StatusInternalServerError)
		return
	}

	var req struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.mu.Unlock()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.nextChatID++
	chatID := fmt.Sprintf("chat-%d", b.nextChatID)
	b.chatIDByAgent[req.AgentID] = chatID
	b.statusByChat[chatID] = "open"
	b.mu.Unlock()

	writeJSON(w, map[string]string{"message": "created", "chat_id": chatID})
}

func (b *Backend) handleHistory(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.FailHistory {
		http.Error(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}

	agentID := r.PathValue("agent")
	writeJSON(w, map[string]any{
		"message": "ok",
		"data": map[string]any{
			"chat_id":  b.chatIDByAgent[agentID],
			"messages": b.historyByAgent[agentID],
		},
	})
}

func (b *Backend) handleSend(w http.ResponseWriter, r *http.Request) {
	if b.SendDelay > 0 {
		time.Sleep(b.SendDelay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.sendCalls++
	if b.FailSend {
		http.Error(w, "send failed", http.StatusBadGateway)
		return
	}

	var req struct {
		ChatID  string `json:"chat_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reply := "Understood. Tell me more."
	if b.Reply != nil {
		reply = b.Reply(req.Message)
	}

	writeJSON(w, map[string]any{
		"message": "ok",
		"data": WireMessage{
			Role:    "assistant",
			Content: reply,
			On:      b.tick(),
		},
	})
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.FailStatus {
		http.Error(w, "status update failed", http.StatusInternalServerError)
		return
	}

	var req struct {
		ChatID string `json:"chat_id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	chatID := r.PathValue("chat")
	b.statusByChat[chatID] = req.Status
	writeJSON(w, map[string]string{"message": "updated", "chat_id": chatID})
}

func (b *Backend) handleProgress(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.progressCalls++
	if b.FailProgress {
		http.Error(w, "progress tracking unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"message": "recorded"})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}
