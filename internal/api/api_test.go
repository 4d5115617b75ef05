package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/simcoach/simcoach/internal/rest"
	"github.com/simcoach/simcoach/internal/testutil"
)

type staticTokens struct{}

func (staticTokens) Load() (string, error) { return "test-token", nil }

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	transport, err := rest.New(rest.Config{
		APIRoot: baseURL,
		Tokens:  staticTokens{},
		Logger:  testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("rest.New() error = %v", err)
	}
	client, err := New(transport, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestCreateChat(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()
	client := newClient(t, backend.URL())

	chatID, err := client.CreateChat(context.Background(), "module-42")
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}
	if chatID == "" {
		t.Error("CreateChat() returned empty chat id")
	}
}

func TestCreateChat_EmptyChatID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "ok", "chat_id": ""})
	}))
	defer server.Close()
	client := newClient(t, server.URL)

	if _, err := client.CreateChat(context.Background(), "module-42"); err == nil {
		t.Error("CreateChat() error = nil, want error for empty chat_id")
	}
}

func TestChatHistory_NeverStarted(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()
	client := newClient(t, backend.URL())

	history, err := client.ChatHistory(context.Background(), "module-42")
	if err != nil {
		t.Fatalf("ChatHistory() error = %v", err)
	}
	if history.ChatID != "" {
		t.Errorf("ChatID = %q, want empty for a never-started chat", history.ChatID)
	}
	if len(history.Messages) != 0 {
		t.Errorf("len(Messages) = %d, want 0", len(history.Messages))
	}
}

func TestChatHistory_Seeded(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()
	when := time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC)
	backend.SeedHistory("module-42", "chat-7", []testutil.WireMessage{
		{Role: "system", Content: "scenario", On: when},
		{Role: "user", Content: "hello", On: when.Add(time.Second)},
	})
	client := newClient(t, backend.URL())

	history, err := client.ChatHistory(context.Background(), "module-42")
	if err != nil {
		t.Fatalf("ChatHistory() error = %v", err)
	}
	if history.ChatID != "chat-7" {
		t.Errorf("ChatID = %q, want chat-7", history.ChatID)
	}
	if len(history.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(history.Messages))
	}
	if history.Messages[1].Role != RoleUser || history.Messages[1].Content != "hello" {
		t.Errorf("Messages[1] = %+v, want the seeded user message", history.Messages[1])
	}
}

func TestSendChatMessage(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()
	backend.Reply = func(message string) string { return "echo: " + message }
	client := newClient(t, backend.URL())

	reply, err := client.SendChatMessage(context.Background(), "chat-1", "hi there")
	if err != nil {
		t.Fatalf("SendChatMessage() error = %v", err)
	}
	if reply.Role != RoleAssistant {
		t.Errorf("Role = %q, want assistant", reply.Role)
	}
	if reply.Content != "echo: hi there" {
		t.Errorf("Content = %q, want echoed message", reply.Content)
	}
	if reply.On.IsZero() {
		t.Error("On is zero, want server timestamp")
	}
}

func TestUpdateChatStatus(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()
	client := newClient(t, backend.URL())

	if err := client.UpdateChatStatus(context.Background(), "chat-1", "closed"); err != nil {
		t.Fatalf("UpdateChatStatus() error = %v", err)
	}
	if got := backend.ChatStatus("chat-1"); got != "closed" {
		t.Errorf("backend status = %q, want closed", got)
	}
}

func TestSignIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/signin" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Email != "trainee@example.com" {
			t.Errorf("email = %q", req.Email)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "ok", "token": "jwt-token"})
	}))
	defer server.Close()
	client := newClient(t, server.URL)

	token, err := client.SignIn(context.Background(), "trainee@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if token != "jwt-token" {
		t.Errorf("token = %q, want jwt-token", token)
	}
}

func TestSignIn_EmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "ok", "token": ""})
	}))
	defer server.Close()
	client := newClient(t, server.URL)

	if _, err := client.SignIn(context.Background(), "a@b.c", "pw"); err == nil {
		t.Error("SignIn() error = nil, want error for empty token")
	}
}

func TestListUsers_QueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("filter_type") != "active" {
			t.Errorf("filter_type = %q, want active", q.Get("filter_type"))
		}
		if q.Get("search") != "alice" {
			t.Errorf("search = %q, want alice (server-side search)", q.Get("search"))
		}
		if q.Get("page") != "2" || q.Get("page_size") != "25" {
			t.Errorf("pagination = %s/%s, want 2/25", q.Get("page"), q.Get("page_size"))
		}
		_ = json.NewEncoder(w).Encode([]User{{UserID: "u1", Email: "alice@example.com", AccessLevel: 1}})
	}))
	defer server.Close()
	client := newClient(t, server.URL)

	users, err := client.ListUsers(context.Background(), "active", "alice", 2, 25)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 1 || users[0].UserID != "u1" {
		t.Errorf("users = %+v, want the one row", users)
	}
}

func TestModuleTitle_FallsBackToID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()
	client := newClient(t, server.URL)

	if got := client.ModuleTitle(context.Background(), "module-42"); got != "module-42" {
		t.Errorf("ModuleTitle() = %q, want the raw id on lookup failure", got)
	}
}

func TestCreateModule_Validation(t *testing.T) {
	client := newClient(t, "http://localhost:0")

	if _, err := client.CreateModule(context.Background(), ModuleDraft{SystemPrompt: "p"}, nil); err == nil {
		t.Error("CreateModule() without title should fail")
	}
	if _, err := client.CreateModule(context.Background(), ModuleDraft{Title: "t"}, nil); err == nil {
		t.Error("CreateModule() without system prompt should fail")
	}
}

func TestTrackProgress(t *testing.T) {
	backend := testutil.NewBackend()
	defer backend.Close()
	client := newClient(t, backend.URL())

	err := client.TrackProgress(context.Background(), ProgressReport{
		UserID:   "user-7",
		ModuleID: "module-42",
		ChatID:   "chat-1",
		Score:    8.5,
	})
	if err != nil {
		t.Fatalf("TrackProgress() error = %v", err)
	}
	if backend.ProgressCalls() != 1 {
		t.Errorf("ProgressCalls = %d, want 1", backend.ProgressCalls())
	}
}
