package training

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/simcoach/simcoach/internal/api"
)

func TestProgressFor(t *testing.T) {
	tests := []struct {
		turns int
		want  int
	}{
		{0, 0},
		{1, 10},
		{3, 30},
		{9, 90},
		{10, 100},
		{15, 100},
	}

	for _, tt := range tests {
		if got := progressFor(tt.turns); got != tt.want {
			t.Errorf("progressFor(%d) = %d, want %d", tt.turns, got, tt.want)
		}
	}
}

func TestRefreshProgress_NeverRegresses(t *testing.T) {
	v := &Version{Progress: 40}
	v.refreshProgress() // zero messages would compute 0

	if v.Progress != 40 {
		t.Errorf("Progress = %d, want 40 (no regression)", v.Progress)
	}
}

func TestInsertMessage_KeepsOrder(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	v := &Version{}

	// Arrival order intentionally differs from timestamp order.
	v.insertMessage(Message{ID: uuid.New(), Role: api.RoleUser, Content: "second", On: base.Add(2 * time.Second)})
	v.insertMessage(Message{ID: uuid.New(), Role: api.RoleSystem, Content: "first", On: base})
	v.insertMessage(Message{ID: uuid.New(), Role: api.RoleAssistant, Content: "third", On: base.Add(3 * time.Second)})

	want := []string{"first", "second", "third"}
	for i, msg := range v.Messages {
		if msg.Content != want[i] {
			t.Errorf("Messages[%d].Content = %q, want %q", i, msg.Content, want[i])
		}
	}
	assertSorted(t, v.Messages)
}

func TestInsertMessage_EqualTimestampsKeepInsertionOrder(t *testing.T) {
	on := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	v := &Version{}
	v.insertMessage(Message{ID: uuid.New(), Role: api.RoleUser, Content: "question", On: on})
	v.insertMessage(Message{ID: uuid.New(), Role: api.RoleAssistant, Content: "answer", On: on})

	if v.Messages[0].Content != "question" || v.Messages[1].Content != "answer" {
		t.Errorf("equal-timestamp order = [%q, %q], want question before answer",
			v.Messages[0].Content, v.Messages[1].Content)
	}
}

func TestSessionClone_Independent(t *testing.T) {
	score := 7.5
	completedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	original := &Session{
		AgentID:        "module-42",
		UserID:         "user-7",
		ChatID:         "chat-1",
		CurrentVersion: 1,
		Versions: map[int]*Version{
			1: {
				Status:      StatusCompleted,
				Score:       &score,
				Progress:    100,
				CompletedAt: &completedAt,
				Messages: []Message{
					{ID: uuid.New(), Role: api.RoleUser, Content: "hello"},
				},
			},
		},
	}

	clone := original.Clone()
	clone.Versions[1].Status = StatusOpen
	clone.Versions[1].Messages[0].Content = "changed"
	*clone.Versions[1].Score = 1
	clone.Versions[2] = &Version{Status: StatusOpen}

	if original.Versions[1].Status != StatusCompleted {
		t.Error("mutating clone status leaked into original")
	}
	if original.Versions[1].Messages[0].Content != "hello" {
		t.Error("mutating clone messages leaked into original")
	}
	if *original.Versions[1].Score != 7.5 {
		t.Error("mutating clone score leaked into original")
	}
	if len(original.Versions) != 1 {
		t.Error("adding version to clone leaked into original")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status       Status
		valid        bool
		acceptsWrite bool
	}{
		{StatusOpen, true, true},
		{StatusInProgress, true, true},
		{StatusCompleted, true, false},
		{StatusClosed, true, false},
		{Status("archived"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.status.AcceptsMessages(); got != tt.acceptsWrite {
				t.Errorf("AcceptsMessages() = %v, want %v", got, tt.acceptsWrite)
			}
		})
	}
}

// assertSorted fails the test when messages are not ascending by On.
func assertSorted(t *testing.T, messages []Message) {
	t.Helper()
	for i := 1; i < len(messages); i++ {
		if messages[i].On.Before(messages[i-1].On) {
			t.Errorf("Messages[%d].On = %v before Messages[%d].On = %v",
				i, messages[i].On, i-1, messages[i-1].On)
		}
	}
}
