package training

import (
	"time"

	"github.com/google/uuid"

	"github.com/simcoach/simcoach/internal/api"
)

// Status is the lifecycle state of one training attempt.
type Status string

// Version lifecycle states.
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusClosed     Status = "closed"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusClosed:
		return true
	}
	return false
}

// AcceptsMessages reports whether a version in this state takes new
// trainee messages.
func (s Status) AcceptsMessages() bool {
	return s == StatusOpen || s == StatusInProgress
}

// progressTurns is the number of trainee turns that counts as a full
// session. Progress is a heuristic bound, not a server-verified metric.
const progressTurns = 10

// Message is one chat message as the client tracks it.
type Message struct {
	// ID identifies the message locally, so an optimistic entry can be
	// reconciled after the server round trip.
	ID      uuid.UUID
	Role    string
	Content string
	On      time.Time

	// Pending marks an optimistic trainee message the server has not
	// confirmed. Renderers must show it as unconfirmed.
	Pending bool
}

// Version is one attempt within a session.
type Version struct {
	Status      Status
	Score       *float64
	Progress    int
	StartedAt   time.Time
	CompletedAt *time.Time
	Messages    []Message
}

// Session is one trainee's conversation under a single chat id. A session
// always has at least one version once initialized, and CurrentVersion
// always has an entry in Versions.
type Session struct {
	AgentID        string
	UserID         string
	ChatID         string
	CurrentVersion int
	Versions       map[int]*Version
}

// Current returns the active version, or nil if the session is empty.
func (s *Session) Current() *Version {
	if s == nil {
		return nil
	}
	return s.Versions[s.CurrentVersion]
}

// Clone returns a deep copy. Engine operations work on clones so the
// caller's session is never mutated in place.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := &Session{
		AgentID:        s.AgentID,
		UserID:         s.UserID,
		ChatID:         s.ChatID,
		CurrentVersion: s.CurrentVersion,
		Versions:       make(map[int]*Version, len(s.Versions)),
	}
	for number, version := range s.Versions {
		clone.Versions[number] = version.clone()
	}
	return clone
}

func (v *Version) clone() *Version {
	if v == nil {
		return nil
	}
	clone := &Version{
		Status:    v.Status,
		Progress:  v.Progress,
		StartedAt: v.StartedAt,
		Messages:  make([]Message, len(v.Messages)),
	}
	copy(clone.Messages, v.Messages)
	if v.Score != nil {
		score := *v.Score
		clone.Score = &score
	}
	if v.CompletedAt != nil {
		completedAt := *v.CompletedAt
		clone.CompletedAt = &completedAt
	}
	return clone
}

// userMessageCount counts confirmed and pending trainee messages.
func (v *Version) userMessageCount() int {
	count := 0
	for _, msg := range v.Messages {
		if msg.Role == api.RoleUser {
			count++
		}
	}
	return count
}

// insertMessage appends msg keeping Messages sorted ascending by On.
// Equal timestamps keep insertion order, so a reply that shares its
// trainee message's timestamp stays after it.
func (v *Version) insertMessage(msg Message) {
	i := len(v.Messages)
	for i > 0 && v.Messages[i-1].On.After(msg.On) {
		i--
	}
	v.Messages = append(v.Messages, Message{})
	copy(v.Messages[i+1:], v.Messages[i:])
	v.Messages[i] = msg
}

// confirm clears the Pending flag on the message with the given id.
func (v *Version) confirm(id uuid.UUID) {
	for i := range v.Messages {
		if v.Messages[i].ID == id {
			v.Messages[i].Pending = false
			return
		}
	}
}

// progressFor maps a trainee-turn count onto the 0-100 progress estimate:
// min(floor(turns/10*100), 100).
func progressFor(turns int) int {
	progress := turns * 100 / progressTurns
	if progress > 100 {
		return 100
	}
	return progress
}

// refreshProgress recomputes progress from the message list, never letting
// it regress.
func (v *Version) refreshProgress() {
	if p := progressFor(v.userMessageCount()); p > v.Progress {
		v.Progress = p
	}
}
