package protocol

import "time"

// SessionEvent is broadcast whenever the conversation session changes shape:
// a state transition or a turn appended to the history.
type SessionEvent struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"` // "state" or "turn"
	State     string    `json:"state,omitempty"`
	PrevState string    `json:"prev_state,omitempty"`
	Speaker   string    `json:"speaker,omitempty"`
	Text      string    `json:"text,omitempty"`
	Degraded  bool      `json:"degraded,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PartialTranscript carries the latest in-progress recognition guess. Each
// message replaces the previous one for the session.
type PartialTranscript struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessage is a community chat entry that passed the moderation gate.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Body      string    `json:"body"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	EventKindState = "state"
	EventKindTurn  = "turn"

	SubjectSessionState      = "session.state"
	SubjectSessionTurn       = "session.turn"
	SubjectTranscriptPartial = "session.transcript.partial"
	SubjectChatMessage       = "chat.message"
)
