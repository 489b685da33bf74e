package chat

import "time"

// Message persists individual turns for the stub agent transcript.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Emotion   string    `json:"emotion,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TurnRequest is one user turn sent to a session.
type TurnRequest struct {
	SessionID string
	Text      string
	Extras    map[string]any
}
