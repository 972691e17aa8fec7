package models

import "time"

// Message is one entry in a thread's append-only log. Bodies are immutable
// after creation; removal is a soft delete by the original sender. The body
// is stored raw, including any leading reply marker.
type Message struct {
	ID        int       `db:"id" json:"id"`
	ThreadID  int       `db:"thread_id" json:"thread_id"`
	SenderID  int       `db:"sender_id" json:"sender_id"`
	Body      string    `db:"body" json:"body"`
	Removed   bool      `db:"removed" json:"removed"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ThreadEvent is broadcast through websockets to thread subscribers.
type ThreadEvent struct {
	Type      string              `json:"type"`
	Message   *Message            `json:"message,omitempty"`
	MessageID int                 `json:"message_id,omitempty"`
	UserID    int                 `json:"user_id,omitempty"`
	Reactions []ReactionAggregate `json:"reactions,omitempty"`
}
