package models

import "time"

// ThreadKind distinguishes the two conversation shapes the inbox unifies.
type ThreadKind string

const (
	KindConnection ThreadKind = "connection"
	KindTrip       ThreadKind = "trip"
)

// Valid reports whether the kind is one of the two known values.
func (k ThreadKind) Valid() bool {
	return k == KindConnection || k == KindTrip
}

// Thread is a conversation rooted on a connection or a trip. At most one
// thread exists per (kind, scope_id); it is created lazily on first resolve
// and never hard-deleted.
type Thread struct {
	ID        int        `db:"id" json:"id"`
	Kind      ThreadKind `db:"kind" json:"kind"`
	ScopeID   int        `db:"scope_id" json:"scope_id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// ThreadSummary is the inbox-list view of a thread for one viewer.
type ThreadSummary struct {
	Thread         Thread    `json:"thread"`
	Token          string    `json:"token"`
	CounterpartID  int       `json:"counterpart_id,omitempty"`
	UnreadCount    int       `json:"unread_count"`
	LastMessage    *Message  `json:"last_message,omitempty"`
	Archived       bool      `json:"archived"`
	Muted          bool      `json:"muted"`
	PinnedAt       *time.Time `json:"pinned_at,omitempty"`
	ManualUnread   bool      `json:"manual_unread"`
	LocalOnlyState bool      `json:"local_only_state"`
}

// ComposeTarget is a derived projection of somewhere a new thread can be
// started: an accepted connection counterpart or an accepted trip scope.
type ComposeTarget struct {
	Token         string     `json:"token"`
	Kind          ThreadKind `json:"kind"`
	ScopeID       int        `json:"scope_id"`
	CounterpartID int        `json:"counterpart_id,omitempty"`
}
