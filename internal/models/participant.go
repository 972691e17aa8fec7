package models

import "time"

// ParticipantState is the per-(thread, user) read/mute/archive/pin row.
// One row per pair, upserted idempotently. A mutedUntil in the past means
// not muted and is treated as expired on read, not lazily deleted.
type ParticipantState struct {
	ThreadID   int        `db:"thread_id" json:"thread_id"`
	UserID     int        `db:"user_id" json:"user_id"`
	LastReadAt *time.Time `db:"last_read_at" json:"last_read_at,omitempty"`
	ArchivedAt *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	MutedUntil *time.Time `db:"muted_until" json:"muted_until,omitempty"`
	PinnedAt   *time.Time `db:"pinned_at" json:"pinned_at,omitempty"`
}

// Archived reports whether the thread is archived for this user.
func (s ParticipantState) Archived() bool {
	return s.ArchivedAt != nil
}

// Muted reports whether the mute is still in effect at now.
func (s ParticipantState) Muted(now time.Time) bool {
	return s.MutedUntil != nil && s.MutedUntil.After(now)
}

// ParticipantPatch is a partial update of ParticipantState. A nil field is
// untouched; a non-nil zero time clears the field on the server.
type ParticipantPatch struct {
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	MutedUntil *time.Time `json:"muted_until,omitempty"`
	PinnedAt   *time.Time `json:"pinned_at,omitempty"`
}

// Empty reports whether the patch touches no fields.
func (p ParticipantPatch) Empty() bool {
	return p.LastReadAt == nil && p.ArchivedAt == nil && p.MutedUntil == nil && p.PinnedAt == nil
}
