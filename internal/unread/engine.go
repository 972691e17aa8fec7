// Package unread derives unread counts and delivery/read receipts from the
// message log and participant state. It owns no storage of its own except
// the device-local manual-unread flag.
package unread

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inbox-service/internal/faults"
	"inbox-service/internal/localstore"
	"inbox-service/internal/models"
	"inbox-service/internal/preferences"
	"inbox-service/internal/repositories"
)

// MessageCounter is the slice of the message store the engine reads.
type MessageCounter interface {
	CountSince(ctx context.Context, threadID int, exceptSenderID int, since time.Time) (int, error)
	LatestOwnBefore(ctx context.Context, threadID int, senderID int, cutoff time.Time) (models.Message, error)
}

// PeerReads exposes another participant's read position. Counterpart state
// is always server state; a peer's device-local overrides are invisible by
// definition.
type PeerReads interface {
	LastRead(ctx context.Context, threadID int, userID int) (*time.Time, error)
}

// Engine computes unread and receipt state for one session.
type Engine struct {
	prefs    *preferences.Controller
	messages MessageCounter
	peers    PeerReads
	local    localstore.Store
	now      func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(prefs *preferences.Controller, messages MessageCounter, peers PeerReads, local localstore.Store) *Engine {
	return &Engine{
		prefs:    prefs,
		messages: messages,
		peers:    peers,
		local:    local,
		now:      time.Now,
	}
}

// UnreadCount counts messages from other senders newer than the viewer's
// last-read position. An unset position counts everything. Mute has no
// effect here: it suppresses notification chrome, not unread state.
func (e *Engine) UnreadCount(ctx context.Context, threadID int, userID int) (int, error) {
	state, err := e.prefs.Get(ctx, threadID, userID)
	if err != nil {
		return 0, err
	}
	since := time.Time{}
	if state.LastReadAt != nil {
		since = *state.LastReadAt
	}
	return e.messages.CountSince(ctx, threadID, userID, since)
}

// MarkRead advances the viewer's last-read position to now. The position
// only moves forward: a stale concurrent MarkRead cannot roll an already
// read thread back into a visible unread state. Marking read also clears
// the manual-unread flag.
func (e *Engine) MarkRead(ctx context.Context, threadID int, userID int) error {
	state, err := e.prefs.Get(ctx, threadID, userID)
	if err != nil {
		return err
	}
	now := e.now()
	if state.LastReadAt != nil && !now.After(*state.LastReadAt) {
		return e.clearManualUnread(threadID, userID)
	}

	patch := models.ParticipantPatch{LastReadAt: &now}
	if _, err := e.prefs.SetPreference(ctx, threadID, userID, patch); err != nil {
		return err
	}
	return e.clearManualUnread(threadID, userID)
}

// MarkUnread raises the client-observable unread flag. It is layered on
// top of the real counts, lives only on this device and has no
// peer-visible effect; the counterpart's receipt state never sees it.
func (e *Engine) MarkUnread(threadID int, userID int) error {
	return e.local.Set(e.manualKey(threadID, userID), "1")
}

// ManualUnread reports whether the manual flag is raised.
func (e *Engine) ManualUnread(threadID int, userID int) (bool, error) {
	_, ok, err := e.local.Get(e.manualKey(threadID, userID))
	return ok, err
}

func (e *Engine) clearManualUnread(threadID, userID int) error {
	return e.local.Delete(e.manualKey(threadID, userID))
}

func (e *Engine) manualKey(threadID, userID int) string {
	return fmt.Sprintf("unread/%d/%d", threadID, userID)
}

// Receipt is the viewer-facing read-receipt projection for a connection
// thread.
type Receipt struct {
	CounterpartLastRead *time.Time `json:"counterpart_last_read,omitempty"`
	// LatestSeenMessageID anchors the single Seen marker: the most recent
	// message authored by the viewer with created_at <= the counterpart's
	// last-read position. Zero when nothing qualifies.
	LatestSeenMessageID int `json:"latest_seen_message_id,omitempty"`
}

// Receipts computes the Seen marker for the viewer against the
// counterpart's read position. Connection threads only.
func (e *Engine) Receipts(ctx context.Context, threadID int, viewerID int, counterpartID int) (Receipt, error) {
	lastRead, err := e.peers.LastRead(ctx, threadID, counterpartID)
	if faults.IsCapabilityMissing(err) {
		// A deployment without server-side read positions has no receipts
		// to show; that degrades the display, it is not an error.
		return Receipt{}, nil
	}
	if err != nil {
		return Receipt{}, err
	}
	if lastRead == nil {
		return Receipt{}, nil
	}

	msg, err := e.messages.LatestOwnBefore(ctx, threadID, viewerID, *lastRead)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		// No outgoing message is confirmed read yet.
		return Receipt{CounterpartLastRead: lastRead}, nil
	}
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{CounterpartLastRead: lastRead, LatestSeenMessageID: msg.ID}, nil
}
