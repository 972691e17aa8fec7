// Package send implements the optimistic send pipeline: a staged message
// appears in the display log immediately, the durable append happens once
// per staged id, and failures land in a retryable failed state. Hitting
// the daily quota additionally locks the composer until local midnight.
package send

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"inbox-service/internal/faults"
	"inbox-service/internal/models"
	"inbox-service/internal/reply"
)

// State is the lifecycle of one outbound message.
type State string

const (
	StateStaged State = "staged"
	StateSent   State = "sent"
	StateFailed State = "failed"
)

// ErrComposerLocked is returned for new sends while the daily-limit lock
// is in effect.
var ErrComposerLocked = errors.New("composer locked until daily limit resets")

// Staged is one optimistic outbound message.
type Staged struct {
	ID        string      // client-local id, replaced by the durable id once sent
	ThreadID  int
	SenderID  int
	Text      string      // display text without the reply marker
	ReplyToID string      // original reply target, kept for re-staging
	State     State
	FailKind  faults.Kind // set when State is failed
	Message   *models.Message
	StagedAt  time.Time
}

// Appender is the durable append slice of the message store.
type Appender interface {
	Append(ctx context.Context, threadID int, senderID int, body string) (models.Message, error)
}

// Pipeline runs the staged -> sent|failed state machine for one session.
type Pipeline struct {
	appender Appender
	now      func() time.Time

	mu          sync.Mutex
	staged      map[string]*Staged
	order       []string
	lockedUntil time.Time
}

// NewPipeline constructs a Pipeline.
func NewPipeline(appender Appender) *Pipeline {
	return &Pipeline{
		appender: appender,
		now:      time.Now,
		staged:   make(map[string]*Staged),
	}
}

// Submit stages the message and performs its single durable append
// attempt. The returned Staged reflects the final state of this attempt.
// While the composer is locked, new sends are refused outright.
func (p *Pipeline) Submit(ctx context.Context, threadID int, senderID int, text string, replyToID string) (*Staged, error) {
	if !p.ComposerEnabled() {
		return nil, ErrComposerLocked
	}

	s := &Staged{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		SenderID:  senderID,
		Text:      text,
		ReplyToID: replyToID,
		State:     StateStaged,
		StagedAt:  p.now(),
	}
	p.track(s)

	msg, err := p.appender.Append(ctx, threadID, senderID, reply.Encode(replyToID, text))

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		s.State = StateFailed
		s.FailKind = faults.KindOf(err)
		if s.FailKind == faults.KindDailyLimitReached {
			// The lock outlives this one message: no new sends until the
			// limit window elapses, independent of any retry.
			p.lockedUntil = nextLocalMidnight(p.now())
		}
		return s, nil
	}

	s.State = StateSent
	s.Message = &msg
	return s, nil
}

// Retry re-stages a failed message. The original text and reply target go
// into a fresh staged id; the failed id is discarded so duplicate
// detection never has two attempts sharing an id.
func (p *Pipeline) Retry(ctx context.Context, stagedID string) (*Staged, error) {
	p.mu.Lock()
	old, ok := p.staged[stagedID]
	if !ok || old.State != StateFailed {
		p.mu.Unlock()
		return nil, errors.New("no failed staged message with that id")
	}
	p.untrackLocked(stagedID)
	p.mu.Unlock()

	return p.Submit(ctx, old.ThreadID, old.SenderID, old.Text, old.ReplyToID)
}

// Discard drops a failed staged message without retrying.
func (p *Pipeline) Discard(stagedID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.untrackLocked(stagedID)
}

// Pending returns the session's staged messages in submission order.
func (p *Pipeline) Pending() []*Staged {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Staged, 0, len(p.order))
	for _, id := range p.order {
		if s, ok := p.staged[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// ComposerEnabled reports whether new sends are currently allowed.
func (p *Pipeline) ComposerEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.now().Before(p.lockedUntil)
}

// ResetAt returns when the daily-limit lock expires. Zero when unlocked.
func (p *Pipeline) ResetAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.now().Before(p.lockedUntil) {
		return p.lockedUntil
	}
	return time.Time{}
}

func (p *Pipeline) track(s *Staged) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged[s.ID] = s
	p.order = append(p.order, s.ID)
}

func (p *Pipeline) untrackLocked(id string) {
	delete(p.staged, id)
	for i, other := range p.order {
		if other == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// nextLocalMidnight is the reset estimate for the daily limit, computed
// from the device's local midnight. The server's window is authoritative;
// this only drives the disabled-composer UI state.
func nextLocalMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
