package ws

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// AnnounceInterval is the minimum spacing between typing broadcasts
	// for one user in one thread while they keep composing.
	AnnounceInterval = 1200 * time.Millisecond
	// TypingTTL is how long a typing indicator stays lit after the last
	// signal. No explicit stopped-typing message exists; a missed event
	// degrades to no indicator, never to a stuck one.
	TypingTTL = 2400 * time.Millisecond
)

// TypingThrottle rate-limits typing announcements per (thread, user).
type TypingThrottle struct {
	mu       sync.Mutex
	limiters map[typingKey]*rate.Limiter
}

type typingKey struct {
	token  string
	userID int
}

// NewTypingThrottle constructs a TypingThrottle.
func NewTypingThrottle() *TypingThrottle {
	return &TypingThrottle{limiters: make(map[typingKey]*rate.Limiter)}
}

// Allow reports whether this typing signal may be broadcast now.
func (t *TypingThrottle) Allow(token string, userID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{token: token, userID: userID}
	limiter, ok := t.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(AnnounceInterval), 1)
		t.limiters[key] = limiter
	}
	return limiter.Allow()
}

// Forget drops the limiter state for a disconnected user.
func (t *TypingThrottle) Forget(token string, userID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.limiters, typingKey{token: token, userID: userID})
}

// TypingTracker is the consumer side: it remembers the last signal per
// user and expires the currently-typing flag after TypingTTL.
type TypingTracker struct {
	mu   sync.Mutex
	ttl  time.Duration
	last map[int]time.Time
}

// NewTypingTracker constructs a tracker with the default TTL.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{ttl: TypingTTL, last: make(map[int]time.Time)}
}

// Mark records a typing signal from a user.
func (t *TypingTracker) Mark(userID int, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[userID] = at
}

// Active returns the users still considered typing at now, pruning
// everyone whose signal expired.
func (t *TypingTracker) Active(now time.Time) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var active []int
	for userID, at := range t.last {
		if now.Sub(at) < t.ttl {
			active = append(active, userID)
		} else {
			delete(t.last, userID)
		}
	}
	return active
}
