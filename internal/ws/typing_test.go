package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypingThrottleSpacesAnnouncements(t *testing.T) {
	throttle := NewTypingThrottle()

	assert.True(t, throttle.Allow("conn:1", 1))
	// Immediately repeated signals inside the interval are suppressed.
	assert.False(t, throttle.Allow("conn:1", 1))
	assert.False(t, throttle.Allow("conn:1", 1))
}

func TestTypingThrottleIsPerThreadAndUser(t *testing.T) {
	throttle := NewTypingThrottle()

	assert.True(t, throttle.Allow("conn:1", 1))
	assert.True(t, throttle.Allow("conn:1", 2))
	assert.True(t, throttle.Allow("trip:9", 1))
}

func TestTypingThrottleForgetResets(t *testing.T) {
	throttle := NewTypingThrottle()

	assert.True(t, throttle.Allow("conn:1", 1))
	assert.False(t, throttle.Allow("conn:1", 1))

	throttle.Forget("conn:1", 1)
	assert.True(t, throttle.Allow("conn:1", 1))
}

func TestTypingTrackerExpiresIndicators(t *testing.T) {
	tracker := NewTypingTracker()
	now := time.Now()

	tracker.Mark(1, now)
	tracker.Mark(2, now.Add(-TypingTTL))

	active := tracker.Active(now)
	assert.Equal(t, []int{1}, active)

	// The expired entry is pruned, not just filtered.
	tracker.mu.Lock()
	_, ok := tracker.last[2]
	tracker.mu.Unlock()
	assert.False(t, ok)
}

func TestTypingTrackerRefreshedSignalStaysActive(t *testing.T) {
	tracker := NewTypingTracker()
	now := time.Now()

	tracker.Mark(1, now.Add(-2*TypingTTL))
	tracker.Mark(1, now)

	assert.Equal(t, []int{1}, tracker.Active(now.Add(TypingTTL/2)))
}
