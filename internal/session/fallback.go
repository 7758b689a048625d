package session

import (
	"sync"
	"time"
)

// FallbackController tracks the streaming cool-down window. After a
// streaming failure the window opens and every new dictation attempt runs
// in batch capture mode until it elapses. One controller is shared across
// all sessions of a client.
type FallbackController struct {
	cooldown time.Duration
	now      func() time.Time

	mu    sync.Mutex
	until time.Time
}

// NewFallbackController creates a controller with the given cool-down
// window. A zero window disables the cool-down entirely.
func NewFallbackController(cooldown time.Duration) *FallbackController {
	return &FallbackController{
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Trip opens the cool-down window, restarting it if already open.
func (f *FallbackController) Trip() {
	if f.cooldown <= 0 {
		return
	}
	f.mu.Lock()
	f.until = f.now().Add(f.cooldown)
	f.mu.Unlock()
}

// StreamingAllowed reports whether a new attempt may use the streaming path.
func (f *FallbackController) StreamingAllowed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.now().Before(f.until)
}

// Remaining returns how long the cool-down has left, or zero when closed.
func (f *FallbackController) Remaining() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rem := f.until.Sub(f.now()); rem > 0 {
		return rem
	}
	return 0
}
