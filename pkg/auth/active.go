package auth

import "sync"

// ActiveUser tracks which user's context (reference faces, settings)
// the perception loop should use. There is one camera, so there is one
// active user at a time.
type ActiveUser struct {
	mu sync.RWMutex
	id uint
}

// Set marks the user as active.
func (a *ActiveUser) Set(id uint) {
	a.mu.Lock()
	a.id = id
	a.mu.Unlock()
}

// Current returns the active user ID, zero when nobody is active.
func (a *ActiveUser) Current() uint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.id
}
