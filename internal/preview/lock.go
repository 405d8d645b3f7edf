package preview

import "sync"

// LockManager serializes work per pull request within this process.
//
// The outer mutex protects the map; each key has its own mutex so different
// pull requests are processed concurrently while two deliveries for the same
// pull request cannot both decide to create a comment.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock blocks until the lock for key is held and returns its release func
func (lm *LockManager) Lock(key string) (unlock func()) {
	lm.mu.Lock()
	lock, exists := lm.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		lm.locks[key] = lock
	}
	lm.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
