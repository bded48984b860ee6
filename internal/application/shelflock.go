package application

import (
	"sort"
	"sync"
)

// shelfLocks serializes check-then-act sequences per shelf within the
// process. Cross-process safety remains the transaction's job.
type shelfLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newShelfLocks() *shelfLocks {
	return &shelfLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *shelfLocks) get(shelf string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[shelf]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[shelf] = lock
	}
	return lock
}

// Lock acquires the lock for one shelf and returns the unlock func.
func (l *shelfLocks) Lock(shelf string) func() {
	lock := l.get(shelf)
	lock.Lock()
	return lock.Unlock
}

// LockAll acquires locks for a set of shelves in sorted order, so two
// callers locking overlapping sets cannot deadlock.
func (l *shelfLocks) LockAll(shelves ...string) func() {
	unique := make(map[string]bool, len(shelves))
	ordered := make([]string, 0, len(shelves))
	for _, shelf := range shelves {
		if shelf != "" && !unique[shelf] {
			unique[shelf] = true
			ordered = append(ordered, shelf)
		}
	}
	sort.Strings(ordered)

	unlocks := make([]func(), 0, len(ordered))
	for _, shelf := range ordered {
		lock := l.get(shelf)
		lock.Lock()
		unlocks = append(unlocks, lock.Unlock)
	}

	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}
