package service

import (
	"sort"
	"sync"
)

// dayLocker serialises work per (zone, date) key inside one process. Callers that need several
// days lock them in one call so the keys are always acquired in sorted order.
type dayLocker struct {
	mu    sync.Mutex
	locks map[string]*dayLock
}

type dayLock struct {
	mu   sync.Mutex
	refs int
}

func newDayLocker() *dayLocker {
	return &dayLocker{locks: make(map[string]*dayLock)}
}

// Lock blocks until every key is held and returns the matching unlock func.
func (l *dayLocker) Lock(keys ...string) func() {
	ordered := sortedUnique(keys)
	held := make([]*dayLock, 0, len(ordered))
	for _, key := range ordered {
		lock := l.acquire(key)
		lock.mu.Lock()
		held = append(held, lock)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				l.release(ordered[i])
			}
		})
	}
}

func (l *dayLocker) acquire(key string) *dayLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &dayLock{}
		l.locks[key] = lock
	}
	lock.refs++
	return lock
}

func (l *dayLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[key]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs <= 0 {
		delete(l.locks, key)
	}
}

func (l *dayLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func sortedUnique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
