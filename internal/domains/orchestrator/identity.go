package orchestrator

import (
	"strings"
	"sync"
)

func identityKey(notaryID, nymID string) string {
	return strings.TrimSpace(notaryID) + "|" + strings.TrimSpace(nymID)
}

// lockTable hands out one mutex per identity and drops it when the last
// holder releases it.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*identityLock)}
}

func (t *lockTable) acquire(key string) func() {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &identityLock{}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// doubtSet remembers identities whose last mutating request may or may
// not have landed.
type doubtSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func newDoubtSet() *doubtSet {
	return &doubtSet{set: make(map[string]struct{})}
}

func (d *doubtSet) mark(key string) {
	d.mu.Lock()
	d.set[key] = struct{}{}
	d.mu.Unlock()
}

func (d *doubtSet) clear(key string) {
	d.mu.Lock()
	delete(d.set, key)
	d.mu.Unlock()
}

func (d *doubtSet) has(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.set[key]
	return ok
}
