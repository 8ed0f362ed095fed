package mail

import "sync"

// lockTable serializes operations per (account, folder) pair. Two
// requests against the same folder of the same account would otherwise
// race on flag updates and expunges; different folders and different
// accounts proceed in parallel.
//
// Locks are never removed. The table grows with the set of folders a
// process has touched, which is bounded and small.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for the given account and folder and returns
// the unlock function.
func (t *lockTable) acquire(email, folder string) func() {
	key := email + "\x00" + folder

	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
