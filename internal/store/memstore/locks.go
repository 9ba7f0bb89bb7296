package memstore

import (
	stderrors "errors"
	"sort"
	"sync"
)

// ErrDeadlock is returned to the transaction whose lock request would close a cycle of waits.
var ErrDeadlock = stderrors.New("deadlock detected")

// LockManager grants exclusive per-key locks to transactions.
// A transaction waits for at most one key at a time, so the waits-for graph
// is a set of chains and a cycle is found by following it from the owner.
type LockManager struct {
	mu       sync.Mutex
	cond     *sync.Cond
	owners   map[int64]uint64
	held     map[uint64][]int64
	waitsFor map[uint64]uint64

	deadlocks int
	waits     int
}

// NewLockManager creates an empty lock table.
func NewLockManager() *LockManager {
	m := &LockManager{
		owners:   make(map[int64]uint64),
		held:     make(map[uint64][]int64),
		waitsFor: make(map[uint64]uint64),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Acquire blocks until tx holds key. It fails with ErrDeadlock instead of
// waiting when the wait would close a cycle; the caller must then release
// everything tx holds.
func (m *LockManager) Acquire(tx uint64, key int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	waited := false
	for {
		owner, locked := m.owners[key]
		if !locked || owner == tx {
			if !locked {
				m.owners[key] = tx
				m.held[tx] = append(m.held[tx], key)
			}
			delete(m.waitsFor, tx)
			return nil
		}

		if m.closesCycle(tx, owner) {
			delete(m.waitsFor, tx)
			m.deadlocks++
			return ErrDeadlock
		}

		m.waitsFor[tx] = owner
		if !waited {
			m.waits++
			waited = true
		}
		m.cond.Wait()
	}
}

// AcquireAll locks keys in ascending order.
func (m *LockManager) AcquireAll(tx uint64, keys []int64) error {
	sorted := append([]int64(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, k := range sorted {
		if err := m.Acquire(tx, k); err != nil {
			return err
		}
	}
	return nil
}

// Holds reports whether tx owns key.
func (m *LockManager) Holds(tx uint64, key int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owners[key] == tx && tx != 0
}

// WaitFree blocks until no other transaction holds key, without taking it.
func (m *LockManager) WaitFree(tx uint64, key int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	waited := false
	for {
		owner, locked := m.owners[key]
		if !locked || owner == tx {
			delete(m.waitsFor, tx)
			return nil
		}
		if m.closesCycle(tx, owner) {
			delete(m.waitsFor, tx)
			m.deadlocks++
			return ErrDeadlock
		}
		m.waitsFor[tx] = owner
		if !waited {
			m.waits++
			waited = true
		}
		m.cond.Wait()
	}
}

// ReleaseAll drops every lock held by tx and wakes waiters.
func (m *LockManager) ReleaseAll(tx uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range m.held[tx] {
		if m.owners[k] == tx {
			delete(m.owners, k)
		}
	}
	delete(m.held, tx)
	delete(m.waitsFor, tx)
	m.cond.Broadcast()
}

// Deadlocks returns the number of lock requests refused to break a cycle.
func (m *LockManager) Deadlocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadlocks
}

// Waits returns the number of lock requests that had to wait.
func (m *LockManager) Waits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waits
}

// Waiting reports whether tx is blocked on a lock.
func (m *LockManager) Waiting(tx uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.waitsFor[tx]
	return ok
}

// closesCycle follows the waits-for chain from owner. Callers hold m.mu.
func (m *LockManager) closesCycle(tx, owner uint64) bool {
	seen := map[uint64]bool{}
	for cur := owner; ; {
		if cur == tx {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		next, ok := m.waitsFor[cur]
		if !ok {
			return false
		}
		cur = next
	}
}
