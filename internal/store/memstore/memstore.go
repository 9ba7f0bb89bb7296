// Package memstore is an in-process accounts store for the swap workload.
//
// It keeps committed balances in memory and gives each transaction the
// visibility of its isolation level:
//
//	UR  reads see uncommitted writes and take no locks
//	CS  reads wait for writers and see committed values only
//	RS  reads lock the row until the end of the transaction
//	RR  like RS; a sum locks every account in ascending id order
//
// Writes always take an exclusive row lock held until commit or rollback.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/store"
	"github.com/isobench/isobench/pkg/types"
)

// Store is an in-memory store.Store.
type Store struct {
	mu        sync.Mutex
	committed map[int64]int64
	dirty     map[int64]int64
	ids       []int64 // ascending, immutable

	locks *LockManager
	txSeq atomic.Uint64
}

// New creates accounts [low, high] with balance(id) each.
func New(low, high int64, balance func(id int64) int64) *Store {
	s := &Store{
		committed: make(map[int64]int64, high-low+1),
		dirty:     make(map[int64]int64),
		locks:     NewLockManager(),
	}
	for id := low; id <= high; id++ {
		v := int64(0)
		if balance != nil {
			v = balance(id)
		}
		s.committed[id] = v
		s.ids = append(s.ids, id)
	}
	return s
}

// Sum returns the total committed balance.
func (s *Store) Sum() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, v := range s.committed {
		total += v
	}
	return total
}

// Balance returns the committed balance of id.
func (s *Store) Balance(id int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.committed[id]
	return v, ok
}

// Locks exposes the lock manager for inspection.
func (s *Store) Locks() *LockManager {
	return s.locks
}

// Connect returns a new connection.
func (s *Store) Connect(ctx context.Context) (store.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.ConnectionFailure("connect to memory store", err)
	}
	return &conn{s: s, level: types.IsolationRR}, nil
}

// Dialect returns the memory dialect.
func (s *Store) Dialect() store.Dialect {
	d, _ := store.LookupDialect(store.DriverMemory)
	return d
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

type conn struct {
	s      *Store
	level  types.IsolationLevel
	closed bool
}

func (c *conn) SetIsolationLevel(level types.IsolationLevel) {
	c.level = level
}

func (c *conn) Prepare(_ context.Context, query string) (store.Statement, error) {
	switch query {
	case store.MemoryRead, store.MemoryWrite, store.MemorySum:
		return statement(query), nil
	}
	return nil, errors.PrepareFailure(query, fmt.Errorf("memory store understands %s, %s and %s",
		store.MemoryRead, store.MemoryWrite, store.MemorySum))
}

func (c *conn) Begin(ctx context.Context) (store.Tx, error) {
	if c.closed {
		return nil, errors.ExecuteFailure("begin", fmt.Errorf("connection closed"))
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.ExecuteFailure("begin", err)
	}
	return &tx{s: c.s, id: c.s.txSeq.Add(1), level: c.level, writes: make(map[int64]int64)}, nil
}

func (c *conn) ExecDirect(_ context.Context, query string, _ ...any) error {
	return errors.ExecuteFailure("exec", fmt.Errorf("memory store cannot run %q", query))
}

func (c *conn) Close() error {
	if c.closed {
		return errors.CloseFailure(fmt.Errorf("connection already closed"))
	}
	c.closed = true
	return nil
}

type statement string

func (st statement) Text() string { return string(st) }

func (st statement) NumParams() int {
	switch string(st) {
	case store.MemoryRead:
		return 1
	case store.MemoryWrite:
		return 2
	}
	return 0
}

func (st statement) Close() error { return nil }

type tx struct {
	s      *Store
	id     uint64
	level  types.IsolationLevel
	writes map[int64]int64
	done   bool
}

func (t *tx) Query(_ context.Context, stmt store.Statement, args ...any) (store.Rows, error) {
	if t.done {
		return nil, errors.ExecuteFailure("query", fmt.Errorf("transaction finished"))
	}
	switch stmt.Text() {
	case store.MemoryRead:
		id, err := intArg(args, 0)
		if err != nil {
			return nil, errors.ExecuteFailure("read balance", err)
		}
		v, ok, err := t.read(id)
		if err != nil {
			return nil, errors.ExecuteFailure("read balance", err)
		}
		if !ok {
			return &rows{}, nil
		}
		return &rows{vals: []int64{v}}, nil

	case store.MemorySum:
		total, err := t.sum()
		if err != nil {
			return nil, errors.ExecuteFailure("sum balances", err)
		}
		return &rows{vals: []int64{total}}, nil
	}
	return nil, errors.ExecuteFailure("query", fmt.Errorf("%q returns no rows", stmt.Text()))
}

func (t *tx) Execute(_ context.Context, stmt store.Statement, args ...any) (int64, error) {
	if t.done {
		return 0, errors.ExecuteFailure("execute", fmt.Errorf("transaction finished"))
	}
	if stmt.Text() != store.MemoryWrite {
		return 0, errors.ExecuteFailure("execute", fmt.Errorf("%q is not a write", stmt.Text()))
	}
	balance, err := intArg(args, 0)
	if err != nil {
		return 0, errors.ExecuteFailure("write balance", err)
	}
	id, err := intArg(args, 1)
	if err != nil {
		return 0, errors.ExecuteFailure("write balance", err)
	}

	if err := t.s.locks.Acquire(t.id, id); err != nil {
		return 0, errors.ExecuteFailure("write balance", err)
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.committed[id]; !ok {
		return 0, nil
	}
	t.writes[id] = balance
	t.s.dirty[id] = balance
	return 1, nil
}

func (t *tx) Commit() error {
	if t.done {
		return errors.CommitFailure(fmt.Errorf("transaction finished"))
	}
	t.s.mu.Lock()
	for id, v := range t.writes {
		t.s.committed[id] = v
		delete(t.s.dirty, id)
	}
	t.s.mu.Unlock()
	t.finish()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.s.mu.Lock()
	for id := range t.writes {
		delete(t.s.dirty, id)
	}
	t.s.mu.Unlock()
	t.finish()
	return nil
}

func (t *tx) finish() {
	t.done = true
	t.s.locks.ReleaseAll(t.id)
}

// read returns the balance of id as seen at the transaction's level.
func (t *tx) read(id int64) (int64, bool, error) {
	switch t.level {
	case types.IsolationUR:
	case types.IsolationCS:
		if err := t.s.locks.WaitFree(t.id, id); err != nil {
			return 0, false, err
		}
	default:
		if err := t.s.locks.Acquire(t.id, id); err != nil {
			return 0, false, err
		}
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if v, ok := t.writes[id]; ok {
		return v, true, nil
	}
	if t.level == types.IsolationUR {
		if v, ok := t.s.dirty[id]; ok {
			return v, true, nil
		}
	}
	v, ok := t.s.committed[id]
	return v, ok, nil
}

func (t *tx) sum() (int64, error) {
	if t.level == types.IsolationRS || t.level == types.IsolationRR {
		if err := t.s.locks.AcquireAll(t.id, t.s.ids); err != nil {
			return 0, err
		}
	}

	var total int64
	for _, id := range t.s.ids {
		v, _, err := t.read(id)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

type rows struct {
	vals []int64
	pos  int
	cur  int64
}

func (r *rows) Next() bool {
	if r.pos >= len(r.vals) {
		return false
	}
	r.cur = r.vals[r.pos]
	r.pos++
	return true
}

func (r *rows) Scan(dest ...any) error {
	if len(dest) != 1 {
		return fmt.Errorf("expected 1 destination, got %d", len(dest))
	}
	switch d := dest[0].(type) {
	case *int64:
		*d = r.cur
	case *int:
		*d = int(r.cur)
	case *any:
		*d = r.cur
	default:
		return fmt.Errorf("unsupported destination %T", dest[0])
	}
	return nil
}

func (r *rows) Close() error { return nil }
func (r *rows) Err() error   { return nil }

func intArg(args []any, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing parameter %d", i+1)
	}
	switch v := args[i].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	}
	return 0, fmt.Errorf("parameter %d: unsupported type %T", i+1, args[i])
}
