package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/store"
	"github.com/isobench/isobench/pkg/types"
)

func identity(id int64) int64 { return id }

func openTx(t *testing.T, s *Store, level types.IsolationLevel) (store.Tx, store.Statement, store.Statement, store.Statement) {
	t.Helper()
	ctx := context.Background()
	c, err := s.Connect(ctx)
	require.NoError(t, err)
	c.SetIsolationLevel(level)

	read, err := c.Prepare(ctx, store.MemoryRead)
	require.NoError(t, err)
	write, err := c.Prepare(ctx, store.MemoryWrite)
	require.NoError(t, err)
	sum, err := c.Prepare(ctx, store.MemorySum)
	require.NoError(t, err)

	tx, err := c.Begin(ctx)
	require.NoError(t, err)
	return tx, read, write, sum
}

func readBalance(t *testing.T, tx store.Tx, read store.Statement, id int64) int64 {
	t.Helper()
	rows, err := tx.Query(context.Background(), read, id)
	require.NoError(t, err)
	var v int64
	require.NoError(t, store.FetchOne(rows, &v))
	return v
}

func TestMemstoreNewSeedsAccounts(t *testing.T) {
	s := New(1, 10, identity)

	assert.Equal(t, int64(55), s.Sum())
	v, ok := s.Balance(7)
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)
}

func TestMemstoreCommitAppliesWrites(t *testing.T) {
	// setup
	s := New(1, 3, identity)
	ctx := context.Background()
	tx, read, write, _ := openTx(t, s, types.IsolationRR)

	// act
	x := readBalance(t, tx, read, 1)
	y := readBalance(t, tx, read, 3)
	_, err := tx.Execute(ctx, write, y, int64(1))
	require.NoError(t, err)
	_, err = tx.Execute(ctx, write, x, int64(3))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	// assert
	v1, _ := s.Balance(1)
	v3, _ := s.Balance(3)
	assert.Equal(t, int64(3), v1)
	assert.Equal(t, int64(1), v3)
	assert.Equal(t, int64(6), s.Sum())
}

func TestMemstoreRollbackDiscardsWrites(t *testing.T) {
	s := New(1, 3, identity)
	tx, _, write, _ := openTx(t, s, types.IsolationRR)

	_, err := tx.Execute(context.Background(), write, int64(100), 2)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	v, _ := s.Balance(2)
	assert.Equal(t, int64(2), v)
	assert.False(t, s.Locks().Holds(1, 2))
}

func TestMemstoreUncommittedReadSeesDirtyWrite(t *testing.T) {
	s := New(1, 3, identity)
	writer, _, write, _ := openTx(t, s, types.IsolationRR)
	_, err := writer.Execute(context.Background(), write, int64(42), int64(2))
	require.NoError(t, err)

	reader, read, _, sum := openTx(t, s, types.IsolationUR)
	assert.Equal(t, int64(42), readBalance(t, reader, read, 2))

	rows, err := reader.Query(context.Background(), sum)
	require.NoError(t, err)
	var total int64
	require.NoError(t, store.FetchOne(rows, &total))
	assert.Equal(t, int64(1+42+3), total)

	require.NoError(t, writer.Rollback())
	require.NoError(t, reader.Commit())
}

func TestMemstoreCursorStabilityWaitsForWriter(t *testing.T) {
	s := New(1, 3, identity)
	writer, _, write, _ := openTx(t, s, types.IsolationRR)
	_, err := writer.Execute(context.Background(), write, int64(42), int64(2))
	require.NoError(t, err)

	reader, read, _, _ := openTx(t, s, types.IsolationCS)
	got := make(chan int64, 1)
	go func() {
		rows, err := reader.Query(context.Background(), read, int64(2))
		if err != nil {
			got <- -1
			return
		}
		var v int64
		if store.FetchOne(rows, &v) != nil {
			v = -1
		}
		got <- v
	}()

	waitUntil(t, func() bool { return s.Locks().Waits() > 0 })
	require.NoError(t, writer.Commit())

	assert.Equal(t, int64(42), <-got)
	require.NoError(t, reader.Commit())
}

func TestMemstoreMissingAccount(t *testing.T) {
	s := New(1, 3, identity)
	tx, read, write, _ := openTx(t, s, types.IsolationRR)

	rows, err := tx.Query(context.Background(), read, int64(99))
	require.NoError(t, err)
	var v int64
	err = store.FetchOne(rows, &v)
	assert.Equal(t, errors.CodeFetchFailed, errors.GetCode(err))

	n, err := tx.Execute(context.Background(), write, int64(1), int64(99))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMemstorePrepareRejectsUnknownStatement(t *testing.T) {
	s := New(1, 3, identity)
	c, err := s.Connect(context.Background())
	require.NoError(t, err)

	_, err = c.Prepare(context.Background(), "SELECT 1")
	assert.Equal(t, errors.CodePrepareFailed, errors.GetCode(err))
	assert.Error(t, c.ExecDirect(context.Background(), "LOCK TABLE accounts"))

	require.NoError(t, c.Close())
	closeErr := c.Close()
	assert.Equal(t, errors.CodeCloseFailed, errors.GetCode(closeErr))
	assert.False(t, errors.IsFatal(closeErr))
}
