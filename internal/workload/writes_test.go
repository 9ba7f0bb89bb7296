package workload

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isobench/isobench/internal/dataset"
	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/observability"
	"github.com/isobench/isobench/internal/store"
	"github.com/isobench/isobench/internal/store/memstore"
	"github.com/isobench/isobench/internal/synth"
	"github.com/isobench/isobench/pkg/types"
)

func openAccounts(t *testing.T, low, high int64) *store.SQLStore {
	t.Helper()
	ctx := context.Background()
	dsn, err := store.BuildDSN(store.DriverSQLite3, store.ConnParams{Database: filepath.Join(t.TempDir(), "bench.db")})
	require.NoError(t, err)
	s, err := store.Open(ctx, store.Options{Driver: store.DriverSQLite3, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = store.InitAccounts(ctx, s, store.AccountsOptions{Low: low, High: high, Balance: func(id int64) int64 { return id }})
	require.NoError(t, err)
	return s
}

// accountRows builds rows (account_id, balance) for ids [from, from+n).
func accountRows(from int64, n int, balance int64) *dataset.Dataset {
	ids := synth.Column{Spec: types.Numeric(1, from), Tag: "numeric"}
	bal := synth.Column{Spec: types.Numeric(1, 0), Tag: "numeric"}
	for i := 0; i < n; i++ {
		ids.Values = append(ids.Values, types.NumericValue(from+int64(i)))
		bal.Values = append(bal.Values, types.NumericValue(balance))
	}
	ds, _ := dataset.Assemble([]synth.Column{ids, bal}, 1)
	return ds
}

func countAccounts(t *testing.T, s *store.SQLStore) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().Get(&n, "SELECT COUNT(*) FROM accounts"))
	return n
}

func TestWriteBatchUpdateNBindsAttributesInOrder(t *testing.T) {
	// setup
	s := memstore.New(1, 10, nil)
	ctx := context.Background()
	conn, err := s.Connect(ctx)
	require.NoError(t, err)
	stmt, err := conn.Prepare(ctx, store.MemoryWrite)
	require.NoError(t, err)
	ds := accountRows(1, 10, 500)

	// act
	n, err := WriteBatch(ctx, conn, stmt, ds.Rows, WriteOptions{
		Mode: types.WriteUpdateN, Trans: types.TransN, Attributes: []int{1, 0},
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, int64(5000), s.Sum())
}

func TestWriteBatchTransOneRollsBackEverythingOnFailure(t *testing.T) {
	s := memstore.New(1, 10, nil)
	ctx := context.Background()
	conn, err := s.Connect(ctx)
	require.NoError(t, err)
	stmt, err := conn.Prepare(ctx, store.MemoryWrite)
	require.NoError(t, err)

	rows := accountRows(1, 3, 7).Rows
	// A categorical value cannot be bound as an account id.
	rows = append(rows, types.Row{types.StringValue(types.KindCategorical, "acct4"), types.NumericValue(7)})

	n, err := WriteBatch(ctx, conn, stmt, rows, WriteOptions{
		Mode: types.WriteUpdateN, Trans: types.TransOne, Attributes: []int{1, 0},
	})

	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(0), s.Sum())
}

func TestWriteBatchRejectsAttributeOutsideRow(t *testing.T) {
	s := memstore.New(1, 10, nil)
	ctx := context.Background()
	conn, err := s.Connect(ctx)
	require.NoError(t, err)
	stmt, err := conn.Prepare(ctx, store.MemoryWrite)
	require.NoError(t, err)

	n, err := WriteBatch(ctx, conn, stmt, accountRows(1, 3, 7).Rows, WriteOptions{
		Mode: types.WriteUpdateN, Trans: types.TransOne, Attributes: []int{5, 0},
	})

	assert.Equal(t, 0, n)
	assert.True(t, errors.IsConfigError(err), "got %v", err)
	assert.Equal(t, int64(0), s.Sum())
}

func TestWriteWorkerRunInsertN(t *testing.T) {
	for _, trans := range []types.TransMode{types.TransOne, types.TransN} {
		t.Run(string(trans), func(t *testing.T) {
			// setup
			s := openAccounts(t, 1, 10)
			st, err := store.DefaultStatements(s.Dialect(), "")
			require.NoError(t, err)
			cursor := dataset.NewCursor(accountRows(1001, 40, 1))
			latency := observability.NewLatencyRecorder()

			// act
			var total int
			for id := 0; id < 4; id++ {
				w := NewWriteWorker(id, s, cursor, WriteConfig{
					Level:        types.IsolationRR,
					Statement:    st.Insert,
					Rows:         10,
					WriteOptions: WriteOptions{Mode: types.WriteInsertN, Trans: trans, Latency: latency},
				}, nil)
				n, err := w.Run(context.Background())
				require.NoError(t, err)
				total += n
			}

			// assert
			assert.Equal(t, 40, total)
			assert.Equal(t, 50, countAccounts(t, s))
			assert.Equal(t, int64(40), cursor.Offset())
		})
	}
}

func TestWriteWorkerRunDuplicateKeyIsTransactionFailure(t *testing.T) {
	s := openAccounts(t, 1, 10)
	st, err := store.DefaultStatements(s.Dialect(), "")
	require.NoError(t, err)
	cursor := dataset.NewCursor(accountRows(5, 3, 1))

	_, err = NewWriteWorker(2, s, cursor, WriteConfig{
		Level:        types.IsolationRR,
		Statement:    st.Insert,
		Rows:         3,
		WriteOptions: WriteOptions{Mode: types.WriteInsertN, Trans: types.TransOne},
	}, nil).Run(context.Background())

	assert.Equal(t, errors.CodeTransactionFailed, errors.GetCode(err))
	assert.Equal(t, 10, countAccounts(t, s))
}

func TestUpdate1Run(t *testing.T) {
	s := openAccounts(t, 1, 20)

	n, err := NewUpdate1(s, WriteConfig{
		Level:     types.IsolationRR,
		Statement: "UPDATE accounts SET balance = balance + 1 WHERE account_id <= 5",
	}, nil).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	var total int64
	require.NoError(t, s.DB().Get(&total, "SELECT SUM(balance) FROM accounts"))
	assert.Equal(t, int64(210+5), total)
}

func TestReaderRun(t *testing.T) {
	s := openAccounts(t, 1, 20)
	ds := accountRows(1, 30, 0)

	counts, err := NewReader(s, ds, ReadConfig{
		Level:      types.IsolationCS,
		Statement:  "SELECT balance FROM accounts WHERE account_id = ?",
		Queries:    25,
		Attributes: []int{0},
	}, nil, nil).Run(context.Background())

	require.NoError(t, err)
	require.Len(t, counts, 25)
	assert.Equal(t, 1, counts[0])
	assert.Equal(t, 1, counts[19])
	assert.Equal(t, 0, counts[20])
}

func TestReaderRunParameterMismatch(t *testing.T) {
	s := memstore.New(1, 2, nil)

	_, err := NewReader(s, nil, ReadConfig{
		Statement: "SELECT * FROM accounts WHERE account_id BETWEEN ? AND ?",
		Queries:   1,
	}, nil, nil).Run(context.Background())

	assert.True(t, errors.IsConfigError(err))
}

func TestReaderRunParameterless(t *testing.T) {
	s := openAccounts(t, 1, 20)

	counts, err := NewReader(s, nil, ReadConfig{
		Level:     types.IsolationUR,
		Statement: "SELECT * FROM accounts WHERE balance > 10",
		Queries:   2,
	}, nil, nil).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int{10, 10}, counts)
}
