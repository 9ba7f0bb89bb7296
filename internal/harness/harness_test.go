package harness

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

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

	_, err = store.InitAccounts(ctx, s, store.AccountsOptions{Low: low, High: high, Balance: func(id int64) int64 { return id * 10 }})
	require.NoError(t, err)
	return s
}

func TestShare(t *testing.T) {
	tests := []struct {
		total, n int
		want     []int
	}{
		{100, 4, []int{25, 25, 25, 25}},
		{10, 3, []int{4, 3, 3}},
		{2, 4, []int{1, 1, 0, 0}},
		{0, 2, []int{0, 0}},
		{5, 0, nil},
	}
	for _, tt := range tests {
		got := Share(tt.total, tt.n)
		assert.Equal(t, tt.want, got, "Share(%d, %d)", tt.total, tt.n)
	}
}

func TestEpisodeWaitsForEveryTask(t *testing.T) {
	var done atomic.Int32
	tasks := make([]Task, 5)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			done.Add(1)
			return nil
		}
	}

	elapsed, err := Episode(context.Background(), tasks)

	require.NoError(t, err)
	assert.Equal(t, int32(5), done.Load())
	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
}

func TestEpisodeJoinsErrorsWithoutStoppingSiblings(t *testing.T) {
	boom := stderrors.New("boom")
	var done atomic.Int32
	tasks := []Task{
		func(ctx context.Context) error { return boom },
		func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			return nil
		},
	}

	_, err := Episode(context.Background(), tasks)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), done.Load())
}

func TestSwapExperimentConservesSumOnSQLite(t *testing.T) {
	// setup
	s := openAccounts(t, 1, 1000)
	st, err := store.DefaultStatements(s.Dialect(), "")
	require.NoError(t, err)
	exp, err := NewSwapExperiment(s, SwapSettings{
		Runs:       3,
		Threads:    4,
		Swaps:      100,
		Level:      types.IsolationRR,
		Low:        1,
		High:       1000,
		Statements: st,
		Seed:       42,
	}, observability.NewLatencyRecorder(), nil, nil)
	require.NoError(t, err)

	baseline, err := exp.Baseline(context.Background())
	require.NoError(t, err)

	// act
	runs, err := exp.Run(context.Background())

	// assert
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for _, r := range runs {
		assert.Equal(t, 100, r.Swaps)
		assert.Equal(t, baseline, r.Before)
		assert.Equal(t, baseline, r.Observed)
		assert.True(t, r.Conserved)
		assert.Zero(t, r.Divergence)
	}
}

func TestSwapExperimentConservesSumInMemory(t *testing.T) {
	s := memstore.New(1, 64, func(id int64) int64 { return id * id })
	st, err := store.DefaultStatements(s.Dialect(), "")
	require.NoError(t, err)
	before := s.Sum()

	exp, err := NewSwapExperiment(s, SwapSettings{
		Runs:       5,
		Threads:    8,
		Swaps:      400,
		Level:      types.IsolationRR,
		Low:        1,
		High:       64,
		Statements: st,
	}, nil, nil, nil)
	require.NoError(t, err)

	runs, err := exp.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, runs, 5)
	for _, r := range runs {
		assert.True(t, r.Conserved, "run %d observed %d, before %d", r.Run, r.Observed, r.Before)
	}
	assert.Equal(t, before, s.Sum())
	assert.Zero(t, s.Locks().Deadlocks())
}

func TestSwapExperimentWorkerFailureFailsRun(t *testing.T) {
	s := memstore.New(100, 110, nil)
	st, err := store.DefaultStatements(s.Dialect(), "")
	require.NoError(t, err)

	exp, err := NewSwapExperiment(s, SwapSettings{
		Runs: 2, Threads: 2, Swaps: 10, Level: types.IsolationRR,
		Low: 1, High: 50, Statements: st,
	}, nil, nil, nil)
	require.NoError(t, err)

	runs, err := exp.Run(context.Background())

	assert.Empty(t, runs)
	assert.Equal(t, errors.CodeTransactionFailed, errors.GetCode(err))
	assert.True(t, errors.IsFatal(err))
}

func TestSwapExperimentStopBeforeFirstRun(t *testing.T) {
	s := memstore.New(1, 10, nil)
	st, _ := store.DefaultStatements(s.Dialect(), "")
	stop := make(chan struct{})
	close(stop)

	exp, err := NewSwapExperiment(s, SwapSettings{
		Runs: 3, Threads: 1, Swaps: 1, Level: types.IsolationRR,
		Low: 1, High: 10, Statements: st,
	}, nil, nil, stop)
	require.NoError(t, err)

	runs, err := exp.Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSwapSettingsValidate(t *testing.T) {
	st := store.Statements{Read: store.MemoryRead, Write: store.MemoryWrite, Sum: store.MemorySum}
	valid := SwapSettings{Runs: 1, Threads: 1, Swaps: 1, Level: types.IsolationRR, Low: 1, High: 2, Statements: st}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*SwapSettings)
	}{
		{"no runs", func(s *SwapSettings) { s.Runs = 0 }},
		{"no threads", func(s *SwapSettings) { s.Threads = 0 }},
		{"negative swaps", func(s *SwapSettings) { s.Swaps = -1 }},
		{"single account", func(s *SwapSettings) { s.High = s.Low }},
		{"unknown level", func(s *SwapSettings) { s.Level = "XX" }},
		{"missing statement", func(s *SwapSettings) { s.Statements.Sum = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			assert.True(t, errors.IsConfigError(s.Validate()))
		})
	}
}

func generated(t *testing.T, rows int) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Generate([]types.ColumnSpec{
		types.Numeric(1, 5000),
		types.Numeric(0.5, 0),
	}, rows, rows, 1, synth.WithSeed(7))
	require.NoError(t, err)
	return ds
}

func TestWriteExperimentInsertNDrainsCursorAcrossRuns(t *testing.T) {
	// setup
	s := openAccounts(t, 1, 10)
	st, err := store.DefaultStatements(s.Dialect(), "")
	require.NoError(t, err)
	ds := generated(t, 60)

	exp, err := NewWriteExperiment(s, ds, WriteSettings{
		Runs: 3, Threads: 4, N: 20,
		Level: types.IsolationRR, Mode: types.WriteInsertN, Trans: types.TransN,
		Statement: st.Insert,
	}, nil, nil, nil)
	require.NoError(t, err)

	// act
	runs, err := exp.Run(context.Background())

	// assert
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for i, r := range runs {
		assert.Equal(t, int64(20), r.Written)
		assert.Equal(t, int64(20*i), r.Offset)
	}
	var n int
	require.NoError(t, s.DB().Get(&n, "SELECT COUNT(*) FROM accounts"))
	assert.Equal(t, 70, n)
}

func TestWriteExperimentUpdate1(t *testing.T) {
	s := openAccounts(t, 1, 10)

	exp, err := NewWriteExperiment(s, nil, WriteSettings{
		Runs: 2, Threads: 4,
		Level: types.IsolationRR, Mode: types.WriteUpdate1, Trans: types.TransOne,
		Statement:     "UPDATE accounts SET balance = balance + 1",
		LockStatement: "SELECT 1",
	}, nil, nil, nil)
	require.NoError(t, err)

	runs, err := exp.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(10), runs[1].Written)
}

func TestNewWriteExperimentRejects(t *testing.T) {
	s := memstore.New(1, 10, nil)
	ds := generated(t, 10)
	base := WriteSettings{Runs: 2, Threads: 1, N: 5, Level: types.IsolationCS, Mode: types.WriteUpdateN, Trans: types.TransN, Statement: store.MemoryWrite, Attributes: []int{1, 0}}

	_, err := NewWriteExperiment(s, ds, base, nil, nil, nil)
	require.NoError(t, err)

	tooMany := base
	tooMany.N = 6
	_, err = NewWriteExperiment(s, ds, tooMany, nil, nil, nil)
	assert.True(t, errors.IsConfigError(err))

	badAttr := base
	badAttr.Attributes = []int{2}
	_, err = NewWriteExperiment(s, ds, badAttr, nil, nil, nil)
	assert.True(t, errors.IsConfigError(err))

	update1N := base
	update1N.Mode = types.WriteUpdate1
	_, err = NewWriteExperiment(s, nil, update1N, nil, nil, nil)
	assert.True(t, errors.IsConfigError(err))
}

func TestReadExperimentRun(t *testing.T) {
	s := openAccounts(t, 1, 20)
	ds := generated(t, 10)

	exp, err := NewReadExperiment(s, ds, ReadSettings{
		Runs:       2,
		Queries:    10,
		Level:      types.IsolationCS,
		Statement:  "SELECT balance FROM accounts WHERE account_id <= ?",
		Attributes: []int{1},
	}, nil, nil, nil)
	require.NoError(t, err)

	runs, err := exp.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Len(t, runs[0].Fetched, 10)
	assert.Equal(t, runs[0].Fetched, runs[1].Fetched)
}

func TestNewReadExperimentParameterMismatch(t *testing.T) {
	_, err := NewReadExperiment(memstore.New(1, 2, nil), nil, ReadSettings{
		Runs:      1,
		Queries:   1,
		Statement: "SELECT 1 WHERE ? = ?",
	}, nil, nil, nil)

	assert.True(t, errors.IsConfigError(err))
}

func TestNewReadExperimentRejectsAttributeOutsideDataset(t *testing.T) {
	s := memstore.New(1, 2, nil)
	ds := generated(t, 10)
	require.Equal(t, 2, ds.NumCols())

	tests := []struct {
		name     string
		settings ReadSettings
	}{
		{"past last column", ReadSettings{Runs: 1, Queries: 1, Statement: "SELECT 1 WHERE ? = 1", Attributes: []int{7}}},
		{"negative", ReadSettings{Runs: 1, Queries: 1, Statement: "SELECT 1 WHERE ? = 1", Attributes: []int{-1}}},
		{"more queries than rows", ReadSettings{Runs: 1, Queries: 11, Statement: "SELECT 1 WHERE ? = 1", Attributes: []int{0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := NewReadExperiment(s, ds, tt.settings, nil, nil, nil)

			assert.Nil(t, exp)
			assert.True(t, errors.IsConfigError(err), "got %v", err)
			assert.Equal(t, errors.CodeInvalidSpec, errors.GetCode(err))
		})
	}

	_, err := NewReadExperiment(s, nil, ReadSettings{Runs: 1, Queries: 1, Statement: "SELECT 1 WHERE ? = 1", Attributes: []int{0}}, nil, nil, nil)
	assert.True(t, errors.IsConfigError(err))
}
