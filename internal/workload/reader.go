package workload

import (
	"context"
	"time"

	"github.com/isobench/isobench/internal/dataset"
	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/observability"
	"github.com/isobench/isobench/internal/store"
	"github.com/isobench/isobench/pkg/types"
)

// ReadConfig configures a Reader.
type ReadConfig struct {
	Level     types.IsolationLevel
	Statement string

	// Queries is the number of executions
	Queries int

	// Attributes are the row positions bound to the statement's parameters
	Attributes []int
}

// Reader runs one query repeatedly, binding query i to the attributes of dataset row i.
type Reader struct {
	store   store.Store
	ds      *dataset.Dataset
	cfg     ReadConfig
	latency *observability.LatencyRecorder
	logger  observability.Logger
}

// NewReader creates a reader. ds may be nil for parameterless queries.
func NewReader(s store.Store, ds *dataset.Dataset, cfg ReadConfig, latency *observability.LatencyRecorder, logger observability.Logger) *Reader {
	return &Reader{store: s, ds: ds, cfg: cfg, latency: latency, logger: observability.OrNop(logger)}
}

// CheckParameters verifies that every placeholder of statement has an attribute.
func CheckParameters(statement string, attributes []int) error {
	if n := store.CountPlaceholders(statement); n != len(attributes) {
		return errors.InvalidSpec("query has %d parameters but %d attributes were given", n, len(attributes))
	}
	return nil
}

// Run executes the queries and returns the number of rows each one fetched.
func (r *Reader) Run(ctx context.Context) ([]int, error) {
	if err := CheckParameters(r.cfg.Statement, r.cfg.Attributes); err != nil {
		return nil, err
	}
	if len(r.cfg.Attributes) > 0 && (r.ds == nil || r.ds.Len() < r.cfg.Queries) {
		return nil, errors.InvalidSpec("%d queries need as many generated rows", r.cfg.Queries)
	}

	conn, err := r.store.Connect(ctx)
	if err != nil {
		return nil, errors.TransactionFailure(0, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			r.logger.Warn(logMsgCloseFailed, logAttrWorker, 0, logAttrError, cerr.Error())
		}
	}()
	conn.SetIsolationLevel(r.cfg.Level)

	stmt, err := conn.Prepare(ctx, r.cfg.Statement)
	if err != nil {
		return nil, errors.TransactionFailure(0, err)
	}
	defer stmt.Close()

	counts := make([]int, 0, r.cfg.Queries)
	for i := 0; i < r.cfg.Queries; i++ {
		var args []any
		if len(r.cfg.Attributes) > 0 {
			if args, err = r.ds.Rows[i].Project(r.cfg.Attributes); err != nil {
				return counts, errors.InvalidSpec("query %d: %v", i, err)
			}
		}

		n, err := r.query(ctx, conn, stmt, args)
		if err != nil {
			return counts, errors.TransactionFailure(0, err).WithDetails(map[string]interface{}{"query": i})
		}
		r.logger.Debug(logMsgQueryFetched, logAttrQuery, i, logAttrRows, n)
		counts = append(counts, n)
	}
	return counts, nil
}

func (r *Reader) query(ctx context.Context, conn store.Conn, stmt store.Statement, args []any) (int, error) {
	start := time.Now()
	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := tx.Query(ctx, stmt, args...)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	n, err := store.Drain(rows)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	r.latency.Since(observability.OpQuery, start)
	return n, nil
}
