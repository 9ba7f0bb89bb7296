package workload

import (
	"context"
	"time"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/observability"
	"github.com/isobench/isobench/internal/store"
	"github.com/isobench/isobench/pkg/types"
)

// Observer reads the total balance once, concurrently with the swaps.
// Under weak isolation the total it sees may differ from the true total;
// that difference is recorded, not corrected.
type Observer struct {
	store     store.Store
	level     types.IsolationLevel
	statement string
	delay     time.Duration
	latency   *observability.LatencyRecorder
	logger    observability.Logger
}

// ObserverIndex identifies the observer in worker errors.
const ObserverIndex = -1

// NewObserver creates an observer running statement at level after delay.
func NewObserver(s store.Store, level types.IsolationLevel, statement string, delay time.Duration, latency *observability.LatencyRecorder, logger observability.Logger) *Observer {
	return &Observer{
		store:     s,
		level:     level,
		statement: statement,
		delay:     delay,
		latency:   latency,
		logger:    observability.OrNop(logger),
	}
}

// Run executes the sum statement in its own transaction and returns the scalar result.
func (o *Observer) Run(ctx context.Context) (int64, error) {
	if o.delay > 0 {
		time.Sleep(o.delay)
	}

	conn, err := o.store.Connect(ctx)
	if err != nil {
		return 0, errors.TransactionFailure(ObserverIndex, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			o.logger.Warn(logMsgCloseFailed, logAttrWorker, ObserverIndex, logAttrError, cerr.Error())
		}
	}()
	conn.SetIsolationLevel(o.level)

	stmt, err := conn.Prepare(ctx, o.statement)
	if err != nil {
		return 0, errors.TransactionFailure(ObserverIndex, err)
	}
	defer stmt.Close()

	start := time.Now()
	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, errors.TransactionFailure(ObserverIndex, err)
	}
	rows, err := tx.Query(ctx, stmt)
	if err != nil {
		tx.Rollback()
		return 0, errors.TransactionFailure(ObserverIndex, err)
	}
	var sum int64
	if err := store.FetchOne(rows, &sum); err != nil {
		tx.Rollback()
		return 0, errors.TransactionFailure(ObserverIndex, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.TransactionFailure(ObserverIndex, err)
	}
	o.latency.Since(observability.OpSum, start)

	o.logger.Debug(logMsgObserved, logAttrSum, sum)
	return sum, nil
}
