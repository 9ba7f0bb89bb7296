// Package workload contains the units of work run by experiment workers.
// Every worker owns a private store connection for its whole run.
package workload

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/observability"
	"github.com/isobench/isobench/internal/store"
	"github.com/isobench/isobench/pkg/types"
)

// SwapConfig configures a SwapWorker.
type SwapConfig struct {
	// Level is the isolation level of every swap transaction
	Level types.IsolationLevel

	// Low and High bound the account ids, inclusive; High must exceed Low
	Low  int64
	High int64

	// Swaps is the number of swaps the worker performs
	Swaps int

	// ReadDelay is slept between the two reads of a swap
	ReadDelay time.Duration

	// ReadStatement takes (account_id) and returns the balance;
	// WriteStatement takes (balance, account_id)
	ReadStatement  string
	WriteStatement string
}

// SwapResult is what a finished SwapWorker reports.
type SwapResult struct {
	Worker int
	Swaps  int

	// CloseErr is set when the connection failed to close; the swaps still count
	CloseErr error
}

// SwapWorker exchanges the balances of two accounts per transaction.
// It always reads the lower id first, so concurrent workers acquire row
// locks in the same order and cannot deadlock each other.
type SwapWorker struct {
	id      int
	store   store.Store
	cfg     SwapConfig
	rng     *rand.Rand
	latency *observability.LatencyRecorder
	logger  observability.Logger
}

// NewSwapWorker creates worker id. rng must not be shared with other workers.
func NewSwapWorker(id int, s store.Store, cfg SwapConfig, rng *rand.Rand, latency *observability.LatencyRecorder, logger observability.Logger) *SwapWorker {
	return &SwapWorker{
		id:      id,
		store:   s,
		cfg:     cfg,
		rng:     rng,
		latency: latency,
		logger:  observability.OrNop(logger),
	}
}

// DrawPair picks x uniformly from [low, (low+high)/2] and y uniformly from
// [x, high], drawing y again while it equals x. Requires high > low.
func DrawPair(rng *rand.Rand, low, high int64) (x, y int64) {
	mid := low + (high-low)/2
	x = low + rng.Int64N(mid-low+1)
	for {
		y = x + rng.Int64N(high-x+1)
		if y != x {
			return x, y
		}
	}
}

// Run performs the configured number of swaps. The first failing swap is
// rolled back and ends the worker with a TransactionFailure.
func (w *SwapWorker) Run(ctx context.Context) (SwapResult, error) {
	res := SwapResult{Worker: w.id}

	conn, err := w.store.Connect(ctx)
	if err != nil {
		return res, errors.TransactionFailure(w.id, err)
	}
	conn.SetIsolationLevel(w.cfg.Level)

	err = w.swapAll(ctx, conn, &res)
	if cerr := conn.Close(); cerr != nil {
		w.logger.Warn(logMsgCloseFailed, logAttrWorker, w.id, logAttrError, cerr.Error())
		res.CloseErr = cerr
	}
	return res, err
}

func (w *SwapWorker) swapAll(ctx context.Context, conn store.Conn, res *SwapResult) error {
	read, err := conn.Prepare(ctx, w.cfg.ReadStatement)
	if err != nil {
		return errors.TransactionFailure(w.id, err)
	}
	defer read.Close()
	write, err := conn.Prepare(ctx, w.cfg.WriteStatement)
	if err != nil {
		return errors.TransactionFailure(w.id, err)
	}
	defer write.Close()

	for i := 0; i < w.cfg.Swaps; i++ {
		x, y := DrawPair(w.rng, w.cfg.Low, w.cfg.High)

		start := time.Now()
		if err := w.swap(ctx, conn, read, write, x, y); err != nil {
			w.logger.Error(logMsgSwapFailed, logAttrWorker, w.id, logAttrX, x, logAttrY, y, logAttrError, err.Error())
			return errors.TransactionFailure(w.id, err).WithDetails(map[string]interface{}{
				"worker": w.id, "x": x, "y": y, "completed": res.Swaps,
			})
		}
		w.latency.Since(observability.OpSwap, start)
		res.Swaps++
	}

	w.logger.Debug(logMsgWorkerDone, logAttrWorker, w.id, logAttrSwaps, res.Swaps)
	return nil
}

func (w *SwapWorker) swap(ctx context.Context, conn store.Conn, read, write store.Statement, x, y int64) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	valX, err := readBalance(ctx, tx, read, x)
	if err != nil {
		tx.Rollback()
		return err
	}
	if w.cfg.ReadDelay > 0 {
		time.Sleep(w.cfg.ReadDelay)
	}
	valY, err := readBalance(ctx, tx, read, y)
	if err != nil {
		tx.Rollback()
		return err
	}

	if _, err := tx.Execute(ctx, write, valY, x); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Execute(ctx, write, valX, y); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func readBalance(ctx context.Context, tx store.Tx, read store.Statement, id int64) (int64, error) {
	rows, err := tx.Query(ctx, read, id)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := store.FetchOne(rows, &balance); err != nil {
		return 0, err
	}
	return balance, nil
}
