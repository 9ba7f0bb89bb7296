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

// WriteOptions controls how a batch of rows is written.
type WriteOptions struct {
	Mode  types.WriteMode
	Trans types.TransMode

	// Attributes are the row positions bound for updateN, in binding order
	Attributes []int

	// Lock, when set, is executed at the start of every transaction
	Lock store.Statement

	Latency *observability.LatencyRecorder
}

// WriteBatch executes stmt once per row inside transactions on conn.
// With TransN every write commits on its own; with TransOne the batch is one
// transaction. It returns the number of rows written and committed.
func WriteBatch(ctx context.Context, conn store.Conn, stmt store.Statement, rows []types.Row, opts WriteOptions) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	begin := func() (store.Tx, error) {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return nil, err
		}
		if opts.Lock != nil {
			if _, err := tx.Execute(ctx, opts.Lock); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
		return tx, nil
	}

	tx, err := begin()
	if err != nil {
		return 0, err
	}

	committed, pending := 0, 0
	for i, row := range rows {
		args := row.Args()
		if opts.Mode == types.WriteUpdateN {
			if args, err = row.Project(opts.Attributes); err != nil {
				tx.Rollback()
				return committed, errors.InvalidSpec("row %d: %v", i, err)
			}
		}

		start := time.Now()
		if _, err := tx.Execute(ctx, stmt, args...); err != nil {
			tx.Rollback()
			return committed, err
		}
		opts.Latency.Since(observability.OpWrite, start)
		pending++

		if opts.Trans == types.TransN {
			if err := commit(tx, opts.Latency); err != nil {
				return committed, err
			}
			committed += pending
			pending = 0
			if i == len(rows)-1 {
				return committed, nil
			}
			if tx, err = begin(); err != nil {
				return committed, err
			}
		}
	}

	if err := commit(tx, opts.Latency); err != nil {
		return committed, err
	}
	return committed + pending, nil
}

func commit(tx store.Tx, latency *observability.LatencyRecorder) error {
	start := time.Now()
	if err := tx.Commit(); err != nil {
		return err
	}
	latency.Since(observability.OpCommit, start)
	return nil
}

// WriteConfig configures a WriteWorker.
type WriteConfig struct {
	Level     types.IsolationLevel
	Statement string

	// LockStatement is the optional table lock run at each transaction start
	LockStatement string

	// Rows is the number of rows the worker draws from the cursor
	Rows int

	WriteOptions
}

// WriteWorker draws its share of rows from a shared cursor and writes them.
type WriteWorker struct {
	id     int
	store  store.Store
	cursor *dataset.Cursor
	cfg    WriteConfig
	logger observability.Logger
}

// NewWriteWorker creates write worker id.
func NewWriteWorker(id int, s store.Store, cursor *dataset.Cursor, cfg WriteConfig, logger observability.Logger) *WriteWorker {
	return &WriteWorker{id: id, store: s, cursor: cursor, cfg: cfg, logger: observability.OrNop(logger)}
}

// Run writes one batch and returns the number of rows committed.
func (w *WriteWorker) Run(ctx context.Context) (int, error) {
	conn, err := w.store.Connect(ctx)
	if err != nil {
		return 0, errors.TransactionFailure(w.id, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			w.logger.Warn(logMsgCloseFailed, logAttrWorker, w.id, logAttrError, cerr.Error())
		}
	}()
	conn.SetIsolationLevel(w.cfg.Level)

	stmt, err := conn.Prepare(ctx, w.cfg.Statement)
	if err != nil {
		return 0, errors.TransactionFailure(w.id, err)
	}
	defer stmt.Close()

	opts := w.cfg.WriteOptions
	if w.cfg.LockStatement != "" {
		lock, err := conn.Prepare(ctx, w.cfg.LockStatement)
		if err != nil {
			return 0, errors.TransactionFailure(w.id, err)
		}
		defer lock.Close()
		opts.Lock = lock
	}

	batch := w.cursor.Draw(w.cfg.Rows)
	n, err := WriteBatch(ctx, conn, stmt, batch.Rows, opts)
	if err != nil {
		return n, errors.TransactionFailure(w.id, err).WithDetails(map[string]interface{}{
			"worker": w.id, "offset": batch.Offset, "committed": n,
		})
	}

	w.logger.Debug(logMsgWritesDone, logAttrWorker, w.id, logAttrWrites, n)
	return n, nil
}

// Update1 runs one parameterless, set-oriented write statement in a single transaction.
type Update1 struct {
	store  store.Store
	cfg    WriteConfig
	logger observability.Logger
}

// NewUpdate1 creates the single-statement writer.
func NewUpdate1(s store.Store, cfg WriteConfig, logger observability.Logger) *Update1 {
	return &Update1{store: s, cfg: cfg, logger: observability.OrNop(logger)}
}

// Run executes the statement once and returns the number of affected rows.
func (u *Update1) Run(ctx context.Context) (int64, error) {
	conn, err := u.store.Connect(ctx)
	if err != nil {
		return 0, errors.TransactionFailure(0, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			u.logger.Warn(logMsgCloseFailed, logAttrWorker, 0, logAttrError, cerr.Error())
		}
	}()
	conn.SetIsolationLevel(u.cfg.Level)

	stmt, err := conn.Prepare(ctx, u.cfg.Statement)
	if err != nil {
		return 0, errors.TransactionFailure(0, err)
	}
	defer stmt.Close()

	var lock store.Statement
	if u.cfg.LockStatement != "" {
		if lock, err = conn.Prepare(ctx, u.cfg.LockStatement); err != nil {
			return 0, errors.TransactionFailure(0, err)
		}
		defer lock.Close()
	}

	start := time.Now()
	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, errors.TransactionFailure(0, err)
	}
	if lock != nil {
		if _, err := tx.Execute(ctx, lock); err != nil {
			tx.Rollback()
			return 0, errors.TransactionFailure(0, err)
		}
	}
	n, err := tx.Execute(ctx, stmt)
	if err != nil {
		tx.Rollback()
		return 0, errors.TransactionFailure(0, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.TransactionFailure(0, err)
	}
	u.cfg.Latency.Since(observability.OpUpdate1, start)

	u.logger.Debug(logMsgWritesDone, logAttrWorker, 0, logAttrWrites, n)
	return n, nil
}
