package harness

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/isobench/isobench/internal/dataset"
	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/observability"
	"github.com/isobench/isobench/internal/store"
	"github.com/isobench/isobench/internal/workload"
	"github.com/isobench/isobench/pkg/types"
)

// WriteSettings configures a write experiment.
type WriteSettings struct {
	Runs    int
	Threads int

	// N is the number of rows written per repetition, shared among the threads
	N int

	Level      types.IsolationLevel
	Mode       types.WriteMode
	Trans      types.TransMode
	Attributes []int

	Statement     string
	LockStatement string
}

// Validate checks the settings before any worker starts.
func (s WriteSettings) Validate() error {
	if s.Runs < 1 {
		return errors.InvalidSpec("runs must be at least 1, got %d", s.Runs)
	}
	if s.Threads < 1 {
		return errors.InvalidSpec("threads must be at least 1, got %d", s.Threads)
	}
	if s.N < 0 {
		return errors.InvalidSpec("n must not be negative, got %d", s.N)
	}
	if s.Statement == "" {
		return errors.InvalidSpec("a write statement is required")
	}
	switch s.Mode {
	case types.WriteInsertN:
	case types.WriteUpdateN:
		if len(s.Attributes) == 0 {
			return errors.InvalidSpec("updateN needs at least one attribute")
		}
	case types.WriteUpdate1:
		if s.Trans != types.TransOne {
			return errors.InvalidSpec("update1 runs in a single transaction")
		}
	default:
		return errors.InvalidSpec("%v: %q", types.ErrUnknownWriteMode, s.Mode)
	}
	if s.Trans != types.TransOne && s.Trans != types.TransN {
		return errors.InvalidSpec("%v: %q", types.ErrUnknownTransMode, s.Trans)
	}
	return nil
}

// WriteRun is the outcome of one timed write repetition.
type WriteRun struct {
	Run     int           `json:"run"`
	Elapsed time.Duration `json:"elapsed_ns"`

	// Offset is the cursor position when the repetition started
	Offset int64 `json:"offset"`

	// Written counts committed rows, or affected rows for update1
	Written int64 `json:"written"`
}

// WriteExperiment has write workers drain a shared cursor, Runs times.
type WriteExperiment struct {
	id       uuid.UUID
	store    store.Store
	cursor   *dataset.Cursor
	settings WriteSettings
	latency  *observability.LatencyRecorder
	logger   observability.Logger
	stop     <-chan struct{}
}

// NewWriteExperiment validates settings and creates the experiment. ds must
// hold at least N*Runs rows unless the mode is update1.
func NewWriteExperiment(s store.Store, ds *dataset.Dataset, settings WriteSettings, latency *observability.LatencyRecorder, logger observability.Logger, stop <-chan struct{}) (*WriteExperiment, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.Mode != types.WriteUpdate1 {
		if ds == nil {
			return nil, errors.InvalidSpec("%s needs a generated dataset", settings.Mode)
		}
		if need := settings.N * settings.Runs; ds.Len() < need {
			return nil, errors.InvalidSpec("%d runs of %d rows need %d distinct rows, dataset has %d", settings.Runs, settings.N, need, ds.Len())
		}
		if settings.Mode == types.WriteUpdateN {
			for _, a := range settings.Attributes {
				if a < 0 || a >= ds.NumCols() {
					return nil, errors.InvalidSpec("attribute %d outside the %d generated columns", a, ds.NumCols())
				}
			}
		}
	}

	var cursor *dataset.Cursor
	if ds != nil {
		cursor = dataset.NewCursor(ds)
	}
	return &WriteExperiment{
		id:       newRunID(),
		store:    s,
		cursor:   cursor,
		settings: settings,
		latency:  latency,
		logger:   observability.OrNop(logger),
		stop:     stop,
	}, nil
}

// ID identifies the experiment in logs and reports.
func (e *WriteExperiment) ID() uuid.UUID {
	return e.id
}

// RunOnce runs repetition run. Rows drawn by earlier repetitions are not reused.
func (e *WriteExperiment) RunOnce(ctx context.Context, run int) (WriteRun, error) {
	res := WriteRun{Run: run}
	if e.cursor != nil {
		res.Offset = e.cursor.Offset()
	}

	if e.settings.Mode == types.WriteUpdate1 {
		u := workload.NewUpdate1(e.store, e.config(0), e.logger)
		var affected int64
		elapsed, err := Episode(context.WithoutCancel(ctx), []Task{func(ctx context.Context) error {
			n, err := u.Run(ctx)
			affected = n
			return err
		}})
		res.Elapsed, res.Written = elapsed, affected
		return e.finish(res, err)
	}

	shares := Share(e.settings.N, e.settings.Threads)
	written := make([]int, len(shares))
	tasks := make([]Task, len(shares))
	for i, rows := range shares {
		w := workload.NewWriteWorker(i, e.store, e.cursor, e.config(rows), e.logger)
		idx := i
		tasks[i] = func(ctx context.Context) error {
			n, err := w.Run(ctx)
			written[idx] = n
			return err
		}
	}

	elapsed, err := Episode(context.WithoutCancel(ctx), tasks)
	res.Elapsed = elapsed
	for _, n := range written {
		res.Written += int64(n)
	}
	return e.finish(res, err)
}

// Run executes the repetitions in order and stops at the first failure.
func (e *WriteExperiment) Run(ctx context.Context) ([]WriteRun, error) {
	e.logger.Info(logMsgExperimentStarted,
		logAttrExperiment, e.id.String(),
		logAttrKind, "writes",
		logAttrRuns, e.settings.Runs,
		logAttrThreads, e.settings.Threads,
		logAttrIsolation, string(e.settings.Level),
		logAttrMode, string(e.settings.Mode),
	)

	runs := make([]WriteRun, 0, e.settings.Runs)
	for run := 0; run < e.settings.Runs; run++ {
		if stopRequested(ctx, e.stop) {
			e.logger.Warn(logMsgStopped, logAttrExperiment, e.id.String(), logAttrRun, run)
			break
		}
		res, err := e.RunOnce(ctx, run)
		if err != nil {
			return runs, err
		}
		runs = append(runs, res)
	}
	return runs, nil
}

func (e *WriteExperiment) config(rows int) workload.WriteConfig {
	return workload.WriteConfig{
		Level:         e.settings.Level,
		Statement:     e.settings.Statement,
		LockStatement: e.settings.LockStatement,
		Rows:          rows,
		WriteOptions: workload.WriteOptions{
			Mode:       e.settings.Mode,
			Trans:      e.settings.Trans,
			Attributes: e.settings.Attributes,
			Latency:    e.latency,
		},
	}
}

func (e *WriteExperiment) finish(res WriteRun, err error) (WriteRun, error) {
	if err != nil {
		e.logger.Error(logMsgRunFailed, logAttrExperiment, e.id.String(), logAttrRun, res.Run, logAttrError, err.Error())
		return res, err
	}
	e.logger.Info(logMsgRunFinished,
		logAttrExperiment, e.id.String(),
		logAttrRun, res.Run,
		logAttrElapsed, res.Elapsed.Seconds(),
		logAttrRows, res.Written,
	)
	return res, nil
}
