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

// ReadSettings configures a read experiment.
type ReadSettings struct {
	Runs       int
	Queries    int
	Level      types.IsolationLevel
	Statement  string
	Attributes []int
}

// ReadRun is the outcome of one timed read repetition.
type ReadRun struct {
	Run     int           `json:"run"`
	Elapsed time.Duration `json:"elapsed_ns"`

	// Fetched holds the row count of every query, in execution order
	Fetched []int `json:"fetched"`
}

// ReadExperiment runs one query repeatedly, Runs times.
type ReadExperiment struct {
	id       uuid.UUID
	store    store.Store
	ds       *dataset.Dataset
	settings ReadSettings
	latency  *observability.LatencyRecorder
	logger   observability.Logger
	stop     <-chan struct{}
}

// NewReadExperiment checks the query parameters against the attributes.
func NewReadExperiment(s store.Store, ds *dataset.Dataset, settings ReadSettings, latency *observability.LatencyRecorder, logger observability.Logger, stop <-chan struct{}) (*ReadExperiment, error) {
	if settings.Runs < 1 {
		return nil, errors.InvalidSpec("runs must be at least 1, got %d", settings.Runs)
	}
	if settings.Queries < 0 {
		return nil, errors.InvalidSpec("queries must not be negative, got %d", settings.Queries)
	}
	if settings.Statement == "" {
		return nil, errors.InvalidSpec("a query statement is required")
	}
	if err := workload.CheckParameters(settings.Statement, settings.Attributes); err != nil {
		return nil, err
	}
	if len(settings.Attributes) > 0 {
		if ds == nil {
			return nil, errors.InvalidSpec("query parameters need a generated dataset")
		}
		for _, a := range settings.Attributes {
			if a < 0 || a >= ds.NumCols() {
				return nil, errors.InvalidSpec("attribute %d outside the %d generated columns", a, ds.NumCols())
			}
		}
		if ds.Len() < settings.Queries {
			return nil, errors.InvalidSpec("%d queries need as many generated rows, dataset has %d", settings.Queries, ds.Len())
		}
	}
	return &ReadExperiment{
		id:       newRunID(),
		store:    s,
		ds:       ds,
		settings: settings,
		latency:  latency,
		logger:   observability.OrNop(logger),
		stop:     stop,
	}, nil
}

// ID identifies the experiment in logs and reports.
func (e *ReadExperiment) ID() uuid.UUID {
	return e.id
}

// Run executes the repetitions in order and stops at the first failure.
func (e *ReadExperiment) Run(ctx context.Context) ([]ReadRun, error) {
	e.logger.Info(logMsgExperimentStarted,
		logAttrExperiment, e.id.String(),
		logAttrKind, "reads",
		logAttrRuns, e.settings.Runs,
		logAttrIsolation, string(e.settings.Level),
	)

	cfg := workload.ReadConfig{
		Level:      e.settings.Level,
		Statement:  e.settings.Statement,
		Queries:    e.settings.Queries,
		Attributes: e.settings.Attributes,
	}

	runs := make([]ReadRun, 0, e.settings.Runs)
	for run := 0; run < e.settings.Runs; run++ {
		if stopRequested(ctx, e.stop) {
			e.logger.Warn(logMsgStopped, logAttrExperiment, e.id.String(), logAttrRun, run)
			break
		}

		reader := workload.NewReader(e.store, e.ds, cfg, e.latency, e.logger)
		var fetched []int
		elapsed, err := Episode(context.WithoutCancel(ctx), []Task{func(ctx context.Context) error {
			counts, err := reader.Run(ctx)
			fetched = counts
			return err
		}})
		if err != nil {
			e.logger.Error(logMsgRunFailed, logAttrExperiment, e.id.String(), logAttrRun, run, logAttrError, err.Error())
			return runs, err
		}

		total := 0
		for _, n := range fetched {
			total += n
		}
		e.logger.Info(logMsgRunFinished,
			logAttrExperiment, e.id.String(),
			logAttrRun, run,
			logAttrElapsed, elapsed.Seconds(),
			logAttrRows, total,
		)
		runs = append(runs, ReadRun{Run: run, Elapsed: elapsed, Fetched: fetched})
	}
	return runs, nil
}
