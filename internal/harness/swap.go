package harness

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/observability"
	"github.com/isobench/isobench/internal/store"
	"github.com/isobench/isobench/internal/workload"
	"github.com/isobench/isobench/pkg/types"
)

// SwapSettings configures a swap experiment.
type SwapSettings struct {
	Runs    int
	Threads int

	// Swaps is the total per repetition, shared among the threads
	Swaps int

	Level types.IsolationLevel
	Low   int64
	High  int64

	ReadDelay     time.Duration
	ObserverDelay time.Duration

	Statements store.Statements

	// Seed makes the drawn account pairs reproducible; 0 picks a random seed
	Seed uint64
}

// Validate checks the settings before any worker starts.
func (s SwapSettings) Validate() error {
	if s.Runs < 1 {
		return errors.InvalidSpec("runs must be at least 1, got %d", s.Runs)
	}
	if s.Threads < 1 {
		return errors.InvalidSpec("threads must be at least 1, got %d", s.Threads)
	}
	if s.Swaps < 0 {
		return errors.InvalidSpec("swaps must not be negative, got %d", s.Swaps)
	}
	if s.High <= s.Low {
		return errors.InvalidSpec("account range [%d, %d] needs at least two accounts", s.Low, s.High)
	}
	if _, err := types.ParseIsolationLevel(string(s.Level)); err != nil {
		return errors.InvalidSpec("%v", err)
	}
	if s.Statements.Read == "" || s.Statements.Write == "" || s.Statements.Sum == "" {
		return errors.InvalidSpec("read, write and sum statements are required")
	}
	return nil
}

// SwapRun is the outcome of one timed repetition.
type SwapRun struct {
	Run     int           `json:"run"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Swaps   int           `json:"swaps"`

	// Before is the total read before the workers started
	Before int64 `json:"before"`

	// Observed is the total read by the observer while the swaps ran
	Observed int64 `json:"observed"`

	Conserved  bool  `json:"conserved"`
	Divergence int64 `json:"divergence"`

	CloseFailures int `json:"close_failures"`
}

// SwapExperiment races swap workers against one observer, Runs times.
type SwapExperiment struct {
	id       uuid.UUID
	store    store.Store
	settings SwapSettings
	latency  *observability.LatencyRecorder
	logger   observability.Logger
	stop     <-chan struct{}
}

// NewSwapExperiment validates settings and creates the experiment.
// stop may be nil; when it is closed no further repetition starts.
func NewSwapExperiment(s store.Store, settings SwapSettings, latency *observability.LatencyRecorder, logger observability.Logger, stop <-chan struct{}) (*SwapExperiment, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.Seed == 0 {
		settings.Seed = rand.Uint64()
	}
	return &SwapExperiment{
		id:       newRunID(),
		store:    s,
		settings: settings,
		latency:  latency,
		logger:   observability.OrNop(logger),
		stop:     stop,
	}, nil
}

// ID identifies the experiment in logs and reports.
func (e *SwapExperiment) ID() uuid.UUID {
	return e.id
}

// Settings returns the effective settings, including the chosen seed.
func (e *SwapExperiment) Settings() SwapSettings {
	return e.settings
}

// Baseline reads the total balance with no swaps running.
func (e *SwapExperiment) Baseline(ctx context.Context) (int64, error) {
	obs := workload.NewObserver(e.store, e.settings.Level, e.settings.Statements.Sum, 0, nil, e.logger)
	return obs.Run(ctx)
}

// RunOnce runs repetition run: Threads swap workers and one observer start
// together and the elapsed time covers all of them.
func (e *SwapExperiment) RunOnce(ctx context.Context, run int) (SwapRun, error) {
	res := SwapRun{Run: run}

	before, err := e.Baseline(ctx)
	if err != nil {
		return res, err
	}
	res.Before = before

	shares := Share(e.settings.Swaps, e.settings.Threads)
	results := make([]workload.SwapResult, len(shares))
	var observed int64

	tasks := make([]Task, 0, len(shares)+1)
	for i, n := range shares {
		cfg := workload.SwapConfig{
			Level:          e.settings.Level,
			Low:            e.settings.Low,
			High:           e.settings.High,
			Swaps:          n,
			ReadDelay:      e.settings.ReadDelay,
			ReadStatement:  e.settings.Statements.Read,
			WriteStatement: e.settings.Statements.Write,
		}
		rng := rand.New(rand.NewPCG(e.settings.Seed, uint64(run)<<32|uint64(i)))
		w := workload.NewSwapWorker(i, e.store, cfg, rng, e.latency, e.logger)
		idx := i
		tasks = append(tasks, func(ctx context.Context) error {
			r, err := w.Run(ctx)
			results[idx] = r
			return err
		})
	}
	obs := workload.NewObserver(e.store, e.settings.Level, e.settings.Statements.Sum, e.settings.ObserverDelay, e.latency, e.logger)
	tasks = append(tasks, func(ctx context.Context) error {
		sum, err := obs.Run(ctx)
		observed = sum
		return err
	})

	// A started repetition always runs to completion.
	elapsed, err := Episode(context.WithoutCancel(ctx), tasks)
	res.Elapsed = elapsed
	for _, r := range results {
		res.Swaps += r.Swaps
		if r.CloseErr != nil {
			res.CloseFailures++
		}
	}
	if err != nil {
		e.logger.Error(logMsgRunFailed, logAttrExperiment, e.id.String(), logAttrRun, run, logAttrError, err.Error())
		return res, err
	}

	res.Observed = observed
	res.Divergence = observed - before
	res.Conserved = res.Divergence == 0

	e.logger.Info(logMsgRunFinished,
		logAttrExperiment, e.id.String(),
		logAttrRun, run,
		logAttrElapsed, elapsed.Seconds(),
		logAttrSwaps, res.Swaps,
		logAttrObserved, observed,
		logAttrConserved, res.Conserved,
	)
	return res, nil
}

// Run executes the repetitions in order and stops at the first failure.
// A stop request is honored between repetitions.
func (e *SwapExperiment) Run(ctx context.Context) ([]SwapRun, error) {
	e.logger.Info(logMsgExperimentStarted,
		logAttrExperiment, e.id.String(),
		logAttrKind, "swap",
		logAttrRuns, e.settings.Runs,
		logAttrThreads, e.settings.Threads,
		logAttrIsolation, string(e.settings.Level),
		logAttrSeed, e.settings.Seed,
	)

	runs := make([]SwapRun, 0, e.settings.Runs)
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

func newRunID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
