// Package app wires configuration, the store under test, artifact storage
// and the status endpoint around the isobench experiments.
package app

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/isobench/isobench/internal/config"
	"github.com/isobench/isobench/internal/dataset"
	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/harness"
	"github.com/isobench/isobench/internal/observability"
	"github.com/isobench/isobench/internal/report"
	"github.com/isobench/isobench/internal/server"
	"github.com/isobench/isobench/internal/specfile"
	"github.com/isobench/isobench/internal/storage"
	"github.com/isobench/isobench/internal/store"
	"github.com/isobench/isobench/internal/synth"
	"github.com/isobench/isobench/pkg/types"
)

// App owns the resources shared by one isobench command.
type App struct {
	cfg    *config.Config
	logger observability.Logger

	store   *store.SQLStore
	stop    *server.StopSignal
	status  *server.StatusServer
	release func()
	mu      sync.Mutex
	started bool
	now     func() time.Time
}

// New resolves and validates the shared configuration sections.
func New(cfg *config.Config, logger observability.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateResults(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return &App{
		cfg:    cfg,
		logger: observability.OrNop(logger),
		stop:   server.NewStopSignal(),
		now:    time.Now,
	}, nil
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Stop returns the stop signal checked between repetitions.
func (a *App) Stop() *server.StopSignal {
	return a.stop
}

// Start opens the store, listens for signals and starts the status endpoint
// when enabled.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return errors.NewInternalError("app is already started", nil)
	}

	dsn, err := a.cfg.StoreDSN()
	if err != nil {
		return err
	}
	s, err := store.Open(ctx, store.Options{
		Driver:       a.cfg.Store.Driver,
		DSN:          dsn,
		MaxOpenConns: a.cfg.Store.MaxOpenConns,
		PingTimeout:  a.cfg.Store.PingTimeout,
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}
	a.store = s
	a.stop.RegisterCloser(s)

	if a.cfg.Status.Enabled {
		a.status = server.NewStatusServer(a.logger)
		if err := a.status.Start(a.cfg.Status.Addr); err != nil {
			a.stop.Close()
			return errors.NewInternalError("start status endpoint", err)
		}
		a.stop.RegisterCloser(a.status)
	}

	a.stop.OnStop(func(reason string) {
		a.logger.Warn(logMsgStopRequested, logAttrReason, reason)
	})
	a.release = a.stop.Listen(ctx)
	a.started = true
	return nil
}

// Close releases everything Start acquired.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.release != nil {
		a.release()
		a.release = nil
	}
	a.started = false
	return a.stop.Close()
}

// Store returns the opened store; nil before Start.
func (a *App) Store() *store.SQLStore {
	return a.store
}

func (a *App) serving(on bool) {
	if a.status != nil {
		a.status.SetServing(on)
	}
}

// GenerateTable builds the dataset described by the generate section and
// writes it to the configured table file.
func (a *App) GenerateTable() (*dataset.Dataset, error) {
	if err := a.cfg.ValidateGenerate(); err != nil {
		return nil, err
	}
	g := a.cfg.Generate
	ds, err := a.generate(g.SpecFile, g.NumTuples, g.NumTuples, g.NumKeys)
	if err != nil {
		return nil, err
	}
	if err := dataset.WriteTableFile(g.Output, ds); err != nil {
		return nil, errors.NewResultsError(errors.CodeReportFailed, "write table "+g.Output, err)
	}
	a.logger.Info(logMsgTableWritten,
		logAttrPath, g.Output,
		logAttrRows, ds.Len(),
		logAttrFingerprint, ds.Fingerprint(),
	)
	return ds, nil
}

func (a *App) generate(specPath string, numrows, numwrites, numkeys int) (*dataset.Dataset, error) {
	specs, err := specfile.ParseFile(specPath)
	if err != nil {
		return nil, err
	}
	var opts []synth.Option
	if a.cfg.Generate.Seed != 0 {
		opts = append(opts, synth.WithSeed(a.cfg.Generate.Seed))
	}
	return dataset.Generate(specs, numrows, numwrites, numkeys, opts...)
}

// InitAccounts creates and seeds the swap accounts table.
func (a *App) InitAccounts(ctx context.Context, recreate bool) (int64, error) {
	s := a.cfg.Swap
	if s.High < s.Low {
		return 0, errors.InvalidSpec("swap.high (%d) is below swap.low (%d)", s.High, s.Low)
	}
	step := s.BalanceStep
	total, err := store.InitAccounts(ctx, a.store, store.AccountsOptions{
		Table:    a.cfg.Store.Table,
		Low:      s.Low,
		High:     s.High,
		Balance:  func(id int64) int64 { return id * step },
		Recreate: recreate,
		Logger:   a.logger,
	})
	if err != nil {
		return 0, err
	}
	a.logger.Info(logMsgAccountsReady, logAttrTable, a.cfg.Store.Table, logAttrTotal, total)
	return total, nil
}

// swapStatements generates the dialect defaults and replaces those given as files.
func (a *App) swapStatements() (store.Statements, error) {
	st, err := store.DefaultStatements(a.store.Dialect(), a.cfg.Store.Table)
	if err != nil {
		return st, err
	}
	for _, f := range []struct {
		path string
		dst  *string
	}{
		{a.cfg.Swap.ReadFile, &st.Read},
		{a.cfg.Swap.WriteFile, &st.Write},
		{a.cfg.Swap.SumFile, &st.Sum},
	} {
		if f.path == "" {
			continue
		}
		text, err := store.LoadStatement(f.path)
		if err != nil {
			return st, err
		}
		*f.dst = text
	}
	return st, nil
}

// RunSwap runs the swap experiment and records its results.
func (a *App) RunSwap(ctx context.Context) (*report.Report, error) {
	if err := a.cfg.ValidateSwap(); err != nil {
		return nil, err
	}
	st, err := a.swapStatements()
	if err != nil {
		return nil, err
	}

	s := a.cfg.Swap
	settings := harness.SwapSettings{
		Runs:          s.Runs,
		Threads:       s.Threads,
		Swaps:         s.Swaps,
		Level:         types.IsolationLevel(s.Isolation),
		Low:           s.Low,
		High:          s.High,
		ReadDelay:     s.ReadDelay,
		ObserverDelay: s.ObserverDelay,
		Statements:    st,
		Seed:          a.cfg.Generate.Seed,
	}
	latency := observability.NewLatencyRecorder()
	exp, err := harness.NewSwapExperiment(a.store, settings, latency, a.logger, a.stop.Stopped())
	if err != nil {
		return nil, err
	}

	rep := a.newReport(exp.ID().String(), "swap", s.Isolation, exp.Settings())
	baseline, err := exp.Baseline(ctx)
	if err != nil {
		return nil, err
	}
	rep.Baseline = &baseline

	a.serving(true)
	runs, runErr := exp.Run(ctx)
	a.serving(false)

	sums := make([]int64, len(runs))
	for i, r := range runs {
		sums[i] = r.Observed
	}
	if err := report.AppendSums(s.Output, sums); err != nil {
		return nil, err
	}
	rep.Runs = runs
	return a.finish(ctx, rep, s.Output, latency, runErr)
}

// RunWrites runs the write experiment and records its results.
func (a *App) RunWrites(ctx context.Context) (*report.Report, error) {
	if err := a.cfg.ValidateWrites(); err != nil {
		return nil, err
	}
	w := a.cfg.Writes
	mode := types.WriteMode(w.Mode)

	statement, err := store.LoadStatement(w.StatementFile)
	if err != nil {
		return nil, err
	}
	lock, err := a.lockStatement()
	if err != nil {
		return nil, err
	}

	var ds *dataset.Dataset
	if mode != types.WriteUpdate1 {
		if ds, err = a.generate(w.SpecFile, w.NumTuples, w.N*w.Runs, w.NumKeys); err != nil {
			return nil, err
		}
	}

	settings := harness.WriteSettings{
		Runs:          w.Runs,
		Threads:       w.Threads,
		N:             w.N,
		Level:         types.IsolationLevel(w.Isolation),
		Mode:          mode,
		Trans:         types.TransMode(w.Trans),
		Attributes:    w.Attributes,
		Statement:     statement,
		LockStatement: lock,
	}
	latency := observability.NewLatencyRecorder()
	exp, err := harness.NewWriteExperiment(a.store, ds, settings, latency, a.logger, a.stop.Stopped())
	if err != nil {
		return nil, err
	}

	rep := a.newReport(exp.ID().String(), "writes", w.Isolation, settings)
	rep.Dataset = report.Describe(ds)

	a.serving(true)
	runs, runErr := exp.Run(ctx)
	a.serving(false)

	rep.Runs = runs
	return a.finish(ctx, rep, w.Output, latency, runErr)
}

// lockStatement resolves the optional table lock of the write experiment.
func (a *App) lockStatement() (string, error) {
	w := a.cfg.Writes
	if !w.TableLock {
		return "", nil
	}
	if w.LockFile != "" {
		return store.LoadStatement(w.LockFile)
	}
	lock := a.store.Dialect().LockTableStatement(a.cfg.Store.Table)
	if lock == "" {
		a.logger.Warn(logMsgNoTableLock, logAttrDriver, a.cfg.Store.Driver)
	}
	return lock, nil
}

// RunReads runs the read experiment and records its results.
func (a *App) RunReads(ctx context.Context) (*report.Report, error) {
	if err := a.cfg.ValidateReads(); err != nil {
		return nil, err
	}
	r := a.cfg.Reads

	statement, err := store.LoadStatement(r.QueryFile)
	if err != nil {
		return nil, err
	}

	var ds *dataset.Dataset
	if len(r.Attributes) > 0 {
		if ds, err = a.generate(r.SpecFile, r.NumTuples, r.Queries, r.NumKeys); err != nil {
			return nil, err
		}
	}

	settings := harness.ReadSettings{
		Runs:       r.Runs,
		Queries:    r.Queries,
		Level:      types.IsolationLevel(r.Isolation),
		Statement:  statement,
		Attributes: r.Attributes,
	}
	latency := observability.NewLatencyRecorder()
	exp, err := harness.NewReadExperiment(a.store, ds, settings, latency, a.logger, a.stop.Stopped())
	if err != nil {
		return nil, err
	}

	rep := a.newReport(exp.ID().String(), "reads", r.Isolation, settings)
	rep.Dataset = report.Describe(ds)

	a.serving(true)
	runs, runErr := exp.Run(ctx)
	a.serving(false)

	rep.Runs = runs
	return a.finish(ctx, rep, r.Output, latency, runErr)
}

func (a *App) newReport(id, kind, isolation string, settings any) *report.Report {
	return &report.Report{
		ID:        id,
		Kind:      kind,
		Driver:    a.cfg.Store.Driver,
		Isolation: isolation,
		StartedAt: a.now().UTC(),
		Settings:  settings,
	}
}

// finish writes the report into its own directory under output, publishes
// it when configured, and returns runErr unchanged.
func (a *App) finish(ctx context.Context, rep *report.Report, output string, latency *observability.LatencyRecorder, runErr error) (*report.Report, error) {
	rep.FinishedAt = a.now().UTC()
	rep.Latency = latency.Summaries()
	if runErr != nil {
		rep.Error = runErr.Error()
	}

	dir := filepath.Join(output, rep.ID)
	p, err := report.Write(dir, rep)
	if err != nil {
		if runErr != nil {
			return rep, runErr
		}
		return rep, err
	}
	a.logger.Info(logMsgReportWritten, logAttrPath, p)

	if a.cfg.Results.Publish {
		if err := a.publish(ctx, dir, rep); err != nil && runErr == nil {
			return rep, err
		}
	}
	return rep, runErr
}

func (a *App) publish(ctx context.Context, dir string, rep *report.Report) error {
	sink, err := storage.Open(ctx, a.cfg.StorageConfig())
	if err != nil {
		return errors.NewResultsError(errors.CodePublishFailed, "open artifact storage", err)
	}
	prefix := path.Join(a.cfg.Results.Prefix, rep.Kind, rep.ID)
	objects, err := report.Publish(ctx, sink, dir, prefix)
	if err != nil {
		return err
	}
	a.logger.Info(logMsgPublished, logAttrPrefix, prefix, logAttrObjects, len(objects))
	return nil
}

// Describe returns a short human-readable summary of the configuration.
func Describe(cfg *config.Config) []string {
	lines := []string{
		fmt.Sprintf("Data Dir: %s", cfg.DataDir),
		fmt.Sprintf("Driver:   %s", cfg.Store.Driver),
		fmt.Sprintf("Table:    %s", cfg.Store.Table),
		fmt.Sprintf("Results:  %s", cfg.Results.Type),
	}
	if cfg.Status.Enabled {
		lines = append(lines, fmt.Sprintf("Status:   %s", cfg.Status.Addr))
	}
	return lines
}
