package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/isobench/isobench/internal/app"
	"github.com/isobench/isobench/internal/config"
)

// WritesOptions holds flags for the writes command.
type WritesOptions struct {
	*RootOptions
	Runs       int
	Threads    int
	Isolation  string
	Mode       string
	Trans      string
	N          int
	NumTuples  int
	SpecFile   string
	NumKeys    int
	Attributes []int
	TableLock  bool
	LockFile   string
	Statement  string
	Output     string
	Seed       uint64
}

// NewWritesCommand creates the writes command.
func NewWritesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WritesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "writes",
		Short: "Time concurrent inserts or updates of generated rows",
		Long: `Generate n * runs rows from a spec file, then in every run have the
write workers draw n rows from a shared cursor and write them.

Modes: insertN binds whole rows, updateN binds the given attributes in order,
update1 runs the statement once. Trans 1 commits once per worker, N after
every write.

Example:
  isobench writes -f spec.txt --statement insert.sql -n 10000 -t 4 --trans N
  isobench writes -m updateN -a 2,0 -f spec.txt --statement update.sql --lock`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			apply := func(cfg *config.Config) {
				w := &cfg.Writes
				if f.Changed("runs") {
					w.Runs = opts.Runs
				}
				if f.Changed("threads") {
					w.Threads = opts.Threads
				}
				if f.Changed("isolation") {
					w.Isolation = opts.Isolation
				}
				if f.Changed("mode") {
					w.Mode = opts.Mode
				}
				if f.Changed("trans") {
					w.Trans = opts.Trans
				}
				if f.Changed("n") {
					w.N = opts.N
				}
				if f.Changed("numtuples") {
					w.NumTuples = opts.NumTuples
				}
				if f.Changed("specfile") {
					w.SpecFile = opts.SpecFile
				}
				if f.Changed("numkeys") {
					w.NumKeys = opts.NumKeys
				}
				if f.Changed("attributes") {
					w.Attributes = opts.Attributes
				}
				if f.Changed("lock") {
					w.TableLock = opts.TableLock
				}
				if f.Changed("lock-file") {
					w.LockFile = opts.LockFile
					w.TableLock = true
				}
				if f.Changed("statement") {
					w.StatementFile = opts.Statement
				}
				if f.Changed("output") {
					w.Output = opts.Output
				}
				if f.Changed("seed") {
					cfg.Generate.Seed = opts.Seed
				}
			}
			return execute(cmd, opts.RootOptions, true, apply, func(ctx context.Context, a *app.App) error {
				rep, err := a.RunWrites(ctx)
				if rep != nil {
					printReport(cmd.OutOrStdout(), opts.Format, rep)
				}
				return err
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Runs, "runs", "r", 1, "number of timed runs")
	cmd.Flags().IntVarP(&opts.Threads, "threads", "t", 1, "number of write workers")
	cmd.Flags().StringVarP(&opts.Isolation, "isolation", "i", "RR", "isolation level (UR|CS|RS|RR)")
	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "insertN", "write mode (insertN|update1|updateN)")
	cmd.Flags().StringVar(&opts.Trans, "trans", "1", "transactions per worker batch (1|N)")
	cmd.Flags().IntVarP(&opts.N, "n", "n", 1000, "rows written per run")
	cmd.Flags().IntVar(&opts.NumTuples, "numtuples", 1000000, "population size the rows are drawn from")
	cmd.Flags().StringVarP(&opts.SpecFile, "specfile", "f", "", "column spec file")
	cmd.Flags().IntVarP(&opts.NumKeys, "numkeys", "k", 1, "number of leading key columns")
	cmd.Flags().IntSliceVarP(&opts.Attributes, "attributes", "a", nil, "row positions bound by updateN, in order")
	cmd.Flags().BoolVar(&opts.TableLock, "lock", false, "lock the table at the start of every transaction")
	cmd.Flags().StringVar(&opts.LockFile, "lock-file", "", "table lock statement file (implies --lock)")
	cmd.Flags().StringVar(&opts.Statement, "statement", "", "write statement file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "results directory")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed (0 for a random seed)")

	return cmd
}
