package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/isobench/isobench/internal/app"
	"github.com/isobench/isobench/internal/config"
)

// ReadsOptions holds flags for the reads command.
type ReadsOptions struct {
	*RootOptions
	Runs       int
	Queries    int
	Isolation  string
	SpecFile   string
	NumKeys    int
	NumTuples  int
	Attributes []int
	Query      string
	Output     string
	Seed       uint64
}

// NewReadsCommand creates the reads command.
func NewReadsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reads",
		Short: "Time a query run repeatedly",
		Long: `Run a query queries times per run. When the query has ? parameters,
give one attribute position per parameter; query i binds the attributes of
generated row i.

Example:
  isobench reads --query q.sql -q 100
  isobench reads --query lookup.sql -q 1000 -f spec.txt -a 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			apply := func(cfg *config.Config) {
				r := &cfg.Reads
				if f.Changed("runs") {
					r.Runs = opts.Runs
				}
				if f.Changed("queries") {
					r.Queries = opts.Queries
				}
				if f.Changed("isolation") {
					r.Isolation = opts.Isolation
				}
				if f.Changed("specfile") {
					r.SpecFile = opts.SpecFile
				}
				if f.Changed("numkeys") {
					r.NumKeys = opts.NumKeys
				}
				if f.Changed("numtuples") {
					r.NumTuples = opts.NumTuples
				}
				if f.Changed("attributes") {
					r.Attributes = opts.Attributes
				}
				if f.Changed("query") {
					r.QueryFile = opts.Query
				}
				if f.Changed("output") {
					r.Output = opts.Output
				}
				if f.Changed("seed") {
					cfg.Generate.Seed = opts.Seed
				}
			}
			return execute(cmd, opts.RootOptions, true, apply, func(ctx context.Context, a *app.App) error {
				rep, err := a.RunReads(ctx)
				if rep != nil {
					printReport(cmd.OutOrStdout(), opts.Format, rep)
				}
				return err
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Runs, "runs", "r", 1, "number of timed runs")
	cmd.Flags().IntVarP(&opts.Queries, "queries", "q", 1, "queries per run")
	cmd.Flags().StringVarP(&opts.Isolation, "isolation", "i", "CS", "isolation level (UR|CS|RS|RR)")
	cmd.Flags().StringVarP(&opts.SpecFile, "specfile", "f", "", "column spec file for parameter values")
	cmd.Flags().IntVarP(&opts.NumKeys, "numkeys", "k", 1, "number of leading key columns")
	cmd.Flags().IntVar(&opts.NumTuples, "numtuples", 1000, "population size the parameters are drawn from")
	cmd.Flags().IntSliceVarP(&opts.Attributes, "attributes", "a", nil, "row positions bound to the query parameters")
	cmd.Flags().StringVar(&opts.Query, "query", "", "query statement file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "results directory")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed (0 for a random seed)")

	return cmd
}
