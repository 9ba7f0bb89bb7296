package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/isobench/isobench/internal/app"
	"github.com/isobench/isobench/internal/config"
)

// SwapOptions holds flags for the swap command.
type SwapOptions struct {
	*RootOptions
	Runs          int
	Swaps         int
	Threads       int
	Isolation     string
	Low           int64
	High          int64
	ReadDelay     time.Duration
	ObserverDelay time.Duration
	ReadFile      string
	WriteFile     string
	SumFile       string
	Output        string
	Seed          uint64
}

// NewSwapCommand creates the swap command.
func NewSwapCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SwapOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Race balance swaps against a sum query",
		Long: `Run threads swap workers that exchange the balances of two accounts,
always reading the lower id first, while one observer sums all balances.
Each run records the observed sum; under RR it equals the sum before the run.

Example:
  isobench swap -r 5 -s 1000 -t 8 -i RR
  isobench swap -i UR --read-delay 1s --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			apply := func(cfg *config.Config) {
				s := &cfg.Swap
				if f.Changed("runs") {
					s.Runs = opts.Runs
				}
				if f.Changed("swaps") {
					s.Swaps = opts.Swaps
				}
				if f.Changed("threads") {
					s.Threads = opts.Threads
				}
				if f.Changed("isolation") {
					s.Isolation = opts.Isolation
				}
				if f.Changed("low") {
					s.Low = opts.Low
				}
				if f.Changed("high") {
					s.High = opts.High
				}
				if f.Changed("read-delay") {
					s.ReadDelay = opts.ReadDelay
				}
				if f.Changed("observer-delay") {
					s.ObserverDelay = opts.ObserverDelay
				}
				if f.Changed("read-file") {
					s.ReadFile = opts.ReadFile
				}
				if f.Changed("write-file") {
					s.WriteFile = opts.WriteFile
				}
				if f.Changed("sum-file") {
					s.SumFile = opts.SumFile
				}
				if f.Changed("output") {
					s.Output = opts.Output
				}
				if f.Changed("seed") {
					cfg.Generate.Seed = opts.Seed
				}
			}
			return execute(cmd, opts.RootOptions, true, apply, func(ctx context.Context, a *app.App) error {
				rep, err := a.RunSwap(ctx)
				if rep != nil {
					printReport(cmd.OutOrStdout(), opts.Format, rep)
				}
				return err
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Runs, "runs", "r", 1, "number of timed runs")
	cmd.Flags().IntVarP(&opts.Swaps, "swaps", "s", 100, "swaps per run, shared among the threads")
	cmd.Flags().IntVarP(&opts.Threads, "threads", "t", 4, "number of swap workers")
	cmd.Flags().StringVarP(&opts.Isolation, "isolation", "i", "RR", "isolation level (UR|CS|RS|RR)")
	cmd.Flags().Int64Var(&opts.Low, "low", 1, "lowest account id")
	cmd.Flags().Int64Var(&opts.High, "high", 1000, "highest account id")
	cmd.Flags().DurationVar(&opts.ReadDelay, "read-delay", 0, "pause between the two reads of a swap")
	cmd.Flags().DurationVar(&opts.ObserverDelay, "observer-delay", 0, "pause before the observer's sum")
	cmd.Flags().StringVar(&opts.ReadFile, "read-file", "", "swap read statement file")
	cmd.Flags().StringVar(&opts.WriteFile, "write-file", "", "swap write statement file")
	cmd.Flags().StringVar(&opts.SumFile, "sum-file", "", "observer sum statement file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "results directory")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed (0 for a random seed)")

	return cmd
}
