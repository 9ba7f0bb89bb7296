package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isobench/isobench/internal/app"
	"github.com/isobench/isobench/internal/config"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Low         int64
	High        int64
	BalanceStep int64
	Recreate    bool
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create and seed the accounts table used by swap",
		Long: `Create the accounts table and seed one account per id in [low, high]
with balance id * balance-step.

Example:
  isobench init --low 1 --high 1000 --recreate
  isobench init --driver pgx --dsn "postgres://bench@localhost/bench"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			apply := func(cfg *config.Config) {
				if f.Changed("low") {
					cfg.Swap.Low = opts.Low
				}
				if f.Changed("high") {
					cfg.Swap.High = opts.High
				}
				if f.Changed("balance-step") {
					cfg.Swap.BalanceStep = opts.BalanceStep
				}
			}
			return execute(cmd, opts.RootOptions, true, apply, func(ctx context.Context, a *app.App) error {
				total, err := a.InitAccounts(ctx, opts.Recreate)
				if err != nil {
					return err
				}
				cfg := a.Config()
				fmt.Fprintf(cmd.OutOrStdout(), "%d accounts in %s, total balance %d\n",
					cfg.Swap.High-cfg.Swap.Low+1, cfg.Store.Table, total)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&opts.Low, "low", 1, "lowest account id")
	cmd.Flags().Int64Var(&opts.High, "high", 1000, "highest account id")
	cmd.Flags().Int64Var(&opts.BalanceStep, "balance-step", 1, "balance of account id is id * step")
	cmd.Flags().BoolVar(&opts.Recreate, "recreate", false, "drop the table first")

	return cmd
}
