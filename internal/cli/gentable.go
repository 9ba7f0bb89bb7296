package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isobench/isobench/internal/app"
	"github.com/isobench/isobench/internal/config"
)

// GenTableOptions holds flags for the gentable command.
type GenTableOptions struct {
	*RootOptions
	SpecFile  string
	NumTuples int
	NumKeys   int
	Seed      uint64
	Output    string
}

// NewGenTableCommand creates the gentable command.
func NewGenTableCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenTableOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gentable",
		Short: "Generate a table file from a column spec file",
		Long: `Generate a synthetic table from a column spec file and write it as
vertical-bar delimited text. The first line holds the column types.

Each spec line is "<kind-or-prefix> <draw> [offset]" where kind is n
(numeric), d (date) or a prefix for categorical values.

Example:
  isobench gentable -f spec.txt --numtuples 100000 -k 1 -o table.txt
  isobench gentable -f spec.txt -o table.txt.sz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			apply := func(cfg *config.Config) {
				if f.Changed("specfile") {
					cfg.Generate.SpecFile = opts.SpecFile
				}
				if f.Changed("numtuples") {
					cfg.Generate.NumTuples = opts.NumTuples
				}
				if f.Changed("numkeys") {
					cfg.Generate.NumKeys = opts.NumKeys
				}
				if f.Changed("seed") {
					cfg.Generate.Seed = opts.Seed
				}
				if f.Changed("output") {
					cfg.Generate.Output = opts.Output
				}
			}
			return execute(cmd, opts.RootOptions, false, apply, func(ctx context.Context, a *app.App) error {
				ds, err := a.GenerateTable()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d rows written to %s (fingerprint %s)\n",
					ds.Len(), a.Config().Generate.Output, ds.Fingerprint())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.SpecFile, "specfile", "f", "", "column spec file")
	cmd.Flags().IntVar(&opts.NumTuples, "numtuples", 0, "number of rows to generate")
	cmd.Flags().IntVarP(&opts.NumKeys, "numkeys", "k", 0, "number of leading key columns")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed (0 for a random seed)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "table file (.sz for snappy)")

	return cmd
}
