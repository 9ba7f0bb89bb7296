// Package cli implements the isobench command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/isobench/isobench/internal/app"
	"github.com/isobench/isobench/internal/config"
	"github.com/isobench/isobench/internal/observability"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	EnvFile    string
	DataDir    string
	Driver     string
	DSN        string
	StatusAddr string
	Publish    bool
	Verbose    bool
	Format     string // "json" | "text"
	LogFormat  string // "json" | "text"
}

// ValidFormats defines the allowed output and log formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the isobench CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "isobench",
		Short: "isobench - isolation anomaly benchmark",
		Long: `Generate synthetic tables and measure what concurrent transactions
observe under the isolation levels UR, CS, RS and RR.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return WrapExitError(ExitConfig, "invalid flag", fmt.Errorf("format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !isValidFormat(opts.LogFormat) {
				return WrapExitError(ExitConfig, "invalid flag", fmt.Errorf("log-format %q: must be one of %v", opts.LogFormat, ValidFormats))
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return WrapExitError(ExitConfig, "invalid flag", err)
	})

	// Global flags
	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigFile, "config", "c", "", "configuration file (YAML or JSON)")
	pf.StringVar(&opts.EnvFile, "env-file", "", "environment file to load (default .env if present)")
	pf.StringVar(&opts.DataDir, "data-dir", "", "base directory for databases and results")
	pf.StringVar(&opts.Driver, "driver", "", "database driver (sqlite3, sqlite, postgres, pgx, mysql)")
	pf.StringVar(&opts.DSN, "dsn", "", "data source name, overrides the connection settings")
	pf.StringVar(&opts.StatusAddr, "status-addr", "", "serve gRPC health status on this address")
	pf.BoolVar(&opts.Publish, "publish", false, "publish results to the configured artifact storage")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "result output format (json|text)")
	pf.StringVar(&opts.LogFormat, "log-format", "text", "log format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewGenTableCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewSwapCommand(opts))
	cmd.AddCommand(NewWritesCommand(opts))
	cmd.AddCommand(NewReadsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig layers defaults or the config file, the environment and the
// global flags, in increasing priority.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if err := config.LoadEnvFile(opts.EnvFile, opts.EnvFile != ""); err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if opts.ConfigFile != "" {
		loaded, err := config.LoadFromFile(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	config.LoadFromEnv(cfg)

	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.Driver != "" {
		cfg.Store.Driver = opts.Driver
	}
	if opts.DSN != "" {
		cfg.Store.DSN = opts.DSN
	}
	if opts.StatusAddr != "" {
		cfg.Status.Enabled = true
		cfg.Status.Addr = opts.StatusAddr
	}
	if opts.Publish {
		cfg.Results.Publish = true
	}
	return cfg, nil
}

// execute loads the configuration, applies the command's own flags, and
// runs fn against a started App. Without needStore the store stays closed.
func execute(cmd *cobra.Command, opts *RootOptions, needStore bool, apply func(*config.Config), fn func(ctx context.Context, a *app.App) error) error {
	logger := observability.NewLogger(cmd.ErrOrStderr(), opts.LogFormat, opts.Verbose)

	cfg, err := loadConfig(opts)
	if err != nil {
		return classify("failed to load configuration", err)
	}
	if apply != nil {
		apply(cfg)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return classify("invalid configuration", err)
	}
	if opts.Verbose {
		printBanner(cmd.ErrOrStderr(), cmd.Name(), cfg)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if needStore {
		if err := a.Start(ctx); err != nil {
			return classify("failed to start", err)
		}
		defer func() {
			if cerr := a.Close(); cerr != nil {
				logger.Warn("close failed", "error", cerr.Error())
			}
		}()
	}

	return classify(cmd.Name()+" failed", fn(ctx, a))
}

// printBanner prints the startup banner with a configuration summary.
func printBanner(w io.Writer, command string, cfg *config.Config) {
	fmt.Fprintln(w, strings.Repeat("=", 48))
	fmt.Fprintf(w, " isobench %s\n", command)
	fmt.Fprintln(w, strings.Repeat("=", 48))
	for _, line := range app.Describe(cfg) {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintln(w)
}
