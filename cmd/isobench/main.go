// Package main implements the isobench binary.
package main

import (
	"fmt"
	"os"

	"github.com/isobench/isobench/internal/cli"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	root := cli.NewRootCommand()
	root.Version = fmt.Sprintf("%s (commit: %s)", version, commit)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
