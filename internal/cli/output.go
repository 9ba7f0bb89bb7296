package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/harness"
	"github.com/isobench/isobench/internal/report"
)

// Exit codes for CLI commands.
const (
	ExitSuccess = 0 // Successful execution
	ExitFailure = 1 // A store or worker failure during an experiment
	ExitConfig  = 2 // Invalid configuration or failed precondition
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps an error to the process exit code. Configuration errors
// exit with 2 and every other failure with 1.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.IsConfigError(err) {
		return ExitConfig
	}
	return ExitFailure
}

// classify wraps err with the exit code its category calls for.
func classify(message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.IsConfigError(err) {
		return WrapExitError(ExitConfig, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

// printReport writes rep to w as indented JSON or as one line per run.
func printReport(w io.Writer, format string, rep *report.Report) error {
	if format == "json" {
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "experiment %s (%s, %s, %s)\n", rep.ID, rep.Kind, rep.Driver, rep.Isolation)
	if rep.Baseline != nil {
		fmt.Fprintf(w, "baseline sum: %d\n", *rep.Baseline)
	}
	switch runs := rep.Runs.(type) {
	case []harness.SwapRun:
		for _, r := range runs {
			fmt.Fprintf(w, "run %d: %s swaps=%d sum=%d conserved=%t divergence=%d\n",
				r.Run, seconds(r.Elapsed), r.Swaps, r.Observed, r.Conserved, r.Divergence)
		}
	case []harness.WriteRun:
		for _, r := range runs {
			fmt.Fprintf(w, "run %d: %s written=%d offset=%d\n", r.Run, seconds(r.Elapsed), r.Written, r.Offset)
		}
	case []harness.ReadRun:
		for _, r := range runs {
			total := 0
			for _, n := range r.Fetched {
				total += n
			}
			fmt.Fprintf(w, "run %d: %s queries=%d rows=%d\n", r.Run, seconds(r.Elapsed), len(r.Fetched), total)
		}
	}
	return nil
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.6fs", d.Seconds())
}
