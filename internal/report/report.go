// Package report records experiment results: a JSON report per experiment,
// the observer sums file, and their publication to artifact storage.
package report

import (
	"bufio"
	"context"
	stderrors "errors"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/isobench/isobench/internal/dataset"
	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/observability"
	"github.com/isobench/isobench/internal/storage"
)

// File names inside a results directory.
const (
	ReportFile = "report.json"
	SumsFile   = "output.txt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DatasetInfo identifies the generated data an experiment used.
type DatasetInfo struct {
	Rows        int    `json:"rows"`
	Columns     int    `json:"columns"`
	Keys        int    `json:"keys"`
	Fingerprint string `json:"fingerprint"`
}

// Report is the persisted outcome of one experiment.
type Report struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Driver     string    `json:"driver"`
	Isolation  string    `json:"isolation"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Settings any          `json:"settings,omitempty"`
	Dataset  *DatasetInfo `json:"dataset,omitempty"`

	// Baseline is the total balance before the first swap repetition
	Baseline *int64 `json:"baseline,omitempty"`

	Runs    any                            `json:"runs"`
	Latency []observability.LatencySummary `json:"latency,omitempty"`
	Error   string                         `json:"error,omitempty"`
}

// Describe summarizes ds for a report. It returns nil for a nil dataset.
func Describe(ds *dataset.Dataset) *DatasetInfo {
	if ds == nil {
		return nil
	}
	return &DatasetInfo{
		Rows:        ds.Len(),
		Columns:     ds.NumCols(),
		Keys:        ds.NumKeys,
		Fingerprint: ds.Fingerprint(),
	}
}

// Write stores r as dir/report.json and returns the file path.
func Write(dir string, r *Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.NewResultsError(errors.CodeReportFailed, "create results directory", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", errors.NewResultsError(errors.CodeReportFailed, "encode report", err)
	}
	p := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(p, append(data, '\n'), 0644); err != nil {
		return "", errors.NewResultsError(errors.CodeReportFailed, "write report", err)
	}
	return p, nil
}

// Read loads a report written by Write.
func Read(p string) (*Report, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.NewResultsError(errors.CodeReportFailed, "read report", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.NewResultsError(errors.CodeReportFailed, "decode report", err)
	}
	return &r, nil
}

// AppendSums appends one line per observer sum to dir/output.txt.
func AppendSums(dir string, sums []int64) (err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewResultsError(errors.CodeReportFailed, "create results directory", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, SumsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.NewResultsError(errors.CodeReportFailed, "open sums file", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.NewResultsError(errors.CodeReportFailed, "close sums file", cerr)
		}
	}()

	w := bufio.NewWriter(f)
	for _, s := range sums {
		w.WriteString(strconv.FormatInt(s, 10))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return errors.NewResultsError(errors.CodeReportFailed, "write sums file", err)
	}
	return nil
}

// Publish uploads every regular file of dir to prefix/<name> and returns
// the object paths in name order. It refuses to overwrite objects that are
// already published, removes its partial uploads when an upload fails, and
// confirms the result against a listing of prefix.
func Publish(ctx context.Context, store storage.ArtifactStore, dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewResultsError(errors.CodePublishFailed, "list results directory", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		object := path.Join(prefix, e.Name())
		exists, err := store.Exists(ctx, object)
		if err != nil {
			return nil, errors.NewResultsError(errors.CodePublishFailed, "check "+object, err)
		}
		if exists {
			return nil, errors.New(errors.ErrCategoryResults, errors.CodeAlreadyExists, object+" is already published")
		}
		names = append(names, e.Name())
	}

	var published []string
	for _, name := range names {
		object := path.Join(prefix, name)
		if err := store.Upload(ctx, filepath.Join(dir, name), object); err != nil {
			return nil, errors.NewResultsError(errors.CodePublishFailed, "upload "+name, unpublish(ctx, store, published, err))
		}
		published = append(published, object)
	}

	listPrefix := prefix
	if listPrefix != "" {
		listPrefix += "/"
	}
	listed, err := store.ListObjects(ctx, listPrefix)
	if err != nil {
		return published, errors.NewResultsError(errors.CodePublishFailed, "list "+prefix, err)
	}
	found := make(map[string]bool, len(listed))
	for _, object := range listed {
		found[object] = true
	}
	for _, object := range published {
		if !found[object] {
			return published, errors.New(errors.ErrCategoryResults, errors.CodePublishFailed, object+" missing after upload")
		}
	}
	return published, nil
}

// unpublish deletes objects uploaded before cause and joins any delete failures to it.
func unpublish(ctx context.Context, store storage.ArtifactStore, objects []string, cause error) error {
	errs := []error{cause}
	for _, object := range objects {
		if err := store.Delete(ctx, object); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
