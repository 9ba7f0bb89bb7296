package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
)

// TableDelimiter separates values in generated table files.
const TableDelimiter = "|"

// CompressedExt selects snappy framing in WriteTableFile.
const CompressedExt = ".sz"

// WriteTable writes the schema row followed by every data row, one per line.
func WriteTable(w io.Writer, ds *Dataset) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(ds.SchemaRow().Delimited(TableDelimiter) + "\n"); err != nil {
		return fmt.Errorf("write schema row: %w", err)
	}
	for i, row := range ds.Rows {
		if _, err := bw.WriteString(row.Delimited(TableDelimiter) + "\n"); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WriteTableFile writes ds to path. Paths ending in .sz are written as a
// snappy framed stream.
func WriteTableFile(path string, ds *Dataset) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create table directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create table file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close table file: %w", cerr)
		}
	}()

	if filepath.Ext(path) != CompressedExt {
		return WriteTable(f, ds)
	}

	sw := snappy.NewBufferedWriter(f)
	if err := WriteTable(sw, ds); err != nil {
		return err
	}
	return sw.Close()
}
