// Package specfile reads column specification files.
//
// A spec file has one column per line:
//
//	<kind-or-prefix> <draw> [baseOffset]
//
// where kind is "n" (numeric), "d" (date), or any other token, which is used
// as the prefix of a categorical column. Lines shorter than two characters,
// lines starting with whitespace, and lines starting with '/' or '#' are ignored.
package specfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/pkg/types"
)

const (
	tokenNumeric = "n"
	tokenDate    = "d"
)

// Parse reads column specs from r.
func Parse(r io.Reader) ([]types.ColumnSpec, error) {
	var specs []types.ColumnSpec

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if skipLine(line) {
			continue
		}

		spec, err := parseLine(line)
		if err != nil {
			return nil, errors.InvalidSpec("line %d: %v", lineNo, err)
		}
		specs = append(specs, spec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read spec file: %w", err)
	}

	if len(specs) == 0 {
		return nil, errors.InvalidSpec("spec file declares no columns")
	}
	return specs, nil
}

// ParseFile reads column specs from the file at path.
func ParseFile(path string) ([]types.ColumnSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCategoryConfig, errors.CodeInvalidSpec, "open spec file", err)
	}
	defer f.Close()

	return Parse(f)
}

func skipLine(line string) bool {
	if len(strings.TrimSpace(line)) < 2 {
		return true
	}
	first := rune(line[0])
	return unicode.IsSpace(first) || first == '/' || first == '#'
}

func parseLine(line string) (types.ColumnSpec, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return types.ColumnSpec{}, fmt.Errorf("expected <kind> <draw> [base], got %q", line)
	}

	draw, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return types.ColumnSpec{}, fmt.Errorf("invalid draw %q", fields[1])
	}
	if math.IsNaN(draw) || math.IsInf(draw, 0) || draw <= 0 {
		return types.ColumnSpec{}, fmt.Errorf("draw must be a positive number, got %q", fields[1])
	}

	var base int64
	if len(fields) > 2 {
		// Offsets may be written as floats; the fraction is dropped.
		f, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return types.ColumnSpec{}, fmt.Errorf("invalid base offset %q", fields[2])
		}
		base = int64(f)
	}

	switch fields[0] {
	case tokenNumeric:
		return types.Numeric(draw, base), nil
	case tokenDate:
		return types.Date(draw, base), nil
	default:
		return types.Categorical(fields[0], draw, base), nil
	}
}
