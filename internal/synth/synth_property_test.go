package synth

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/isobench/isobench/pkg/types"
)

func distinct(values []int64) int {
	seen := make(map[int64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// TestProperty_KeyColumnIsPermutation checks that a draw of 1 over
// numrows == numwrites yields a permutation of [base, base+numrows).
func TestProperty_KeyColumnIsPermutation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("draw 1 is a permutation of the shifted domain", prop.ForAll(
		func(numrows int, base int64, seed uint64) bool {
			draws, err := New(WithSeed(seed)).Draw(types.Numeric(1, base), numrows, numrows)
			if err != nil || len(draws) != numrows {
				return false
			}
			seen := make([]bool, numrows)
			for _, d := range draws {
				i := d - base
				if i < 0 || i >= int64(numrows) || seen[i] {
					return false
				}
				seen[i] = true
			}
			return true
		},
		gen.IntRange(1, 2000),
		gen.Int64Range(-1000, 1000000),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

// TestProperty_FractionalDrawBoundsDistinctValues checks that draws below 1
// produce at least one and at most round(numrows*draw) distinct values.
func TestProperty_FractionalDrawBoundsDistinctValues(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("distinct values bounded by the fractional domain", prop.ForAll(
		func(numrows int, draw float64, seed uint64) bool {
			size := int(math.Round(float64(numrows) * draw))
			draws, err := New(WithSeed(seed)).Draw(types.Numeric(draw, 0), numrows, numrows)
			if size < 1 {
				return err != nil
			}
			if err != nil || len(draws) != numrows {
				return false
			}
			n := distinct(draws)
			return n > 0 && n <= size
		},
		gen.IntRange(1, 2000),
		gen.Float64Range(0.001, 0.999),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

// TestProperty_FixedDrawDistinctValues checks fixed-size domains: sampling
// with replacement stays within the domain, sampling without replacement
// yields exactly numwrites distinct values.
func TestProperty_FixedDrawDistinctValues(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("fixed domain controls distinct count", prop.ForAll(
		func(numwrites int, size int, seed uint64) bool {
			draw := float64(size)
			draws, err := New(WithSeed(seed)).Draw(types.Categorical("v", draw, 0), numwrites, numwrites)
			if err != nil || len(draws) != numwrites {
				return false
			}
			n := distinct(draws)
			if size < numwrites {
				return n <= size
			}
			return n == numwrites
		},
		gen.IntRange(1, 1500),
		gen.IntRange(2, 3000),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
