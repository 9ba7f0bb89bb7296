// Package synth synthesizes column values from cardinality directives.
package synth

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/isobench/isobench/pkg/types"
)

const dateLayout = "2006-01-02"

// Domains larger than this are sampled without replacement through a sparse
// permutation instead of materializing [0, size).
const denseLimit = 1 << 22

// Column is one rendered column of a dataset.
type Column struct {
	Spec   types.ColumnSpec
	Values []types.Value

	// Tag is the schema descriptor of the column: numeric, date or varchar(max)
	Tag string
}

// Synthesizer draws and renders column values.
// A Synthesizer is not safe for concurrent use; give each goroutine its own.
type Synthesizer struct {
	rng   *rand.Rand
	clock func() time.Time
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithSeed makes the synthesizer deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Synthesizer) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithRand uses the given source of randomness.
func WithRand(rng *rand.Rand) Option {
	return func(s *Synthesizer) {
		s.rng = rng
	}
}

// WithClock sets the clock used as "today" for date columns.
func WithClock(clock func() time.Time) Option {
	return func(s *Synthesizer) {
		s.clock = clock
	}
}

// New creates a Synthesizer. Without WithSeed or WithRand it is randomly seeded.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Draw produces numwrites integers from the domain of spec, each shifted by spec.BaseOffset.
func (s *Synthesizer) Draw(spec types.ColumnSpec, numrows, numwrites int) ([]int64, error) {
	d, err := Resolve(numrows, numwrites, spec.Draw)
	if err != nil {
		return nil, err
	}

	var draws []int64
	if d.Mode == WithoutReplacement {
		draws = s.sample(d.Size, numwrites)
	} else {
		draws = s.sampleWithReplacement(d.Size, numwrites)
	}

	for i := range draws {
		draws[i] += spec.BaseOffset
	}
	return draws, nil
}

// Column draws and renders one column.
func (s *Synthesizer) Column(spec types.ColumnSpec, numrows, numwrites int) (Column, error) {
	draws, err := s.Draw(spec, numrows, numwrites)
	if err != nil {
		return Column{}, err
	}
	return Render(spec, draws, s.clock()), nil
}

// sample returns k distinct values from [0, n) using a partial Fisher-Yates shuffle.
func (s *Synthesizer) sample(n int64, k int) []int64 {
	out := make([]int64, k)
	if n <= denseLimit {
		perm := make([]int64, n)
		for i := range perm {
			perm[i] = int64(i)
		}
		for i := 0; i < k; i++ {
			j := int64(i) + s.rng.Int64N(n-int64(i))
			perm[i], perm[j] = perm[j], perm[i]
			out[i] = perm[i]
		}
		return out
	}

	swapped := make(map[int64]int64, k)
	at := func(i int64) int64 {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}
	for i := 0; i < k; i++ {
		j := int64(i) + s.rng.Int64N(n-int64(i))
		vi, vj := at(int64(i)), at(j)
		swapped[j] = vi
		out[i] = vj
	}
	return out
}

func (s *Synthesizer) sampleWithReplacement(n int64, k int) []int64 {
	out := make([]int64, k)
	for i := range out {
		out[i] = s.rng.Int64N(n)
	}
	return out
}

// Render converts drawn integers into column values.
// Date values are today plus the drawn number of days.
func Render(spec types.ColumnSpec, draws []int64, today time.Time) Column {
	col := Column{Spec: spec, Values: make([]types.Value, len(draws))}

	switch spec.Kind {
	case types.KindNumeric:
		col.Tag = "numeric"
		for i, n := range draws {
			col.Values[i] = types.NumericValue(n)
		}
	case types.KindDate:
		col.Tag = "date"
		y, m, d := today.Date()
		base := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		for i, n := range draws {
			col.Values[i] = types.StringValue(types.KindDate, base.AddDate(0, 0, int(n)).Format(dateLayout))
		}
	default:
		var widest int64
		for i, n := range draws {
			if i == 0 || n > widest {
				widest = n
			}
			col.Values[i] = types.StringValue(types.KindCategorical, spec.Prefix+strconv.FormatInt(n, 10))
		}
		col.Tag = "varchar(" + strconv.FormatInt(widest, 10) + ")"
	}
	return col
}
