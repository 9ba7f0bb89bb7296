package synth

import (
	"math"

	"github.com/isobench/isobench/internal/errors"
)

// Mode is the sampling mode of a column domain.
type Mode int

const (
	// WithoutReplacement draws distinct values
	WithoutReplacement Mode = iota

	// WithReplacement draws uniformly and may repeat values
	WithReplacement
)

func (m Mode) String() string {
	if m == WithReplacement {
		return "with-replacement"
	}
	return "without-replacement"
}

// Domain is a resolved cardinality directive: draws come from [0, Size).
type Domain struct {
	Size int64
	Mode Mode
}

// Resolve maps a cardinality directive onto a domain.
//
//	draw == 1: Size = numrows, without replacement
//	draw <  1: Size = round(numrows * draw), with replacement
//	draw >  1: Size = round(draw), without replacement if Size >= numwrites
//
// Domains smaller than one value, and draws without replacement that need
// more values than the domain holds, are rejected.
func Resolve(numrows, numwrites int, draw float64) (Domain, error) {
	if math.IsNaN(draw) || math.IsInf(draw, 0) || draw <= 0 {
		return Domain{}, errors.InvalidSpec("draw must be a positive number, got %v", draw)
	}
	if numrows < 0 || numwrites < 0 {
		return Domain{}, errors.InvalidSpec("numrows (%d) and numwrites (%d) must not be negative", numrows, numwrites)
	}

	var d Domain
	switch {
	case draw == 1:
		d = Domain{Size: int64(numrows), Mode: WithoutReplacement}
	case draw < 1:
		d = Domain{Size: int64(math.Round(float64(numrows) * draw)), Mode: WithReplacement}
	default:
		d = Domain{Size: int64(math.Round(draw)), Mode: WithReplacement}
		if d.Size >= int64(numwrites) {
			d.Mode = WithoutReplacement
		}
	}

	if d.Size < 1 {
		return Domain{}, errors.InvalidSpec("draw %v over %d rows resolves to an empty domain", draw, numrows).
			WithDetails(map[string]interface{}{"draw": draw, "numrows": numrows})
	}
	if d.Mode == WithoutReplacement && int64(numwrites) > d.Size {
		return Domain{}, errors.InvalidSpec("cannot draw %d distinct values from a domain of %d", numwrites, d.Size).
			WithDetails(map[string]interface{}{"draw": draw, "numrows": numrows, "numwrites": numwrites})
	}
	return d, nil
}
