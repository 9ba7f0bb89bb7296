package dataset

import (
	"sync/atomic"

	"github.com/isobench/isobench/pkg/types"
)

// Batch is a contiguous slice of dataset rows handed to one consumer.
type Batch struct {
	// Offset is the index of the first row of the batch in the dataset
	Offset int64

	// Rows holds at most the requested number of rows; it is empty past the end
	Rows []types.Row
}

// Cursor hands out disjoint batches of a dataset to concurrent consumers.
type Cursor struct {
	ds   *Dataset
	next atomic.Int64
}

// NewCursor creates a cursor positioned at the first row of ds.
func NewCursor(ds *Dataset) *Cursor {
	return &Cursor{ds: ds}
}

// Draw returns up to n rows and advances the cursor by n, even when fewer
// rows remain. It never blocks and never returns overlapping batches.
func (c *Cursor) Draw(n int) Batch {
	if n <= 0 {
		return Batch{Offset: c.next.Load()}
	}
	end := c.next.Add(int64(n))
	start := end - int64(n)

	total := int64(c.ds.Len())
	if start >= total {
		return Batch{Offset: start}
	}
	if end > total {
		end = total
	}
	return Batch{Offset: start, Rows: c.ds.Rows[start:end:end]}
}

// Offset returns the position of the next draw.
func (c *Cursor) Offset() int64 {
	return c.next.Load()
}
