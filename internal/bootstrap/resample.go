// Package bootstrap implements column-wise non-parametric bootstrap
// resampling of a multiple-sequence alignment: one index draw, applied to
// every row, so homologous columns stay homologous within a replicate.
package bootstrap

import (
	"math/rand"

	"github.com/mycolab/phylopipe/internal/fasta"
)

// Resample produces a fresh alignment of identical dimensions by drawing C
// column indices uniformly with replacement and reassembling every row
// with the same draw. The source alignment is never mutated. The random
// source is explicit so tests and parallel replicate generation control
// their own streams.
func Resample(a *fasta.Alignment, rng *rand.Rand) *fasta.Alignment {
	cols := a.Columns()
	indices := make([]int, cols)
	for i := range indices {
		indices[i] = rng.Intn(cols)
	}
	return resampleWith(a, indices)
}

// resampleWith applies a prepared index draw. Split out so tests can
// verify the column-sharing invariant against a known draw.
func resampleWith(a *fasta.Alignment, indices []int) *fasta.Alignment {
	out := make([]fasta.Record, len(a.Records))
	for ri, rec := range a.Records {
		seq := make([]byte, len(indices))
		for p, col := range indices {
			seq[p] = rec.Seq[col]
		}
		out[ri] = fasta.Record{ID: rec.ID, Description: rec.Description, Seq: seq}
	}
	return &fasta.Alignment{Records: out}
}
