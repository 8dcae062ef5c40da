package fasta

import "fmt"

// Alignment is an ordered set of records sharing one invariant: every
// sequence has the same length (the column count).
type Alignment struct {
	Records []Record
}

// Rows returns the sequence count.
func (a *Alignment) Rows() int { return len(a.Records) }

// Columns returns the alignment length. Zero for an empty alignment.
func (a *Alignment) Columns() int {
	if len(a.Records) == 0 {
		return 0
	}
	return len(a.Records[0].Seq)
}

// NewAlignment validates the equal-length invariant over recs.
func NewAlignment(recs []Record) (*Alignment, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("alignment has no sequences")
	}
	cols := len(recs[0].Seq)
	if cols == 0 {
		return nil, fmt.Errorf("alignment record %q has an empty sequence", recs[0].ID)
	}
	for _, r := range recs[1:] {
		if len(r.Seq) != cols {
			return nil, fmt.Errorf("alignment is ragged: record %q has %d columns, expected %d",
				r.ID, len(r.Seq), cols)
		}
	}
	return &Alignment{Records: recs}, nil
}

// ReadAlignment loads an aligned FASTA file and validates it.
func ReadAlignment(path string) (*Alignment, error) {
	recs, err := ReadAll(path)
	if err != nil {
		return nil, fmt.Errorf("read alignment %s: %w", path, err)
	}
	a, err := NewAlignment(recs)
	if err != nil {
		return nil, fmt.Errorf("alignment %s: %w", path, err)
	}
	return a, nil
}
