package extract

import (
	"fmt"
	"path/filepath"
)

// SummaryFileName is the aggregate written at the end of every batch.
const SummaryFileName = "summary_18S_extraction.csv"

// Paths derives every artifact name from the sample ID, so re-runs
// overwrite deterministically instead of colliding.
type Paths struct {
	InputDir  string
	OutputDir string
}

// Scaffolds is the expected per-sample input assembly.
func (p Paths) Scaffolds(id string) string {
	return filepath.Join(p.InputDir, fmt.Sprintf("%s_scaffolds.fasta", id))
}

// GFF receives the region predictor's stdout.
func (p Paths) GFF(id string) string {
	return filepath.Join(p.OutputDir, fmt.Sprintf("%s_rrna.gff", id))
}

// ToolLog receives the region predictor's stderr.
func (p Paths) ToolLog(id string) string {
	return filepath.Join(p.OutputDir, fmt.Sprintf("%s_barrnap.log", id))
}

// RRNA is the extractor's output of all predicted rRNA sequences.
func (p Paths) RRNA(id string) string {
	return filepath.Join(p.OutputDir, fmt.Sprintf("%s_rrna.fasta", id))
}

// Region is the single longest tagged record kept per sample.
func (p Paths) Region(id string, tag string) string {
	return filepath.Join(p.OutputDir, fmt.Sprintf("%s_%s.fasta", id, tag))
}

// Summary is the aggregate CSV.
func (p Paths) Summary() string {
	return filepath.Join(p.OutputDir, SummaryFileName)
}
