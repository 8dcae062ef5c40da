// Package mergealign merges the per-sample region FASTA files into one
// multi-FASTA and aligns it with the external alignment tool.
package mergealign

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/mycolab/phylopipe/internal/config"
	"github.com/mycolab/phylopipe/internal/log"
	"github.com/mycolab/phylopipe/internal/toolexec"
)

const (
	// CombinedFileName is the merged multi-FASTA, AlignedFileName the
	// alignment tool's output.
	CombinedFileName = "all_18s.fasta"
	AlignedFileName  = "aligned_18s.fasta"
)

// Workflow merges and aligns. InputDir is scanned for the per-sample
// region files produced by the extract workflow.
type Workflow struct {
	Runner    toolexec.Runner
	Tools     config.ToolsConfig
	InputDir  string
	OutputDir string
	RegionTag string
}

// Combined returns the merged multi-FASTA path.
func (w *Workflow) Combined() string {
	return filepath.Join(w.OutputDir, CombinedFileName)
}

// Aligned returns the alignment output path.
func (w *Workflow) Aligned() string {
	return filepath.Join(w.OutputDir, AlignedFileName)
}

// Run merges every *_{tag}.fasta under InputDir (sorted, so merge order is
// stable across runs) and invokes the alignment tool on the result. Both
// steps are whole-batch operations: any failure is fatal, there is no
// per-item isolation to fall back on.
func (w *Workflow) Run(ctx context.Context) error {
	logger := log.WithComponent("mergealign")

	pattern := filepath.Join(w.InputDir, fmt.Sprintf("*_%s.fasta", w.RegionTag))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no region FASTA files found under %s", w.InputDir)
	}
	sort.Strings(matches)

	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if err := w.merge(matches); err != nil {
		return err
	}
	logger.Info("merged region files", "files", len(matches), "combined", w.Combined())

	if err := w.Runner.Run(ctx, toolexec.Spec{
		Program: w.Tools.Mafft,
		Args:    []string{"--auto", w.Combined()},
		Stdout:  w.Aligned(),
	}); err != nil {
		return fmt.Errorf("alignment failed: %w", err)
	}
	logger.Info("alignment complete", "aligned", w.Aligned())
	return nil
}

func (w *Workflow) merge(paths []string) error {
	out, err := os.Create(w.Combined())
	if err != nil {
		return fmt.Errorf("create %s: %w", w.Combined(), err)
	}
	defer out.Close()

	for _, p := range paths {
		in, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open %s: %w", p, err)
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = in.Close()
			return fmt.Errorf("append %s: %w", p, err)
		}
		_ = in.Close()
	}
	return out.Close()
}
