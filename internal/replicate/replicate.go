// Package replicate drives the bootstrap tree workflow: N independent
// column-bootstrap replicates of one source alignment, each written to
// disk and handed to the tree-inference tool. Replicates share nothing but
// the read-only source, so generation fans out across a bounded worker
// pool; each replicate derives its own random stream from the base seed,
// making artifacts identical at any worker count.
package replicate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/mycolab/phylopipe/internal/bootstrap"
	"github.com/mycolab/phylopipe/internal/config"
	"github.com/mycolab/phylopipe/internal/fasta"
	"github.com/mycolab/phylopipe/internal/ledger"
	"github.com/mycolab/phylopipe/internal/log"
	"github.com/mycolab/phylopipe/internal/toolexec"
)

// Outcome is one replicate's result.
type Outcome struct {
	Index   int
	Success bool
}

// Driver owns the replicate work list 1..Replicates.
type Driver struct {
	Runner toolexec.Runner
	Tools  config.ToolsConfig
	Ledger ledger.Recorder

	Alignment  string // source aligned FASTA
	Dir        string // replicate artifact directory
	Replicates int
	Seed       int64 // 0 seeds from the clock
	Workers    int
}

// ReplicateFasta names replicate i's resampled alignment.
func (d *Driver) ReplicateFasta(i int) string {
	return filepath.Join(d.Dir, fmt.Sprintf("replicate_%d.fasta", i))
}

// ReplicateTree names replicate i's inferred tree.
func (d *Driver) ReplicateTree(i int) string {
	return filepath.Join(d.Dir, fmt.Sprintf("replicate_%d.nwk", i))
}

// Run loads the shared source alignment once, then processes every
// replicate index with per-replicate failure isolation. Only the shared
// preconditions (unreadable alignment, unwritable directory) abort the
// batch.
func (d *Driver) Run(ctx context.Context) error {
	logger := log.WithComponent("replicate")

	src, err := fasta.ReadAlignment(d.Alignment)
	if err != nil {
		return err
	}
	logger.Info("loaded alignment", "sequences", src.Rows(), "columns", src.Columns())

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create replicate directory: %w", err)
	}
	if d.Replicates < 1 {
		return fmt.Errorf("replicate count must be positive, got %d", d.Replicates)
	}

	seed := d.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		logger.Info("seeding from clock", "seed", seed)
	}

	digest, err := ledger.DigestFile(d.Alignment)
	if err != nil {
		return err
	}
	runID, err := d.Ledger.BeginRun(ctx, "bootstrap", digest)
	if err != nil {
		return err
	}

	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	pool := pond.NewPool(workers)

	var failures atomic.Int64
	outcomes := make([]Outcome, d.Replicates)
	for i := 1; i <= d.Replicates; i++ {
		i := i
		pool.Submit(func() {
			ok := d.processOne(ctx, src, seed, i)
			outcomes[i-1] = Outcome{Index: i, Success: ok}
			if !ok {
				failures.Add(1)
			}
		})
	}
	pool.StopAndWait()

	if err := ctx.Err(); err != nil {
		return err
	}

	// Record in index order regardless of completion order.
	for _, o := range outcomes {
		status := ledger.StatusDone
		if !o.Success {
			status = ledger.StatusFailed
		}
		item := fmt.Sprintf("replicate_%d", o.Index)
		if err := d.Ledger.RecordOutcome(ctx, runID, item, status, 0); err != nil {
			logger.Warn("ledger write failed", "replicate", o.Index, "error", err)
		}
	}
	if err := d.Ledger.FinishRun(ctx, runID, int(failures.Load())); err != nil {
		logger.Warn("ledger finish failed", "error", err)
	}

	logger.Info("all bootstrap replicates completed",
		"replicates", d.Replicates, "failures", failures.Load())
	return nil
}

// processOne generates, persists, and infers one replicate. Returns false
// on failure; never propagates the error upward.
func (d *Driver) processOne(ctx context.Context, src *fasta.Alignment, seed int64, i int) bool {
	logger := log.WithReplicate(i)
	if ctx.Err() != nil {
		return false
	}

	rng := rand.New(rand.NewSource(seed + int64(i)))
	rep := bootstrap.Resample(src, rng)

	fa := d.ReplicateFasta(i)
	if err := fasta.WriteFile(fa, rep.Records...); err != nil {
		logger.Error("writing replicate failed", "error", err)
		return false
	}

	if err := d.Runner.Run(ctx, toolexec.Spec{
		Program: d.Tools.FastTree,
		Args:    []string{"-nt", "-gtr", "-gamma", fa},
		Stdout:  d.ReplicateTree(i),
	}); err != nil {
		var terr *toolexec.ToolError
		if errors.As(err, &terr) {
			logger.Error("tree inference failed",
				"program", terr.Program, "exit_code", terr.ExitCode)
		} else {
			logger.Error("tree inference failed", "error", err)
		}
		return false
	}

	logger.Info("tree inference completed", "tree", d.ReplicateTree(i))
	return true
}
