package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/mycolab/phylopipe/internal/ledger"
	"github.com/mycolab/phylopipe/internal/log"
)

var summaryHeader = []string{"SampleID", "Longest18S_Length"}

// Driver iterates the sample work list in order, isolates per-sample
// failures, and owns the summary table. It performs no business logic
// beyond sequencing, isolation, and aggregation.
type Driver struct {
	Pipeline *Pipeline
	Ledger   ledger.Recorder
}

// Run processes every sample and writes the summary CSV, one row per
// sample in work-list order. A sample that could not be processed still
// gets its row, with the explicit 0 sentinel. The returned error is only
// ever a batch-level failure (unwritable summary, cancellation); never a
// per-sample one.
func (d *Driver) Run(ctx context.Context, samples []string) error {
	logger := log.WithComponent("extract")
	if len(samples) == 0 {
		return fmt.Errorf("work list is empty")
	}

	runID, err := d.Ledger.BeginRun(ctx, "extract", ledger.DigestStrings(samples))
	if err != nil {
		return err
	}

	sumPath := d.Pipeline.Paths.Summary()
	f, err := os.Create(sumPath)
	if err != nil {
		return fmt.Errorf("create summary %s: %w", sumPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(summaryHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	failures := 0
	for _, id := range samples {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome := d.Pipeline.Process(ctx, id)
		if outcome.Status == ledger.StatusFailed {
			failures++
		}

		if err := w.Write([]string{outcome.SampleID, strconv.Itoa(outcome.Length)}); err != nil {
			return fmt.Errorf("write summary row for %s: %w", id, err)
		}
		if err := d.Ledger.RecordOutcome(ctx, runID, id, outcome.Status, outcome.Length); err != nil {
			// The ledger is audit, not the product; a write failure must not
			// abort the batch.
			logger.Warn("ledger write failed", "sample", id, "error", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush summary: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close summary: %w", err)
	}

	if err := d.Ledger.FinishRun(ctx, runID, failures); err != nil {
		logger.Warn("ledger finish failed", "error", err)
	}

	logger.Info("all samples processed", "samples", len(samples), "failures", failures, "summary", sumPath)
	return nil
}
