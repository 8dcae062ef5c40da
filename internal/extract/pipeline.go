package extract

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/mycolab/phylopipe/internal/config"
	"github.com/mycolab/phylopipe/internal/fasta"
	"github.com/mycolab/phylopipe/internal/ledger"
	"github.com/mycolab/phylopipe/internal/log"
	"github.com/mycolab/phylopipe/internal/toolexec"
)

// Outcome is one sample's result. Length is 0 for skipped and failed
// samples and for samples where no record carried the region tag.
type Outcome struct {
	SampleID string
	Length   int
	Status   string // ledger.StatusDone / StatusSkipped / StatusFailed
}

// Pipeline processes one sample end to end. It owns no cross-sample
// state; the driver owns the work list and the summary.
type Pipeline struct {
	Runner    toolexec.Runner
	Paths     Paths
	Tools     config.ToolsConfig
	RegionTag string
}

// Process walks one sample through predict, extract, and select. Tool
// failures are absorbed into a failed Outcome here, at the unit boundary:
// nothing below the driver's loop panics or propagates per-sample errors.
func (p *Pipeline) Process(ctx context.Context, id string) Outcome {
	logger := log.WithSample(id)

	in := p.Paths.Scaffolds(id)
	if _, err := os.Stat(in); err != nil {
		logger.Warn("input file not found, skipping sample", "path", in)
		return Outcome{SampleID: id, Status: ledger.StatusSkipped}
	}

	// Predict: stdout carries the GFF annotations, stderr the tool log.
	if err := p.Runner.Run(ctx, toolexec.Spec{
		Program: p.Tools.Barrnap,
		Args:    []string{"--kingdom", p.Tools.Kingdom, in},
		Stdout:  p.Paths.GFF(id),
		Stderr:  p.Paths.ToolLog(id),
	}); err != nil {
		return failed(logger, id, "region prediction failed", err)
	}
	logger.Info("region prediction completed")

	// Extract: the tool writes to its own named output path.
	rrna := p.Paths.RRNA(id)
	if err := p.Runner.Run(ctx, toolexec.Spec{
		Program: p.Tools.Bedtools,
		Args:    []string{"getfasta", "-fi", in, "-bed", p.Paths.GFF(id), "-fo", rrna},
	}); err != nil {
		return failed(logger, id, "region extraction failed", err)
	}
	logger.Info("regions extracted", "path", rrna)

	// Select: longest record tagged with the region name. No match is a
	// benign outcome, not a failure.
	rec, found, err := fasta.LongestMatching(rrna, p.RegionTag)
	if err != nil {
		return failed(logger, id, "reading extracted regions failed", err)
	}
	if !found {
		logger.Warn("no region records matched tag", "tag", p.RegionTag)
		return Outcome{SampleID: id, Status: ledger.StatusDone}
	}

	if err := fasta.WriteFile(p.Paths.Region(id, p.RegionTag), rec); err != nil {
		return failed(logger, id, "writing selected region failed", err)
	}
	logger.Info("longest region selected", "tag", p.RegionTag, "record", rec.ID, "length", rec.Len())
	return Outcome{SampleID: id, Status: ledger.StatusDone, Length: rec.Len()}
}

func failed(logger *slog.Logger, id, msg string, err error) Outcome {
	var terr *toolexec.ToolError
	if errors.As(err, &terr) {
		logger.Error(msg, "program", terr.Program, "args", terr.Args, "exit_code", terr.ExitCode)
	} else {
		logger.Error(msg, "error", err)
	}
	return Outcome{SampleID: id, Status: ledger.StatusFailed}
}
