// Package embed drives the image embedding workflow: every image in the
// configured directory is handed to the external embedder, which writes
// one fixed-length vector artifact per image. Images are independent work
// items with the same isolation rules as the sample pipeline.
package embed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mycolab/phylopipe/internal/ledger"
	"github.com/mycolab/phylopipe/internal/log"
	"github.com/mycolab/phylopipe/internal/toolexec"
)

// Driver owns the image work list, derived from a directory glob.
type Driver struct {
	Runner    toolexec.Runner
	Embedder  []string // program plus fixed leading arguments
	Ledger    ledger.Recorder
	ImageDir  string
	TensorDir string
}

// TensorPath names the vector artifact for an image, deterministic in the
// image stem so re-runs overwrite.
func (d *Driver) TensorPath(imagePath string) string {
	stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	return filepath.Join(d.TensorDir, stem+".pt")
}

// Run embeds every *.jpg under ImageDir in sorted order. Per-image
// failures are logged and isolated; an empty image directory is a warning,
// not an error.
func (d *Driver) Run(ctx context.Context) error {
	logger := log.WithComponent("embed")

	if len(d.Embedder) == 0 {
		return fmt.Errorf("no embedder command configured")
	}
	images, err := filepath.Glob(filepath.Join(d.ImageDir, "*.jpg"))
	if err != nil {
		return fmt.Errorf("glob images: %w", err)
	}
	sort.Strings(images)
	if len(images) == 0 {
		logger.Warn("no .jpg files found", "dir", d.ImageDir)
		return nil
	}

	if err := os.MkdirAll(d.TensorDir, 0o755); err != nil {
		return fmt.Errorf("create tensor directory: %w", err)
	}

	runID, err := d.Ledger.BeginRun(ctx, "embed", ledger.DigestStrings(images))
	if err != nil {
		return err
	}

	failures := 0
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return err
		}

		status := ledger.StatusDone
		if err := d.embedOne(ctx, img); err != nil {
			logger.Warn("failed to process image", "image", filepath.Base(img), "error", err)
			status = ledger.StatusFailed
			failures++
		}
		if err := d.Ledger.RecordOutcome(ctx, runID, filepath.Base(img), status, 0); err != nil {
			logger.Warn("ledger write failed", "image", img, "error", err)
		}
	}

	if err := d.Ledger.FinishRun(ctx, runID, failures); err != nil {
		logger.Warn("ledger finish failed", "error", err)
	}
	logger.Info("embedding extraction completed", "images", len(images), "failures", failures)
	return nil
}

func (d *Driver) embedOne(ctx context.Context, imagePath string) error {
	args := append(append([]string(nil), d.Embedder[1:]...), imagePath)
	err := d.Runner.Run(ctx, toolexec.Spec{
		Program: d.Embedder[0],
		Args:    args,
		Stdout:  d.TensorPath(imagePath),
	})
	if err != nil {
		var terr *toolexec.ToolError
		if errors.As(err, &terr) {
			return fmt.Errorf("embedder exited %d", terr.ExitCode)
		}
		return err
	}
	return nil
}
