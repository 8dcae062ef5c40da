package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mycolab/phylopipe/internal/config"
	"github.com/mycolab/phylopipe/internal/embed"
	"github.com/mycolab/phylopipe/internal/extract"
	"github.com/mycolab/phylopipe/internal/ledger"
	"github.com/mycolab/phylopipe/internal/lock"
	"github.com/mycolab/phylopipe/internal/log"
	"github.com/mycolab/phylopipe/internal/mergealign"
	"github.com/mycolab/phylopipe/internal/replicate"
	"github.com/mycolab/phylopipe/internal/toolexec"
)

const version = "0.2.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		configPath string
		logLevel   string
	)

	app := &cli.App{
		Name:    "phylopipe",
		Usage:   "Batch pipelines for rRNA extraction, alignment, bootstrap trees, and image embeddings",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Config file path",
				Value:       "phylopipe.yaml",
				EnvVars:     []string{"PHYLOPIPE_CONFIG"},
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Override configured log level (debug, info, warn, error)",
				Destination: &logLevel,
			},
		},
		Commands: []*cli.Command{
			extractCommand(&configPath, &logLevel),
			alignCommand(&configPath, &logLevel),
			bootstrapCommand(&configPath, &logLevel),
			embedCommand(&configPath, &logLevel),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// setup loads config, initializes logging, and builds the tool runner.
// Configuration errors abort here, before any work item is attempted.
func setup(configPath, logLevel string) (*config.Config, toolexec.Runner, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log.Setup(cfg.LogLevel)
	return cfg, &toolexec.Exec{Timeout: cfg.Tools.Timeout}, nil
}

// openLedger returns the configured run ledger, or a no-op recorder when
// the ledger is disabled.
func openLedger(ctx context.Context, cfg *config.Config) (ledger.Recorder, error) {
	if !cfg.LedgerEnabled() {
		return ledger.Nop{}, nil
	}
	return ledger.Open(ctx, cfg.Ledger.Path)
}

func extractCommand(configPath, logLevel *string) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Run the per-sample rRNA extraction pipeline and write the summary CSV",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "sample",
				Aliases: []string{"s"},
				Usage:   "Sample ID to process (repeatable; overrides configured work list)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, runner, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}

			samples := c.StringSlice("sample")
			if len(samples) == 0 {
				if samples, err = cfg.SampleIDs(); err != nil {
					return err
				}
			}

			outLock, err := lock.AcquireOutputDir(cfg.OutputDir)
			if err != nil {
				return err
			}
			defer outLock.Release()

			rec, err := openLedger(c.Context, cfg)
			if err != nil {
				return err
			}
			defer rec.Close()

			d := &extract.Driver{
				Pipeline: &extract.Pipeline{
					Runner:    runner,
					Paths:     extract.Paths{InputDir: cfg.InputDir, OutputDir: cfg.OutputDir},
					Tools:     cfg.Tools,
					RegionTag: cfg.RegionTag,
				},
				Ledger: rec,
			}
			return d.Run(c.Context, samples)
		},
	}
}

func alignCommand(configPath, logLevel *string) *cli.Command {
	return &cli.Command{
		Name:  "align",
		Usage: "Merge extracted region files and align them",
		Action: func(c *cli.Context) error {
			cfg, runner, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}

			outLock, err := lock.AcquireOutputDir(cfg.OutputDir)
			if err != nil {
				return err
			}
			defer outLock.Release()

			w := &mergealign.Workflow{
				Runner:    runner,
				Tools:     cfg.Tools,
				InputDir:  cfg.OutputDir,
				OutputDir: cfg.OutputDir,
				RegionTag: cfg.RegionTag,
			}
			return w.Run(c.Context)
		},
	}
}

func bootstrapCommand(configPath, logLevel *string) *cli.Command {
	var (
		replicates int
		seed       int64
		workers    int
	)
	return &cli.Command{
		Name:  "bootstrap",
		Usage: "Generate bootstrap replicates and infer a tree for each",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "replicates",
				Aliases:     []string{"n"},
				Usage:       "Number of bootstrap replicates (overrides config)",
				Destination: &replicates,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "Base random seed; 0 seeds from the clock (overrides config)",
				Destination: &seed,
			},
			&cli.IntFlag{
				Name:        "workers",
				Aliases:     []string{"w"},
				Usage:       "Worker pool size for replicate generation (overrides config)",
				Destination: &workers,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, runner, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}
			if c.IsSet("replicates") {
				cfg.Bootstrap.Replicates = replicates
			}
			if c.IsSet("seed") {
				cfg.Bootstrap.Seed = seed
			}
			if c.IsSet("workers") {
				cfg.Bootstrap.Workers = workers
			}

			dirLock, err := lock.AcquireOutputDir(cfg.Bootstrap.Dir)
			if err != nil {
				return err
			}
			defer dirLock.Release()

			rec, err := openLedger(c.Context, cfg)
			if err != nil {
				return err
			}
			defer rec.Close()

			d := &replicate.Driver{
				Runner:     runner,
				Tools:      cfg.Tools,
				Ledger:     rec,
				Alignment:  cfg.Bootstrap.Alignment,
				Dir:        cfg.Bootstrap.Dir,
				Replicates: cfg.Bootstrap.Replicates,
				Seed:       cfg.Bootstrap.Seed,
				Workers:    cfg.Bootstrap.Workers,
			}
			return d.Run(c.Context)
		},
	}
}

func embedCommand(configPath, logLevel *string) *cli.Command {
	return &cli.Command{
		Name:  "embed",
		Usage: "Extract an embedding vector for every image in the configured directory",
		Action: func(c *cli.Context) error {
			cfg, runner, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}
			if cfg.Embed.ImageDir == "" || cfg.Embed.TensorDir == "" {
				return fmt.Errorf("embed.image_dir and embed.tensor_dir are required for the embed workflow")
			}

			dirLock, err := lock.AcquireOutputDir(cfg.Embed.TensorDir)
			if err != nil {
				return err
			}
			defer dirLock.Release()

			rec, err := openLedger(c.Context, cfg)
			if err != nil {
				return err
			}
			defer rec.Close()

			d := &embed.Driver{
				Runner:    runner,
				Embedder:  cfg.Tools.Embedder,
				Ledger:    rec,
				ImageDir:  cfg.Embed.ImageDir,
				TensorDir: cfg.Embed.TensorDir,
			}
			return d.Run(c.Context)
		},
	}
}
