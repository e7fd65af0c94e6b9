// Package main is the godetect command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/benchmark"
	"github.com/nvr-ai/go-detect/dataset"
	"github.com/nvr-ai/go-detect/util"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

const (
	// Flags.
	flagLogLevel         = "log-level"
	flagConfig           = "config"
	flagModel            = "model"
	flagOutput           = "output"
	flagOverlay          = "overlay"
	flagWorkers          = "workers"
	flagDB               = "db"
	flagVOC              = "voc"
	flagSet              = "set"
	flagCategory         = "category"
	flagSkipDifficult    = "skip-difficult"
	flagPredictions      = "predictions"
	flagSavePredictions  = "save-predictions"
	flagPR               = "pr"
	flagPlot             = "plot"
	flagSmooth           = "smooth"
	flagOverlapThreshold = "overlap-threshold"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	logger := zap.NewNop()

	runFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load run configuration from `FILE`",
		},
		&cli.StringFlag{
			Name:    flagModel,
			Aliases: []string{"m"},
			Usage:   "linear classifier model `FILE`; overrides the config",
		},
		&cli.IntFlag{
			Name:  flagWorkers,
			Usage: "images processed concurrently; overrides the config",
		},
	}
	vocFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  flagVOC,
			Usage: "Pascal VOC year `DIR` holding Annotations, ImageSets and JPEGImages",
		},
		&cli.StringFlag{
			Name:  flagSet,
			Usage: "VOC image set name or list `FILE`",
		},
		&cli.StringFlag{
			Name:  flagCategory,
			Usage: "VOC object category to detect",
		},
		&cli.BoolFlag{
			Name:  flagSkipDifficult,
			Usage: "ignore objects flagged difficult",
		},
	}
	curveFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  flagPR,
			Usage: "write the precision-recall curve to `FILE`",
		},
		&cli.StringFlag{
			Name:  flagPlot,
			Usage: "plot the precision-recall curve to `FILE` (png, svg, pdf)",
		},
		&cli.BoolFlag{
			Name:  flagSmooth,
			Usage: "make precision non-increasing in recall; overrides the config",
		},
	}

	return &cli.App{
		Name:            "godetect",
		Usage:           "sliding-window object detection and evaluation",
		Version:         Version,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagLogLevel,
				Value: "info",
				Usage: "log level: debug, info, warn or error; overrides log_level in the config",
			},
		},
		Before: func(c *cli.Context) error {
			l, err := util.NewLogger(c.String(flagLogLevel))
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		After: func(*cli.Context) error {
			_ = logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "detect objects in images and write one results file per image",
				ArgsUsage: "<image|dir>...",
				Flags: append(append([]cli.Flag{}, runFlags...),
					&cli.StringFlag{
						Name:    flagOutput,
						Aliases: []string{"o"},
						Value:   "results",
						Usage:   "output `DIR`",
					},
					&cli.BoolFlag{
						Name:  flagOverlay,
						Usage: "also save each image with its detections drawn",
					},
				),
				Action: func(c *cli.Context) error { return detectAction(c, logger) },
			},
			{
				Name:  "evaluate",
				Usage: "detect over an annotated dataset and report average precision",
				Flags: append(append(append(append([]cli.Flag{}, runFlags...), vocFlags...), curveFlags...),
					&cli.StringFlag{
						Name:  flagDB,
						Usage: "ground-truth image database `FILE`",
					},
					&cli.StringFlag{
						Name:  flagPredictions,
						Usage: "evaluate a saved prediction database `FILE` instead of detecting",
					},
					&cli.StringFlag{
						Name:  flagSavePredictions,
						Usage: "save the predictions as an image database `FILE`",
					},
					&cli.Float64Flag{
						Name:  flagOverlapThreshold,
						Usage: "minimum relative overlap for a match; overrides the config",
					},
				),
				Action: func(c *cli.Context) error { return evaluateAction(c, logger) },
			},
			{
				Name:   "classify",
				Usage:  "classify annotated objects and background windows and report accuracy",
				Flags:  append(append(append([]cli.Flag{}, runFlags...), vocFlags...), curveFlags...),
				Action: func(c *cli.Context) error { return classifyAction(c, logger) },
			},
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, c.App.Name, Version)
					return nil
				},
			},
		},
	}
}

// loadRunConfig reads --config, or the defaults, and applies flag overrides.
// requireModel rejects a configuration without a classifier path.
func loadRunConfig(c *cli.Context, requireModel bool) (*benchmark.Config, error) {
	cfg := benchmark.DefaultConfig()
	if path := c.String(flagConfig); path != "" {
		loaded, err := benchmark.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet(flagModel) {
		cfg.Classifier = c.String(flagModel)
	}
	if c.IsSet(flagWorkers) {
		cfg.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagSmooth) {
		cfg.Evaluation.Smooth = c.Bool(flagSmooth)
	}
	if c.IsSet(flagOverlapThreshold) {
		cfg.Evaluation.OverlapThreshold = c.Float64(flagOverlapThreshold)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if requireModel && cfg.Classifier == "" {
		return nil, cli.Exit("a classifier model is required: set --model or classifier in the config", 2)
	}
	return cfg, nil
}

// configLogger rebuilds the logger at the configured log level unless
// --log-level was given on the command line.
func configLogger(c *cli.Context, cfg *benchmark.Config, current *zap.Logger) (*zap.Logger, error) {
	return loggerFor(cfg.LogLevel, c.IsSet(flagLogLevel), current)
}

func loggerFor(level string, flagged bool, current *zap.Logger) (*zap.Logger, error) {
	if flagged || level == "" {
		return current, nil
	}
	return util.NewLogger(level)
}

// loadGroundTruth reads --db or the VOC flags.
func loadGroundTruth(c *cli.Context, logger *zap.Logger) (*dataset.Dataset, error) {
	if path := c.String(flagDB); path != "" {
		return dataset.Load(path)
	}
	if c.String(flagVOC) == "" {
		return nil, cli.Exit("ground truth is required: set --db, or --voc with --set and --category", 2)
	}
	return dataset.LoadVOC(dataset.VOCConfig{
		Root:          c.String(flagVOC),
		Set:           c.String(flagSet),
		Category:      c.String(flagCategory),
		SkipDifficult: c.Bool(flagSkipDifficult),
	}, logger)
}
