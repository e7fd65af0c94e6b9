package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/benchmark"
	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/dataset"
	"github.com/nvr-ai/go-detect/evaluation"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/util"
)

func detectAction(c *cli.Context, logger *zap.Logger) error {
	if c.NArg() == 0 {
		return cli.Exit("no images given", 2)
	}
	paths, err := util.ExpandImagePaths(c.Args().Slice())
	if err != nil {
		return err
	}
	cfg, err := loadRunConfig(c, true)
	if err != nil {
		return err
	}
	if logger, err = configLogger(c, cfg, logger); err != nil {
		return err
	}

	engine, err := inference.NewEngineBuilder().
		WithLogger(logger).
		WithDescriptor(cfg.Descriptor).
		WithClassifier(cfg.Classifier).
		WithDetector(cfg.Detector).
		Build()
	if err != nil {
		return err
	}

	load := imageLoader()
	outDir := c.String(flagOutput)
	total := 0
	for _, path := range paths {
		img, err := load(path)
		if err != nil {
			return common.WrapData(err, "load image")
		}
		dets, err := engine.Detect(c.Context, img)
		if err != nil {
			return errors.Wrapf(err, "detect %s", path)
		}
		total += len(dets)

		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := evaluation.SaveDetections(filepath.Join(outDir, stem+".txt"), dets); err != nil {
			return err
		}
		if c.Bool(flagOverlay) {
			boxes := lo.Map(dets, func(d common.Detection, _ int) images.Box {
				return images.Box{Rect: d.Rect, Score: d.Response}
			})
			overlay := images.DrawBoxes(img, boxes, images.DefaultDrawOptions())
			if err := images.Save(overlay, filepath.Join(outDir, stem+"_detections.png")); err != nil {
				return err
			}
		}
		logger.Info("detected", zap.String("image", path), zap.Int("detections", len(dets)))
	}

	fmt.Fprintf(c.App.Writer, "%d detections in %d images written to %s\n", total, len(paths), outDir)
	return nil
}

func evaluateAction(c *cli.Context, logger *zap.Logger) error {
	predictions := c.String(flagPredictions)
	cfg, err := loadRunConfig(c, predictions == "")
	if err != nil {
		return err
	}
	if logger, err = configLogger(c, cfg, logger); err != nil {
		return err
	}
	ds, err := loadGroundTruth(c, logger)
	if err != nil {
		return err
	}

	var report *benchmark.Report
	if predictions != "" {
		preds, err := dataset.Load(predictions)
		if err != nil {
			return err
		}
		suite := benchmark.NewSuite(nil, cfg, benchmark.WithLogger(logger))
		if report, err = suite.RunFromPredictions(ds, preds); err != nil {
			return err
		}
	} else {
		suite, _, err := benchmark.NewSuiteFromConfig(cfg, logger, benchmark.WithLoader(imageLoader()))
		if err != nil {
			return err
		}
		if report, err = suite.Run(c.Context, ds); err != nil {
			return err
		}
		suite.Profiler().Log(logger)
	}

	if path := c.String(flagSavePredictions); path != "" && report.Predictions != nil {
		if err := dataset.Save(path, report.Predictions); err != nil {
			return err
		}
	}
	if err := saveCurve(c, report.Curve, "detection precision-recall"); err != nil {
		return err
	}

	printDetectionReport(c.App.Writer, report)
	return nil
}

func classifyAction(c *cli.Context, logger *zap.Logger) error {
	cfg, err := loadRunConfig(c, true)
	if err != nil {
		return err
	}
	if logger, err = configLogger(c, cfg, logger); err != nil {
		return err
	}
	ds, err := loadGroundTruth(c, logger)
	if err != nil {
		return err
	}
	suite, engine, err := benchmark.NewSuiteFromConfig(cfg, logger, benchmark.WithLoader(imageLoader()))
	if err != nil {
		return err
	}

	report, err := suite.RunClassification(c.Context, engine, ds)
	if err != nil {
		return err
	}
	suite.Profiler().Log(logger)

	if err := saveCurve(c, report.Curve, "classification precision-recall"); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "patches:   %d\n", len(report.GroundTruth))
	fmt.Fprintf(c.App.Writer, "accuracy:  %.4f\n", report.Accuracy)
	fmt.Fprintf(c.App.Writer, "AP:        %.4f\n", report.Curve.AveragePrecision)
	return nil
}

func saveCurve(c *cli.Context, curve *evaluation.Curve, title string) error {
	if path := c.String(flagPR); path != "" {
		if err := evaluation.SavePR(path, curve); err != nil {
			return err
		}
	}
	if path := c.String(flagPlot); path != "" {
		if err := evaluation.PlotCurve(curve, title, path); err != nil {
			return err
		}
	}
	return nil
}

func printDetectionReport(w io.Writer, r *benchmark.Report) {
	fmt.Fprintf(w, "images:        %d\n", r.Summary.Images)
	fmt.Fprintf(w, "objects:       %d\n", r.Labels.NGroundTruth)
	fmt.Fprintf(w, "detections:    %d\n", len(r.Labels.Labels))
	fmt.Fprintf(w, "true positive: %d\n", r.Labels.TruePositives())
	fmt.Fprintf(w, "AP:            %.4f\n", r.Curve.AveragePrecision)
	if r.HasBest {
		fmt.Fprintf(w, "best threshold %.4f (precision %.4f, recall %.4f)\n",
			r.Best.Threshold, r.Best.Precision, r.Best.Recall)
	}
}
