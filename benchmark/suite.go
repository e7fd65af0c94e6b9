package benchmark

import (
	"context"
	"image"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/dataset"
	"github.com/nvr-ai/go-detect/evaluation"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/profiler"
)

// Detector finds objects in an image. inference.Engine satisfies it.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]common.Detection, error)
}

// ImageLoader decodes the image at path.
type ImageLoader func(path string) (image.Image, error)

// Suite runs a detector over datasets and evaluates the result.
type Suite struct {
	detector Detector
	cfg      *Config
	load     ImageLoader
	logger   *zap.Logger
	profiler *profiler.Profiler
}

// SuiteOption configures a Suite.
type SuiteOption func(*Suite)

// WithLoader replaces images.Load as the image decoder.
func WithLoader(load ImageLoader) SuiteOption {
	return func(s *Suite) { s.load = load }
}

// WithLogger sets the suite logger.
func WithLogger(logger *zap.Logger) SuiteOption {
	return func(s *Suite) { s.logger = logger }
}

// NewSuite creates a suite around an existing detector.
//
// Arguments:
//   - detector: The detector; it must be safe for concurrent use when
//     cfg.Workers > 1.
//   - cfg: Evaluation and worker settings; nil selects DefaultConfig. Fewer
//     than one worker runs sequentially.
//   - opts: Loader and logger overrides.
//
// Returns:
//   - *Suite: The suite.
func NewSuite(detector Detector, cfg *Config, opts ...SuiteOption) *Suite {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers < 1 {
		clamped := *cfg
		clamped.Workers = 1
		cfg = &clamped
	}
	s := &Suite{
		detector: detector,
		cfg:      cfg,
		load:     images.Load,
		logger:   zap.NewNop(),
		profiler: profiler.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// NewSuiteFromConfig builds the inference engine described by cfg and wraps it.
//
// Returns:
//   - *Suite: The suite.
//   - inference.Engine: The engine, for callers that also classify patches.
//   - error: A configuration error from the engine builder.
func NewSuiteFromConfig(cfg *Config, logger *zap.Logger, opts ...SuiteOption) (*Suite, inference.Engine, error) {
	engine, err := inference.NewEngineBuilder().
		WithLogger(logger).
		WithDescriptor(cfg.Descriptor).
		WithClassifier(cfg.Classifier).
		WithDetector(cfg.Detector).
		Build()
	if err != nil {
		return nil, nil, err
	}
	opts = append([]SuiteOption{WithLogger(logger)}, opts...)
	return NewSuite(engine, cfg, opts...), engine, nil
}

// Profiler exposes the stage timings accumulated by the suite.
func (s *Suite) Profiler() *profiler.Profiler {
	return s.profiler
}

// Report is the outcome of a run.
type Report struct {
	// Summary describes the ground-truth dataset.
	Summary dataset.Summary `json:"summary"`
	// Predictions holds the detections of every image, in dataset order.
	Predictions *dataset.Dataset `json:"-"`
	// Labels are the matched labels and responses of every detection.
	Labels evaluation.LabelSet `json:"labels"`
	// Curve is the precision-recall curve and its average precision.
	Curve *evaluation.Curve `json:"curve"`
	// Best is the operating point with the best precision-recall trade-off.
	// HasBest is false when there were no detections.
	Best    evaluation.Point `json:"best"`
	HasBest bool             `json:"has_best"`
	// Metrics are the timings and resource usage of the run.
	Metrics PerformanceMetrics `json:"metrics"`
}

// Run detects objects in every image of ds and evaluates them against its
// ground truth.
//
// Images are processed by up to cfg.Workers goroutines. Each result is stored
// at its image index, so the report is identical for any worker count. The
// first failure cancels the remaining images and is returned.
//
// Arguments:
//   - ctx: Cancels the run.
//   - ds: The images and their ground truth.
//
// Returns:
//   - *Report: Predictions, matched labels, curve and metrics.
//   - error: A data error for an unreadable image, or a detector error.
func (s *Suite) Run(ctx context.Context, ds *dataset.Dataset) (*Report, error) {
	startMem := memorySnapshot()
	start := time.Now()

	predictions := make([][]common.Detection, ds.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := 0; i < ds.Len(); i++ {
		g.Go(func() error {
			dets, err := s.detectFile(gctx, ds.Filename(i))
			if err != nil {
				return err
			}
			predictions[i] = dets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	preds, err := ds.WithDetections(predictions)
	if err != nil {
		return nil, err
	}

	report, err := s.evaluate(ds, preds)
	if err != nil {
		return nil, err
	}
	s.finishMetrics(report, start, startMem)
	return report, nil
}

func (s *Suite) detectFile(ctx context.Context, path string) ([]common.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := s.profiler.StartOperation(profiler.StageLoad)
	img, err := s.load(path)
	done()
	if err != nil {
		return nil, common.WrapData(err, "load image")
	}

	started := time.Now()
	dets, err := s.detector.Detect(ctx, img)
	elapsed := time.Since(started)
	s.profiler.Record(profiler.StageDetect, elapsed)
	if err != nil {
		return nil, errors.Wrapf(err, "detect %s", path)
	}

	s.logger.Debug("detected",
		zap.String("file", path),
		zap.Int("detections", len(dets)),
		zap.Duration("elapsed", elapsed),
	)
	return dets, nil
}

// RunFromPredictions evaluates previously saved predictions against ds
// without running the detector.
//
// Returns:
//   - *Report: As for Run.
//   - error: A data error when the two datasets do not list the same images.
func (s *Suite) RunFromPredictions(ds, predictions *dataset.Dataset) (*Report, error) {
	startMem := memorySnapshot()
	start := time.Now()

	if ds.Len() != predictions.Len() {
		return nil, common.DataError("ground truth lists %d images, predictions %d", ds.Len(), predictions.Len())
	}
	for i := 0; i < ds.Len(); i++ {
		if filepath.Base(ds.Filename(i)) != filepath.Base(predictions.Filename(i)) {
			return nil, common.DataError("image %d is %s in the ground truth but %s in the predictions",
				i, ds.Filename(i), predictions.Filename(i))
		}
	}

	report, err := s.evaluate(ds, predictions)
	if err != nil {
		return nil, err
	}
	s.finishMetrics(report, start, startMem)
	return report, nil
}

func (s *Suite) evaluate(ds, preds *dataset.Dataset) (*Report, error) {
	done := s.profiler.StartOperation(profiler.StageMatch)
	labels, err := evaluation.Evaluate(ds.AllGroundTruth(), preds.AllGroundTruth(), s.cfg.Evaluation.OverlapThreshold)
	done()
	if err != nil {
		return nil, err
	}

	done = s.profiler.StartOperation(profiler.StageCurve)
	curve, err := evaluation.NewDetectionCurve(labels.Labels, labels.Responses, labels.NGroundTruth,
		evaluation.WithSmoothing(s.cfg.Evaluation.Smooth))
	done()
	if err != nil {
		return nil, err
	}

	best, ok := curve.BestThreshold()
	s.logger.Info("evaluated",
		zap.Int("images", ds.Len()),
		zap.Int("ground_truth", labels.NGroundTruth),
		zap.Int("detections", len(labels.Labels)),
		zap.Int("true_positives", labels.TruePositives()),
		zap.Float64("average_precision", curve.AveragePrecision),
	)

	return &Report{
		Summary:     ds.Summary(),
		Predictions: preds,
		Labels:      labels,
		Curve:       curve,
		Best:        best,
		HasBest:     ok,
	}, nil
}

func (s *Suite) finishMetrics(r *Report, start time.Time, startMem runtime.MemStats) {
	total := time.Since(start)
	n := r.Summary.Images

	r.Metrics = PerformanceMetrics{
		Timestamp:      start,
		TotalDuration:  total,
		DetectionCount: len(r.Labels.Labels),
		Stages:         s.profiler.Report(),
		MemoryStats:    newMemoryMetrics(startMem, memorySnapshot()),
		CPUStats: CPUMetrics{
			NumCPU:  runtime.NumCPU(),
			Workers: s.cfg.Workers,
		},
	}
	if total > 0 {
		r.Metrics.ImagesPerSecond = float64(n) / total.Seconds()
	}
}
